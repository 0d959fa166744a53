package main

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"nn_ratios/logx"
)

// MetricsLogger appends per-step loss rows to metrics.csv under
// <dir>/<model repr>/, one row per logged metric.
type MetricsLogger struct {
	f *os.File
	w *csv.Writer
}

// NewMetricsLogger opens (or creates) the metrics file for a model.
func NewMetricsLogger(dir, model string) (*MetricsLogger, error) {
	runDir := filepath.Join(dir, model)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, err
	}

	path := filepath.Join(runDir, "metrics.csv")
	_, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	m := &MetricsLogger{f: f, w: csv.NewWriter(f)}
	if os.IsNotExist(statErr) {
		m.w.Write([]string{"step", "epoch", "metric", "value"})
		m.w.Flush()
	}
	return m, nil
}

// Log appends one metric row.
func (m *MetricsLogger) Log(step, epoch int, metric string, value float64) {
	if m == nil {
		return
	}
	m.w.Write([]string{
		strconv.Itoa(step),
		strconv.Itoa(epoch),
		metric,
		strconv.FormatFloat(value, 'g', -1, 64),
	})
}

// Close flushes and closes the metrics file.
func (m *MetricsLogger) Close() error {
	if m == nil {
		return nil
	}
	m.w.Flush()
	return m.f.Close()
}

// FitReport summarizes one training run.
type FitReport struct {
	Steps       int
	Epochs      int
	BestValLoss float64
	Checkpoint  string
	Elapsed     time.Duration
}

// Trainer runs minibatch SGD over a prepared dataset. It owns the metrics
// log, the best-weights checkpoint, and progress reporting.
type Trainer struct {
	cfg Config
	rng *rand.Rand

	events *logx.EventLog
	hub    *WSHub // optional dashboard hub, may be nil
}

// NewTrainer creates a trainer seeded from cfg.Seed.
func NewTrainer(cfg Config, hub *WSHub) *Trainer {
	return &Trainer{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		events: logx.NewEventLog(filepath.Join(cfg.MetricsDir, "events.jsonl")),
		hub:    hub,
	}
}

// Fit trains the network on ds. The validation split, batch shuffling and
// checkpoint-on-improvement behavior all come from the trainer config. The
// checkpoint on disk always holds the best validation weights; the in-memory
// network keeps its final-epoch weights.
func (t *Trainer) Fit(net *RatiosNet, ds Dataset) (FitReport, error) {
	if ds.Len() == 0 {
		return FitReport{}, fmt.Errorf("empty training set")
	}

	start := time.Now()
	train, val := SplitTrainVal(ds, t.cfg.ValSize, t.rng)

	var metrics *MetricsLogger
	if t.cfg.LogLoss {
		var err error
		metrics, err = NewMetricsLogger(t.cfg.MetricsDir, net.Repr())
		if err != nil {
			return FitReport{}, fmt.Errorf("open metrics log: %w", err)
		}
		defer metrics.Close()
	}

	ckptPath := filepath.Join(t.cfg.CheckpointDir, net.Repr()+".json")
	logx.LogTrainStart(net.Repr(), train.Len(), val.Len(), t.cfg.Epochs, t.cfg.BatchSize)
	t.events.Info("FIT", fmt.Sprintf("training %s on %d rows", net.Repr(), ds.Len()))

	bestVal := math.Inf(1)
	step := 0

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		epochLoss := 0.0
		batches := 0

		order := t.rng.Perm(train.Len())
		for lo := 0; lo < len(order); lo += t.cfg.BatchSize {
			hi := lo + t.cfg.BatchSize
			if hi > len(order) {
				hi = len(order)
			}

			bx := make([][]float64, 0, hi-lo)
			by := make([]float64, 0, hi-lo)
			for _, j := range order[lo:hi] {
				bx = append(bx, train.X[j])
				by = append(by, train.Y[j])
			}

			loss := net.Step(bx, by, t.cfg.LearningRate, t.cfg.Momentum)
			epochLoss += loss
			batches++
			step++

			if t.cfg.LogLoss && step%t.cfg.LogFrequency == 0 {
				metrics.Log(step, epoch, "train_loss", loss)
			}
		}
		trainLoss := epochLoss / float64(batches)

		if epoch%t.cfg.ValCheckInterval != 0 && epoch != t.cfg.Epochs {
			continue
		}

		// No holdout rows: fall back to monitoring the train loss so the
		// checkpoint still tracks the best epoch.
		valLoss := trainLoss
		if val.Len() > 0 {
			valLoss = net.MSELoss(val.X, val.Y)
		}
		if t.cfg.LogLoss {
			metrics.Log(step, epoch, "val_loss", valLoss)
		}

		improved := valLoss < bestVal
		if improved {
			bestVal = valLoss
			if err := SaveModelCheckpoint(ckptPath, net.ToCheckpoint(t.cfg.Seed, valLoss)); err != nil {
				return FitReport{}, fmt.Errorf("save checkpoint: %w", err)
			}
			logx.LogCheckpoint(ckptPath, valLoss)
			t.events.Info("CHECKPOINT", fmt.Sprintf("val_loss=%.6f at epoch %d", valLoss, epoch))
		}

		logx.LogEpoch(epoch, t.cfg.Epochs, trainLoss, valLoss, bestVal, improved, time.Since(start))
		t.hub.BroadcastProgress(epoch, t.cfg.Epochs, trainLoss, valLoss, bestVal)
	}

	elapsed := time.Since(start)
	logx.LogTrainComplete(net.Repr(), step, bestVal, elapsed)
	t.events.Info("FIT", fmt.Sprintf("done: steps=%d best_val_loss=%.6f", step, bestVal))

	return FitReport{
		Steps:       step,
		Epochs:      t.cfg.Epochs,
		BestValLoss: bestVal,
		Checkpoint:  ckptPath,
		Elapsed:     elapsed,
	}, nil
}
