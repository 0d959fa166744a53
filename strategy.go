package main

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"nn_ratios/logx"
)

// NNRatios is the accounting-ratios strategy: a small regression network
// forecasts next-period returns and a quantile decision rule converts the
// forecasts into a long/short allocation.
//
// The model trains exactly once per strategy lifetime: the first
// CreatePortfolio call fits it on the full panel and flips the gate; every
// later call scores with the frozen weights.
type NNRatios struct {
	cfg Config
	net *RatiosNet

	trainer *Trainer
	trained bool
}

// NewNNRatios builds the strategy. The decision rule is validated here so a
// misconfigured rule fails at construction, not mid-backtest. When
// cfg.PretrainedPath is set, the weights are loaded from that checkpoint and
// training is skipped entirely.
func NewNNRatios(cfg Config, hub *WSHub) (*NNRatios, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &NNRatios{
		cfg:     cfg,
		trainer: NewTrainer(cfg, hub),
	}

	if cfg.PretrainedPath != "" {
		cp, err := LoadModelCheckpoint(cfg.PretrainedPath)
		if err != nil {
			return nil, fmt.Errorf("load pretrained checkpoint: %w", err)
		}
		net, err := NetFromCheckpoint(cp)
		if err != nil {
			return nil, err
		}
		s.net = net
		s.trained = true
		logx.LogCheckpointLoad(cfg.PretrainedPath, cp.ValLoss)
		return s, nil
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	s.net = NewRatiosNet(NumRatios, cfg.HiddenShape, rng)
	return s, nil
}

// Trained reports whether the one-shot training gate has flipped.
func (s *NNRatios) Trained() bool { return s.trained }

// Train fits the model on the panel and freezes it. Calling Train on an
// already-trained strategy is an error; the whole point of the gate is that
// weights never silently change under a live allocation.
func (s *NNRatios) Train(panel Panel) (FitReport, error) {
	if s.trained {
		return FitReport{}, fmt.Errorf("model is already trained and frozen")
	}

	ds := BuildTrainingSet(panel)
	report, err := s.trainer.Fit(s.net, ds)
	if err != nil {
		return report, err
	}
	s.trained = true
	return report, nil
}

// CreatePortfolio maps the latest cross-section of the panel to portfolio
// weights. Long positions share 100% long notional equally, short positions
// share 100% short notional equally, and the unselected middle band gets 0.
// Tickers absent from the returned map have no observation on the latest
// date (or failed the NaN filter).
func (s *NNRatios) CreatePortfolio(panel Panel, availableTickers []string) (map[string]float64, error) {
	dates := panel.Dates()
	if len(dates) < s.cfg.RequiredNumberDates {
		return nil, fmt.Errorf("panel has %d dates, strategy requires %d", len(dates), s.cfg.RequiredNumberDates)
	}

	if !s.trained {
		if _, err := s.Train(panel); err != nil {
			return nil, err
		}
	}

	latest := panel.LatestDate()
	cross := panel.CrossSection(latest, availableTickers)
	if len(cross) == 0 {
		return map[string]float64{}, nil
	}

	tickers := make([]string, len(cross))
	x := make([][]float64, len(cross))
	for i, o := range cross {
		tickers[i] = o.Ticker
		x[i] = o.Ratios
	}

	preds := s.net.PredictBatch(x)
	return formPortfolio(tickers, preds, s.cfg.DecisionRule)
}

// decisionCutoffs returns the (lower, upper) prediction cutoffs for a rule.
// preds must not be empty.
func decisionCutoffs(preds []float64, rule string) (lower, upper float64, err error) {
	sorted := make([]float64, len(preds))
	copy(sorted, preds)
	sort.Float64s(sorted)

	q := func(p float64) float64 {
		return quantileLinear(sorted, p)
	}

	switch rule {
	case RuleMedian:
		m := q(0.5)
		return m, m, nil
	case RuleQuartile:
		return q(0.25), q(0.75), nil
	case RuleOctile:
		return q(0.125), q(0.875), nil
	default:
		return 0, 0, fmt.Errorf("decision rule %q is not one of median, quartile, octile", rule)
	}
}

// quantileLinear computes the p-quantile of sorted values with the index
// h = (n-1)*p and linear interpolation between x[floor(h)] and x[floor(h)+1].
// This is the R-7 estimator, the default of numpy and pandas, so quantile(0.5)
// of [1,2,3] is 2, not the midpoint of the lower pair.
func quantileLinear(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// formPortfolio buckets predictions by the rule's cutoffs and equal-weights
// each bucket. Strictly above the upper cutoff goes long, strictly below the
// lower cutoff goes short, everything else is flat. With identical
// predictions the strict comparisons leave every ticker flat.
func formPortfolio(tickers []string, preds []float64, rule string) (map[string]float64, error) {
	if len(tickers) != len(preds) {
		return nil, fmt.Errorf("tickers/predictions length mismatch: %d vs %d", len(tickers), len(preds))
	}
	weights := make(map[string]float64, len(tickers))
	if len(tickers) == 0 {
		return weights, nil
	}

	lower, upper, err := decisionCutoffs(preds, rule)
	if err != nil {
		return nil, err
	}

	long, short := 0, 0
	sides := make([]int, len(preds))
	for i, p := range preds {
		switch {
		case p > upper:
			sides[i] = 1
			long++
		case p < lower:
			sides[i] = -1
			short++
		}
	}

	for i, t := range tickers {
		switch sides[i] {
		case 1:
			weights[t] = 1.0 / float64(long)
		case -1:
			weights[t] = -1.0 / float64(short)
		default:
			weights[t] = 0
		}
	}
	return weights, nil
}

// countSides tallies the long/short/flat positions of an allocation.
func countSides(weights map[string]float64) (long, short, flat int) {
	for _, w := range weights {
		switch {
		case w > 0:
			long++
		case w < 0:
			short++
		default:
			flat++
		}
	}
	return long, short, flat
}
