package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"
)

// ModelCheckpoint is the serializable form of RatiosNet weights. It is
// written whenever the validation loss improves during training, so the file
// on disk always holds the best weights seen so far.
type ModelCheckpoint struct {
	Version     int     `json:"version"`
	SavedAtUnix int64   `json:"saved_at_unix"`
	Seed        int64   `json:"seed"`
	InputShape  int     `json:"input_shape"`
	HiddenShape int     `json:"hidden_shape"`
	ValLoss     float64 `json:"val_loss"`

	W1 [][]float64 `json:"w1"` // hidden x in
	B1 []float64   `json:"b1"`
	W2 []float64   `json:"w2"`
	B2 float64     `json:"b2"`
}

// ToCheckpoint snapshots the network weights.
func (n *RatiosNet) ToCheckpoint(seed int64, valLoss float64) ModelCheckpoint {
	cp := ModelCheckpoint{
		Seed:        seed,
		InputShape:  n.inputShape,
		HiddenShape: n.hiddenShape,
		ValLoss:     valLoss,
		B1:          make([]float64, n.hiddenShape),
		W2:          make([]float64, n.hiddenShape),
		B2:          n.b2,
	}
	cp.W1 = make([][]float64, n.hiddenShape)
	for i := 0; i < n.hiddenShape; i++ {
		cp.W1[i] = make([]float64, n.inputShape)
		for j := 0; j < n.inputShape; j++ {
			cp.W1[i][j] = n.w1.At(i, j)
		}
		cp.B1[i] = n.b1.AtVec(i)
		cp.W2[i] = n.w2.AtVec(i)
	}
	return cp
}

// NetFromCheckpoint rebuilds a network from saved weights. Momentum buffers
// start at zero; a restored model is meant for scoring, not further training.
func NetFromCheckpoint(cp ModelCheckpoint) (*RatiosNet, error) {
	if cp.HiddenShape <= 0 || cp.InputShape <= 0 {
		return nil, fmt.Errorf("invalid checkpoint shapes: in=%d hidden=%d", cp.InputShape, cp.HiddenShape)
	}
	if len(cp.W1) != cp.HiddenShape || len(cp.B1) != cp.HiddenShape || len(cp.W2) != cp.HiddenShape {
		return nil, fmt.Errorf("checkpoint weight lengths do not match hidden_shape=%d", cp.HiddenShape)
	}

	n := &RatiosNet{
		inputShape:  cp.InputShape,
		hiddenShape: cp.HiddenShape,
		w1:          mat.NewDense(cp.HiddenShape, cp.InputShape, nil),
		b1:          mat.NewVecDense(cp.HiddenShape, nil),
		w2:          mat.NewVecDense(cp.HiddenShape, nil),
		b2:          cp.B2,
		vw1:         mat.NewDense(cp.HiddenShape, cp.InputShape, nil),
		vb1:         mat.NewVecDense(cp.HiddenShape, nil),
		vw2:         mat.NewVecDense(cp.HiddenShape, nil),
	}
	for i := 0; i < cp.HiddenShape; i++ {
		if len(cp.W1[i]) != cp.InputShape {
			return nil, fmt.Errorf("checkpoint w1 row %d has %d cols, want %d", i, len(cp.W1[i]), cp.InputShape)
		}
		for j := 0; j < cp.InputShape; j++ {
			n.w1.Set(i, j, cp.W1[i][j])
		}
		n.b1.SetVec(i, cp.B1[i])
		n.w2.SetVec(i, cp.W2[i])
	}
	return n, nil
}

// SaveModelCheckpoint writes the checkpoint via tmp file + rename so a crash
// mid-write never leaves a truncated checkpoint behind.
func SaveModelCheckpoint(path string, cp ModelCheckpoint) error {
	cp.Version = 1
	cp.SavedAtUnix = time.Now().Unix()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp := path + ".tmp"
	b, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path) // atomic replace
}

// LoadModelCheckpoint reads a checkpoint from disk.
func LoadModelCheckpoint(path string) (ModelCheckpoint, error) {
	var cp ModelCheckpoint
	b, err := os.ReadFile(path)
	if err != nil {
		return cp, err
	}
	err = json.Unmarshal(b, &cp)
	return cp, err
}
