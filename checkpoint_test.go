package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelCheckpointRoundtrip(t *testing.T) {
	net := NewRatiosNet(NumRatios, 6, newTestRand(11))
	path := filepath.Join(t.TempDir(), "model.json")

	require.NoError(t, SaveModelCheckpoint(path, net.ToCheckpoint(11, 0.0042)))

	cp, err := LoadModelCheckpoint(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cp.Version)
	assert.Equal(t, int64(11), cp.Seed)
	assert.Equal(t, 0.0042, cp.ValLoss)
	assert.NotZero(t, cp.SavedAtUnix)

	restored, err := NetFromCheckpoint(cp)
	require.NoError(t, err)

	x := make([]float64, NumRatios)
	for i := range x {
		x[i] = float64(i) * 0.1
	}
	assert.Equal(t, net.Predict(x), restored.Predict(x))
}

func TestSaveModelCheckpointCreatesDir(t *testing.T) {
	net := NewRatiosNet(2, 3, newTestRand(1))
	path := filepath.Join(t.TempDir(), "nested", "dir", "model.json")
	require.NoError(t, SaveModelCheckpoint(path, net.ToCheckpoint(1, 0.1)))

	_, err := LoadModelCheckpoint(path)
	require.NoError(t, err)
}

func TestNetFromCheckpointRejectsBadShapes(t *testing.T) {
	_, err := NetFromCheckpoint(ModelCheckpoint{InputShape: 0, HiddenShape: 4})
	require.Error(t, err)

	_, err = NetFromCheckpoint(ModelCheckpoint{
		InputShape:  3,
		HiddenShape: 2,
		W1:          [][]float64{{1, 2, 3}}, // one row, hidden says two
		B1:          []float64{0, 0},
		W2:          []float64{0, 0},
	})
	require.Error(t, err)
}

func TestLoadModelCheckpointMissingFile(t *testing.T) {
	_, err := LoadModelCheckpoint(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
