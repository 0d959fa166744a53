package main

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// linearDataset generates y = 0.5*x0 - 0.2*x1 + 0.1 with inputs in [-1, 1].
func linearDataset(n int, rng *rand.Rand) Dataset {
	var ds Dataset
	for i := 0; i < n; i++ {
		x := []float64{rng.Float64()*2 - 1, rng.Float64()*2 - 1, rng.Float64()*2 - 1}
		y := 0.5*x[0] - 0.2*x[1] + 0.1
		ds.X = append(ds.X, x)
		ds.Y = append(ds.Y, y)
	}
	return ds
}

func TestRatiosNetLearnsLinearTarget(t *testing.T) {
	rng := newTestRand(1)
	ds := linearDataset(256, rng)

	net := NewRatiosNet(3, 8, rng)
	initial := net.MSELoss(ds.X, ds.Y)

	for epoch := 0; epoch < 40; epoch++ {
		order := rng.Perm(ds.Len())
		for lo := 0; lo < len(order); lo += 32 {
			hi := min(lo+32, len(order))
			bx := make([][]float64, 0, hi-lo)
			by := make([]float64, 0, hi-lo)
			for _, j := range order[lo:hi] {
				bx = append(bx, ds.X[j])
				by = append(by, ds.Y[j])
			}
			net.Step(bx, by, 0.05, 0.9)
		}
	}

	final := net.MSELoss(ds.X, ds.Y)
	assert.Less(t, final, initial, "training must reduce the loss")
	assert.Less(t, final, 0.01, "a 2-layer net must fit a linear target closely")
}

func TestRatiosNetStepReducesBatchLoss(t *testing.T) {
	rng := newTestRand(2)
	ds := linearDataset(64, rng)
	net := NewRatiosNet(3, 6, rng)

	before := net.MSELoss(ds.X, ds.Y)
	for i := 0; i < 50; i++ {
		net.Step(ds.X, ds.Y, 0.05, 0.9)
	}
	after := net.MSELoss(ds.X, ds.Y)
	assert.Less(t, after, before)
}

func TestRatiosNetDeterministicInit(t *testing.T) {
	a := NewRatiosNet(5, 7, newTestRand(42))
	b := NewRatiosNet(5, 7, newTestRand(42))

	x := []float64{0.1, -0.2, 0.3, -0.4, 0.5}
	assert.Equal(t, a.Predict(x), b.Predict(x))
}

func TestRatiosNetPredictBatchMatchesPredict(t *testing.T) {
	net := NewRatiosNet(2, 4, newTestRand(3))
	x := [][]float64{{0.1, 0.2}, {-0.5, 0.9}}
	out := net.PredictBatch(x)
	require.Len(t, out, 2)
	assert.Equal(t, net.Predict(x[0]), out[0])
	assert.Equal(t, net.Predict(x[1]), out[1])
}

func TestRatiosNetEmptyBatch(t *testing.T) {
	net := NewRatiosNet(2, 4, newTestRand(4))
	assert.Zero(t, net.Step(nil, nil, 0.01, 0.9))
	assert.Zero(t, net.MSELoss(nil, nil))
}
