package main

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func obsRow(ticker, date string, price float64, ratios ...float64) Observation {
	r := make([]float64, NumRatios)
	copy(r, ratios)
	return Observation{Ticker: ticker, Date: date, Price: price, Ratios: r}
}

func TestBuildTrainingSetForwardReturns(t *testing.T) {
	p := Panel{Obs: []Observation{
		obsRow("AAA", "2024-01-01", 100, 1),
		obsRow("AAA", "2024-01-02", 110, 2),
		obsRow("AAA", "2024-01-03", 99, 3),
		obsRow("BBB", "2024-01-01", 50, 4),
		obsRow("BBB", "2024-01-02", 40, 5),
	}}

	ds := BuildTrainingSet(p)
	require.Equal(t, 5, ds.Len())

	// rows come out in sorted ticker order, dates ascending per ticker
	assert.InDelta(t, 0.10, ds.Y[0], 1e-12)  // AAA 100 -> 110
	assert.InDelta(t, -0.10, ds.Y[1], 1e-12) // AAA 110 -> 99
	assert.Equal(t, 0.0, ds.Y[2])            // last AAA row: no next price
	assert.InDelta(t, -0.20, ds.Y[3], 1e-12) // BBB 50 -> 40
	assert.Equal(t, 0.0, ds.Y[4])            // last BBB row

	// features pass through
	assert.Equal(t, 1.0, ds.X[0][0])
	assert.Equal(t, 4.0, ds.X[3][0])
}

func TestBuildTrainingSetSanitizesNaN(t *testing.T) {
	nan := math.NaN()
	p := Panel{Obs: []Observation{
		obsRow("AAA", "2024-01-01", 100, nan, 2),
		obsRow("AAA", "2024-01-02", nan, 1, 2), // NaN next price -> NaN return -> 0
	}}

	ds := BuildTrainingSet(p)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, 0.0, ds.X[0][0]) // NaN feature zeroed
	assert.Equal(t, 2.0, ds.X[0][1])
	assert.Equal(t, 0.0, ds.Y[0]) // NaN target zeroed
}

func TestBuildTrainingSetSingleObservationTicker(t *testing.T) {
	p := Panel{Obs: []Observation{obsRow("AAA", "2024-01-01", 100, 1)}}
	ds := BuildTrainingSet(p)
	require.Equal(t, 1, ds.Len())
	assert.Equal(t, 0.0, ds.Y[0])
}

func TestSplitTrainValSizes(t *testing.T) {
	var ds Dataset
	for i := 0; i < 100; i++ {
		ds.X = append(ds.X, []float64{float64(i)})
		ds.Y = append(ds.Y, float64(i))
	}

	train, val := SplitTrainVal(ds, 0.2, rand.New(rand.NewSource(1)))
	assert.Equal(t, 80, train.Len())
	assert.Equal(t, 20, val.Len())

	// every row lands exactly once
	seen := make(map[float64]bool)
	for _, y := range append(append([]float64{}, train.Y...), val.Y...) {
		assert.False(t, seen[y])
		seen[y] = true
	}
	assert.Len(t, seen, 100)
}

func TestSplitTrainValDeterministic(t *testing.T) {
	var ds Dataset
	for i := 0; i < 50; i++ {
		ds.X = append(ds.X, []float64{float64(i)})
		ds.Y = append(ds.Y, float64(i))
	}

	t1, v1 := SplitTrainVal(ds, 0.3, rand.New(rand.NewSource(7)))
	t2, v2 := SplitTrainVal(ds, 0.3, rand.New(rand.NewSource(7)))
	assert.Equal(t, t1.Y, t2.Y)
	assert.Equal(t, v1.Y, v2.Y)
}

func TestSplitTrainValZeroFraction(t *testing.T) {
	ds := Dataset{X: [][]float64{{1}, {2}}, Y: []float64{1, 2}}
	train, val := SplitTrainVal(ds, 0, rand.New(rand.NewSource(1)))
	assert.Equal(t, 2, train.Len())
	assert.Equal(t, 0, val.Len())
}
