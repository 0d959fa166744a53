package main

import (
	"math"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Dataset is a dense training set: one row per panel observation.
type Dataset struct {
	X [][]float64 // NumRatios columns per row
	Y []float64   // next-period return target
}

// Len returns the number of rows.
func (d Dataset) Len() int { return len(d.Y) }

// BuildTrainingSet reshapes the panel into (X, y). For each ticker, rows are
// taken in date order and the target is the next-period return
// (price[t+1]-price[t])/price[t]. The last row of each ticker has no next
// price and gets target 0. NaN features and targets are also zeroed.
//
// Tickers are prepared concurrently but concatenated in sorted ticker order
// so the row order is deterministic.
func BuildTrainingSet(p Panel) Dataset {
	byTicker := make(map[string][]Observation)
	for _, o := range p.Obs {
		byTicker[o.Ticker] = append(byTicker[o.Ticker], o)
	}

	tickers := make([]string, 0, len(byTicker))
	for t := range byTicker {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	parts := make([]Dataset, len(tickers))
	var g errgroup.Group
	for i, t := range tickers {
		i, t := i, t
		g.Go(func() error {
			parts[i] = prepareTicker(byTicker[t])
			return nil
		})
	}
	g.Wait() // workers never return errors

	var ds Dataset
	for _, part := range parts {
		ds.X = append(ds.X, part.X...)
		ds.Y = append(ds.Y, part.Y...)
	}
	return ds
}

// prepareTicker builds the rows for a single ticker, sorted by date.
func prepareTicker(obs []Observation) Dataset {
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Date < obs[j].Date })

	var ds Dataset
	for i, o := range obs {
		ret := 0.0
		if i+1 < len(obs) {
			ret = nanToNum((obs[i+1].Price - o.Price) / o.Price)
		}

		row := make([]float64, NumRatios)
		for k, v := range o.Ratios {
			row[k] = nanToNum(v)
		}

		ds.X = append(ds.X, row)
		ds.Y = append(ds.Y, ret)
	}
	return ds
}

// nanToNum maps NaN and infinities to 0, everything else passes through.
func nanToNum(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// SplitTrainVal shuffles the dataset rows with the given RNG and splits off
// the last valFrac fraction as the validation set.
func SplitTrainVal(ds Dataset, valFrac float64, rng *rand.Rand) (train, val Dataset) {
	n := ds.Len()
	idx := rng.Perm(n)

	nVal := int(float64(n) * valFrac)
	if nVal < 1 && n > 1 && valFrac > 0 {
		nVal = 1
	}
	cut := n - nVal

	for i, j := range idx {
		if i < cut {
			train.X = append(train.X, ds.X[j])
			train.Y = append(train.Y, ds.Y[j])
		} else {
			val.X = append(val.X, ds.X[j])
			val.Y = append(val.Y, ds.Y[j])
		}
	}
	return train, val
}
