package main

import (
	"fmt"
	"math"
	"time"

	"nn_ratios/logx"
)

// PeriodResult is one rebalance step of a walk-forward run.
type PeriodResult struct {
	Date      string  // date the portfolio was formed on
	NextDate  string  // date the return realized on
	Return    float64 // weighted next-period portfolio return
	Equity    float64 // equity after applying Return
	Positions int     // number of non-flat positions
}

// BacktestResult holds the stitched walk-forward statistics.
type BacktestResult struct {
	Rule    string
	Periods []PeriodResult
	Equity  []float64 // equity curve, starts at 1.0

	TotalReturn  float64
	GeoAvgPeriod float64 // geometric average per-period return
	MaxDD        float64
	WinRate      float64 // fraction of non-flat periods with positive return
}

// RunBacktest walks the panel forward date by date. At each rebalance date
// the strategy sees only history up to that date, forms a portfolio, and the
// portfolio realizes the next date's returns. The model trains once on the
// first window (the strategy's own gate) and stays frozen afterwards, so
// later windows never retrain on data the first allocation could not see
// growing — the freeze is the strategy's contract, not the harness's.
func RunBacktest(s *NNRatios, panel Panel, available []string, verbose bool) (BacktestResult, error) {
	start := time.Now()
	dates := panel.Dates()
	if len(dates) < s.cfg.RequiredNumberDates+1 {
		return BacktestResult{}, fmt.Errorf("panel has %d dates, need at least %d for one rebalance",
			len(dates), s.cfg.RequiredNumberDates+1)
	}

	res := BacktestResult{Rule: s.cfg.DecisionRule}
	equity := 1.0
	res.Equity = append(res.Equity, equity)

	prices := priceIndex(panel)

	for i := s.cfg.RequiredNumberDates - 1; i < len(dates)-1; i++ {
		date, next := dates[i], dates[i+1]

		weights, err := s.CreatePortfolio(panel.Until(date), available)
		if err != nil {
			return BacktestResult{}, fmt.Errorf("rebalance at %s: %w", date, err)
		}
		if err := assertPortfolioInvariants(weights, defaultPortfolioInvariants); err != nil {
			return BacktestResult{}, fmt.Errorf("rebalance at %s: %w", date, err)
		}

		ret, positions := realizeReturn(weights, prices, date, next)
		equity *= 1 + ret
		res.Equity = append(res.Equity, equity)

		pr := PeriodResult{
			Date:      date,
			NextDate:  next,
			Return:    ret,
			Equity:    equity,
			Positions: positions,
		}
		res.Periods = append(res.Periods, pr)
		if verbose {
			logx.LogRebalance(len(res.Periods), date, ret, equity, positions)
		}
	}

	res.TotalReturn = equity - 1
	res.MaxDD = computeMaxDrawdown(res.Equity)
	res.WinRate = computeWinRate(res.Periods)
	res.GeoAvgPeriod = computeGeoAvgReturn(periodReturns(res.Periods))

	logx.LogBacktestDashboard(res.Rule, len(res.Periods), res.TotalReturn, res.GeoAvgPeriod,
		res.MaxDD, res.WinRate, time.Since(start))
	return res, nil
}

// priceIndex maps (ticker, date) to price for O(1) lookups during the walk.
func priceIndex(panel Panel) map[string]map[string]float64 {
	idx := make(map[string]map[string]float64)
	for _, o := range panel.Obs {
		if math.IsNaN(o.Price) {
			continue
		}
		if idx[o.Ticker] == nil {
			idx[o.Ticker] = make(map[string]float64)
		}
		idx[o.Ticker][o.Date] = o.Price
	}
	return idx
}

// realizeReturn applies next-period returns to an allocation. Tickers
// missing a price on either side of the period contribute nothing (their
// notional sits in cash for that period).
func realizeReturn(weights map[string]float64, prices map[string]map[string]float64, date, next string) (float64, int) {
	total := 0.0
	positions := 0
	for ticker, w := range weights {
		if w == 0 {
			continue
		}
		positions++

		p0, ok0 := prices[ticker][date]
		p1, ok1 := prices[ticker][next]
		if !ok0 || !ok1 || p0 == 0 {
			continue
		}
		total += w * (p1 - p0) / p0
	}
	return total, positions
}

// computeMaxDrawdown returns the maximum peak-to-trough drop of an equity
// curve as a positive fraction.
func computeMaxDrawdown(equity []float64) float64 {
	peak := math.Inf(-1)
	maxDD := 0.0
	for _, eq := range equity {
		if eq > peak {
			peak = eq
		}
		if peak > 0 {
			dd := (peak - eq) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// computeWinRate is the fraction of periods with positive return, counting
// only periods that actually held positions.
func computeWinRate(periods []PeriodResult) float64 {
	wins, active := 0, 0
	for _, p := range periods {
		if p.Positions == 0 {
			continue
		}
		active++
		if p.Return > 0 {
			wins++
		}
	}
	if active == 0 {
		return 0
	}
	return float64(wins) / float64(active)
}

func periodReturns(periods []PeriodResult) []float64 {
	out := make([]float64, len(periods))
	for i, p := range periods {
		out[i] = p.Return
	}
	return out
}

// computeGeoAvgReturn returns the geometric average of per-period returns.
// A -100% period makes the geometric mean undefined; report -Inf.
func computeGeoAvgReturn(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sumLog := 0.0
	for _, r := range returns {
		if r <= -1.0 {
			return math.Inf(-1)
		}
		sumLog += math.Log(1.0 + r)
	}
	meanLog := sumLog / float64(len(returns))
	return math.Exp(meanLog) - 1.0
}
