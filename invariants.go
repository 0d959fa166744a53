package main

import (
	"fmt"
	"math"
)

// PortfolioInvariants holds configuration for runtime assertion checking on
// produced allocations.
type PortfolioInvariants struct {
	Enabled          bool // Enable/disable all invariant checks
	CheckFinite      bool // Verify no NaN/Inf weights
	CheckNotional    bool // Verify long and short notionals are 100% each (when present)
	CheckEqualWeight bool // Verify weights inside a bucket are equal
}

const notionalTolerance = 1e-9

var defaultPortfolioInvariants = PortfolioInvariants{
	Enabled:          true,
	CheckFinite:      true,
	CheckNotional:    true,
	CheckEqualWeight: true,
}

// assertPortfolioInvariants checks the structural properties every
// allocation must satisfy: finite weights, equal weights per bucket, and
// each non-empty bucket summing to exactly one unit of notional.
func assertPortfolioInvariants(weights map[string]float64, inv PortfolioInvariants) error {
	if !inv.Enabled {
		return nil
	}

	longSum, shortSum := 0.0, 0.0
	longW, shortW := math.NaN(), math.NaN()

	for ticker, w := range weights {
		if inv.CheckFinite && (math.IsNaN(w) || math.IsInf(w, 0)) {
			return fmt.Errorf("weight for %s is not finite: %v", ticker, w)
		}
		switch {
		case w > 0:
			longSum += w
			if math.IsNaN(longW) {
				longW = w
			} else if inv.CheckEqualWeight && math.Abs(w-longW) > notionalTolerance {
				return fmt.Errorf("long bucket is not equal-weighted: %v vs %v", w, longW)
			}
		case w < 0:
			shortSum += w
			if math.IsNaN(shortW) {
				shortW = w
			} else if inv.CheckEqualWeight && math.Abs(w-shortW) > notionalTolerance {
				return fmt.Errorf("short bucket is not equal-weighted: %v vs %v", w, shortW)
			}
		}
	}

	if inv.CheckNotional {
		if longSum != 0 && math.Abs(longSum-1.0) > notionalTolerance {
			return fmt.Errorf("long notional is %v, want 1.0", longSum)
		}
		if shortSum != 0 && math.Abs(shortSum+1.0) > notionalTolerance {
			return fmt.Errorf("short notional is %v, want -1.0", shortSum)
		}
	}
	return nil
}
