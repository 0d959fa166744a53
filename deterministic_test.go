package main

import (
	"fmt"
	"math"
	"testing"
)

// TestDeterministicTraining verifies that two strategies built from the same
// config produce identical networks after training on the same panel.
func TestDeterministicTraining(t *testing.T) {
	fmt.Println("\n=== DETERMINISTIC TEST: Training ===")

	cfg := testConfig(t)
	panel := syntheticPanel(cfg.RequiredNumberDates+3, 15, 7)

	a, err := NewNNRatios(cfg, nil)
	if err != nil {
		t.Fatalf("build strategy a: %v", err)
	}
	b, err := NewNNRatios(cfg, nil)
	if err != nil {
		t.Fatalf("build strategy b: %v", err)
	}

	if _, err := a.Train(panel); err != nil {
		t.Fatalf("train a: %v", err)
	}
	if _, err := b.Train(panel); err != nil {
		t.Fatalf("train b: %v", err)
	}

	// same seed, same panel: every prediction must agree bitwise
	ds := BuildTrainingSet(panel)

	mismatches := 0
	maxMismatchesToPrint := 10
	for i, x := range ds.X {
		pa := a.net.Predict(x)
		pb := b.net.Predict(x)
		if pa != pb {
			mismatches++
			if mismatches <= maxMismatchesToPrint {
				t.Logf("PREDICTION MISMATCH at row %d: a=%.12f b=%.12f", i, pa, pb)
			}
		}
	}

	fmt.Printf("Checked %d rows, found %d mismatches\n", ds.Len(), mismatches)

	if mismatches > 0 {
		t.Fatalf("deterministic training FAILED: %d prediction mismatches", mismatches)
	}

	fmt.Println("✓ PASS: Deterministic training test PASSED")
}

// TestDeterministicAllocation runs the full pipeline twice from the same seed
// and requires identical portfolio weights.
func TestDeterministicAllocation(t *testing.T) {
	fmt.Println("\n=== DETERMINISTIC TEST: Allocation ===")

	cfg := testConfig(t)
	panel := syntheticPanel(cfg.RequiredNumberDates+2, 20, 13)

	var runs []map[string]float64
	for run := 0; run < 2; run++ {
		s, err := NewNNRatios(cfg, nil)
		if err != nil {
			t.Fatalf("run %d: build strategy: %v", run, err)
		}
		weights, err := s.CreatePortfolio(panel, nil)
		if err != nil {
			t.Fatalf("run %d: create portfolio: %v", run, err)
		}
		runs = append(runs, weights)
	}

	if len(runs[0]) != len(runs[1]) {
		t.Fatalf("allocation sizes differ: %d vs %d", len(runs[0]), len(runs[1]))
	}

	mismatches := 0
	maxMismatchesToPrint := 10
	for ticker, w0 := range runs[0] {
		w1, ok := runs[1][ticker]
		if !ok || w0 != w1 {
			mismatches++
			if mismatches <= maxMismatchesToPrint {
				t.Logf("WEIGHT MISMATCH for %s: run0=%.12f run1=%.12f (present=%v)", ticker, w0, w1, ok)
			}
		}
	}

	fmt.Printf("Checked %d tickers, found %d mismatches\n", len(runs[0]), mismatches)

	if mismatches > 0 {
		t.Fatalf("deterministic allocation FAILED: %d weight mismatches", mismatches)
	}

	fmt.Println("✓ PASS: Deterministic allocation test PASSED")
}

// TestDeterministicBacktest requires the equity curve to reproduce exactly
// across runs with the same seed.
func TestDeterministicBacktest(t *testing.T) {
	fmt.Println("\n=== DETERMINISTIC TEST: Backtest ===")

	cfg := testConfig(t)
	panel := syntheticPanel(cfg.RequiredNumberDates+6, 12, 29)

	var curves [][]float64
	for run := 0; run < 2; run++ {
		s, err := NewNNRatios(cfg, nil)
		if err != nil {
			t.Fatalf("run %d: build strategy: %v", run, err)
		}
		res, err := RunBacktest(s, panel, nil, false)
		if err != nil {
			t.Fatalf("run %d: backtest: %v", run, err)
		}
		curves = append(curves, res.Equity)
	}

	if len(curves[0]) != len(curves[1]) {
		t.Fatalf("equity lengths differ: %d vs %d", len(curves[0]), len(curves[1]))
	}

	mismatches := 0
	for i := range curves[0] {
		if curves[0][i] != curves[1][i] || math.IsNaN(curves[0][i]) {
			mismatches++
			t.Logf("EQUITY MISMATCH at period %d: run0=%.12f run1=%.12f", i, curves[0][i], curves[1][i])
		}
	}

	fmt.Printf("Checked %d equity points, found %d mismatches\n", len(curves[0]), mismatches)

	if mismatches > 0 {
		t.Fatalf("deterministic backtest FAILED: %d equity mismatches", mismatches)
	}

	fmt.Println("✓ PASS: Deterministic backtest test PASSED")
}
