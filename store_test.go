package main

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "panel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStorePanelRoundtrip(t *testing.T) {
	s := openTestStore(t)

	in := Panel{Obs: []Observation{
		obsRow("AAA", "2024-01-01", 100, 1, 2, 3),
		obsRow("AAA", "2024-01-02", 110, 4, 5, 6),
		obsRow("BBB", "2024-01-01", 50, 7, 8, 9),
	}}
	in.Obs[0].Ratios[5] = math.NaN() // NaN must survive as NULL

	require.NoError(t, s.SavePanel(in))

	out, err := s.LoadPanel()
	require.NoError(t, err)
	require.Len(t, out.Obs, 3)

	assert.Equal(t, "AAA", out.Obs[0].Ticker)
	assert.Equal(t, "2024-01-01", out.Obs[0].Date)
	assert.Equal(t, 100.0, out.Obs[0].Price)
	assert.Equal(t, 1.0, out.Obs[0].Ratios[0])
	assert.True(t, math.IsNaN(out.Obs[0].Ratios[5]))
	assert.Equal(t, "BBB", out.Obs[2].Ticker)
}

func TestStorePanelUpsert(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SavePanel(Panel{Obs: []Observation{obsRow("AAA", "2024-01-01", 100, 1)}}))
	require.NoError(t, s.SavePanel(Panel{Obs: []Observation{obsRow("AAA", "2024-01-01", 105, 2)}}))

	out, err := s.LoadPanel()
	require.NoError(t, err)
	require.Len(t, out.Obs, 1)
	assert.Equal(t, 105.0, out.Obs[0].Price)
	assert.Equal(t, 2.0, out.Obs[0].Ratios[0])
}

func TestStoreAllocationRoundtrip(t *testing.T) {
	s := openTestStore(t)

	asOf, rule, weights, err := s.LatestAllocation()
	require.NoError(t, err)
	assert.Empty(t, weights)
	assert.Empty(t, asOf)
	assert.Empty(t, rule)

	in := map[string]float64{"AAA": 0.5, "BBB": 0.5, "CCC": -1.0, "DDD": 0}
	require.NoError(t, s.SaveAllocation("2024-02-01", RuleQuartile, in))

	asOf, rule, weights, err = s.LatestAllocation()
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", asOf)
	assert.Equal(t, RuleQuartile, rule)
	assert.Equal(t, in, weights)
}

func TestStoreBacktestRun(t *testing.T) {
	s := openTestStore(t)

	res := BacktestResult{
		Rule:         RuleOctile,
		Periods:      []PeriodResult{{}, {}},
		TotalReturn:  0.12,
		GeoAvgPeriod: 0.002,
		MaxDD:        0.08,
		WinRate:      0.6,
	}
	require.NoError(t, s.SaveBacktestRun(res))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM backtest_runs`).Scan(&count))
	assert.Equal(t, 1, count)
}
