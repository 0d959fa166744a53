package main

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
)

// RatioColumns lists the accounting-ratio feature columns in panel order.
// The order is fixed: it defines the model input layout and the CSV/SQLite
// column layout.
var RatioColumns = []string{
	"outstanding_share", "turnover", "pe", "pe_ttm", "pb",
	"ps", "ps_ttm", "dv_ratio", "dv_ttm", "total_mv", "qfq_factor",
}

// NumRatios is the model input width.
var NumRatios = len(RatioColumns)

// Observation is a single (ticker, date) row of the strategy panel.
type Observation struct {
	Ticker string
	Date   string // ISO date, lexicographic order == chronological order
	Price  float64
	Ratios []float64 // indexed by RatioColumns
}

// Panel holds ordered-by-date observations keyed by (ticker, date).
type Panel struct {
	Obs []Observation
}

// LoadPanelCSV reads a strategy panel from a CSV file with header
// ticker,date,price,<RatioColumns...>. Unparseable numeric cells become NaN
// so downstream preparation can sanitize them uniformly.
func LoadPanelCSV(path string) (Panel, error) {
	f, err := os.Open(path)
	if err != nil {
		return Panel{}, err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReaderSize(f, 1<<20))
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return Panel{}, fmt.Errorf("read header: %w", err)
	}
	if len(header) != 3+NumRatios {
		return Panel{}, fmt.Errorf("expected %d columns, got %d", 3+NumRatios, len(header))
	}

	var p Panel
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Panel{}, err
		}

		obs := Observation{
			Ticker: rec[0],
			Date:   rec[1],
			Price:  parseFloatOrNaN(rec[2]),
			Ratios: make([]float64, NumRatios),
		}
		for i := 0; i < NumRatios; i++ {
			obs.Ratios[i] = parseFloatOrNaN(rec[3+i])
		}
		p.Obs = append(p.Obs, obs)
	}

	p.sortTickerDate()
	return p, nil
}

func parseFloatOrNaN(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// sortTickerDate fixes the canonical row order: ticker, then date ascending.
func (p *Panel) sortTickerDate() {
	sort.SliceStable(p.Obs, func(i, j int) bool {
		if p.Obs[i].Ticker != p.Obs[j].Ticker {
			return p.Obs[i].Ticker < p.Obs[j].Ticker
		}
		return p.Obs[i].Date < p.Obs[j].Date
	})
}

// Dates returns the sorted distinct dates present in the panel.
func (p Panel) Dates() []string {
	seen := make(map[string]bool, len(p.Obs))
	var dates []string
	for _, o := range p.Obs {
		if !seen[o.Date] {
			seen[o.Date] = true
			dates = append(dates, o.Date)
		}
	}
	sort.Strings(dates)
	return dates
}

// Tickers returns the sorted distinct tickers present in the panel.
func (p Panel) Tickers() []string {
	seen := make(map[string]bool)
	var tickers []string
	for _, o := range p.Obs {
		if !seen[o.Ticker] {
			seen[o.Ticker] = true
			tickers = append(tickers, o.Ticker)
		}
	}
	sort.Strings(tickers)
	return tickers
}

// LatestDate returns the maximum date in the panel, or "" for an empty panel.
func (p Panel) LatestDate() string {
	latest := ""
	for _, o := range p.Obs {
		if o.Date > latest {
			latest = o.Date
		}
	}
	return latest
}

// Until returns the sub-panel with all observations dated <= date.
func (p Panel) Until(date string) Panel {
	var out Panel
	for _, o := range p.Obs {
		if o.Date <= date {
			out.Obs = append(out.Obs, o)
		}
	}
	return out
}

// CrossSection returns the observations on the given date restricted to the
// available tickers, with rows containing any NaN dropped. A nil available
// slice means all tickers.
func (p Panel) CrossSection(date string, available []string) []Observation {
	var allowed map[string]bool
	if available != nil {
		allowed = make(map[string]bool, len(available))
		for _, t := range available {
			allowed[t] = true
		}
	}

	var out []Observation
	for _, o := range p.Obs {
		if o.Date != date {
			continue
		}
		if allowed != nil && !allowed[o.Ticker] {
			continue
		}
		if hasNaN(o) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func hasNaN(o Observation) bool {
	if math.IsNaN(o.Price) {
		return true
	}
	for _, v := range o.Ratios {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
