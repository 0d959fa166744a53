package logx

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"
)

// PrintWeightsTable - prints a portfolio allocation as an aligned table,
// longs first (largest weight), then shorts, flat positions omitted
func PrintWeightsTable(asOf, rule string, weights map[string]float64) {
	type row struct {
		ticker string
		weight float64
	}
	var rows []row
	flat := 0
	for t, w := range weights {
		if w == 0 {
			flat++
			continue
		}
		rows = append(rows, row{t, w})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].weight != rows[j].weight {
			return rows[i].weight > rows[j].weight
		}
		return rows[i].ticker < rows[j].ticker
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tas_of=%s\trule=%s\n", Channel("PORT"), asOf, rule)
	for _, r := range rows {
		side := "LONG"
		if r.weight < 0 {
			side = "SHORT"
		}
		fmt.Fprintf(w, "  %s:\t%s\t%s\n", r.ticker, side, WeightColor(r.weight))
	}
	if flat > 0 {
		fmt.Fprintf(w, "  %s\n", Dimf("(%d tickers flat)", flat))
	}
	w.Flush()
}

// NewTableWriter creates a tabwriter for custom output
func NewTableWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// PrintCrossSectionHeader - header before dumping a scored cross-section
func PrintCrossSectionHeader(date string, n int) {
	fmt.Printf("\n%s  %s  CROSS-SECTION %s (%d tickers)\n",
		C(gray, time.Now().UTC().Format("15:04:05Z")),
		Channel("DATA"),
		date, n,
	)
}
