package logx

import (
	"fmt"
	"strings"
	"time"
)

// LogTrainStart - training run header
func LogTrainStart(model string, rows, valRows, epochs, batchSize int) {
	fmt.Printf("%s  %s  FIT %s: rows=%s (val=%s) epochs=%d batch=%d\n",
		C(gray, time.Now().UTC().Format("15:04:05Z")),
		Channel("TRN "),
		model,
		formatNumber(rows), formatNumber(valRows), epochs, batchSize,
	)
}

// LogEpoch - single line per validation pass
// improved marks epochs where the validation loss made a new low
func LogEpoch(epoch, epochs int, trainLoss, valLoss, bestVal float64, improved bool, elapsed time.Duration) {
	marker := " "
	if improved {
		marker = Success("*")
	}
	fmt.Printf("%s  %s  epoch %3d/%d  train_loss=%s  val_loss=%s  best=%s %s (%s)\n",
		C(gray, time.Now().UTC().Format("15:04:05Z")),
		Channel("VAL "),
		epoch, epochs,
		LossColor(trainLoss), LossColor(valLoss), LossColor(bestVal),
		marker,
		formatDuration(elapsed),
	)
}

// LogTrainComplete - training run footer
func LogTrainComplete(model string, steps int, bestVal float64, elapsed time.Duration) {
	fmt.Printf("%s  %s  FIT DONE %s: steps=%s best_val_loss=%s runtime=%s\n",
		C(gray, time.Now().UTC().Format("15:04:05Z")),
		Channel("TRN "),
		model,
		formatNumber(steps), LossColor(bestVal), formatDuration(elapsed),
	)
}

// LogCheckpoint - checkpoint saved message
func LogCheckpoint(path string, valLoss float64) {
	fmt.Printf("%s  %s  checkpoint saved: %s (val_loss=%s)\n",
		C(gray, time.Now().UTC().Format("15:04:05Z")),
		Channel("VAL "),
		path, LossColor(valLoss),
	)
}

// LogCheckpointLoad - pretrained checkpoint loaded message
func LogCheckpointLoad(path string, valLoss float64) {
	fmt.Printf("%s  %s  pretrained weights loaded: %s (val_loss=%s)\n",
		C(gray, time.Now().UTC().Format("15:04:05Z")),
		Channel("TRN "),
		path, LossColor(valLoss),
	)
}

// LogPanelLoaded - panel summary after load
func LogPanelLoaded(source string, rows, tickers, dates int) {
	fmt.Printf("%s  %s  panel loaded from %s: rows=%s tickers=%d dates=%d\n",
		C(gray, time.Now().UTC().Format("15:04:05Z")),
		Channel("DATA"),
		source,
		formatNumber(rows), tickers, dates,
	)
}

// LogAllocation - one-line allocation summary
func LogAllocation(asOf, rule string, long, short, flat int) {
	fmt.Printf("%s  %s  allocation as of %s (%s): long=%d short=%d flat=%d\n",
		C(gray, time.Now().UTC().Format("15:04:05Z")),
		Channel("PORT"),
		asOf, rule, long, short, flat,
	)
}

// LogRebalance - one backtest rebalance line
func LogRebalance(period int, date string, ret float64, equity float64, positions int) {
	fmt.Printf("%s  %s  period %3d %s  ret=%s  equity=%.4f  positions=%d\n",
		C(gray, time.Now().UTC().Format("15:04:05Z")),
		Channel("BT  "),
		period, date, ReturnColor(ret), equity, positions,
	)
}

// LogBacktestDashboard - boxed summary of a backtest run
func LogBacktestDashboard(rule string, periods int, totalReturn, geoAvg, maxDD, winRate float64, elapsed time.Duration) {
	fmt.Printf("\n%s  %s\n", C(gray, time.Now().UTC().Format("15:04:05Z")), Channel("BT  "))
	fmt.Printf("%s", BoxHeader("BACKTEST", 54))
	fmt.Printf("%s", BoxRow(fmt.Sprintf("Rule: %s | Periods: %d", rule, periods), 54))
	fmt.Printf("%s", BoxRow(fmt.Sprintf("Total: %s | Geo/period: %s", ReturnColor(totalReturn), ReturnColor(geoAvg)), 54))
	fmt.Printf("%s", BoxRow(fmt.Sprintf("MaxDD: %s | WinRate: %s", DDColor(maxDD), WinRateColor(winRate)), 54))
	fmt.Printf("%s", BoxRow(fmt.Sprintf("Runtime: %s", formatDuration(elapsed)), 54))
	fmt.Printf("%s\n", BoxFooter(54))
}

// formatDuration formats a duration in a human-readable way
// Shows hours, minutes, and seconds (e.g., "1h23m45s" or "45m32s" or "23s")
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", hours, minutes)
}

// ColorPercent returns a color-coded percentage string
// Low (<10%) is green, medium (10-30%) is yellow, high (>30%) is red
func ColorPercent(pct float64) string {
	if pct < 10 {
		return Success(fmt.Sprintf("%.1f%%", pct))
	}
	if pct < 30 {
		return Warn(fmt.Sprintf("%.1f%%", pct))
	}
	return Error(fmt.Sprintf("%.1f%%", pct))
}

// Box formatting helpers for compact display

// BoxHeader creates a top border for a boxed section with title
func BoxHeader(title string, width int) string {
	if width < 20 {
		width = 50
	}
	// Create border like: ┌─ TITLE ─────────────────┐
	padding := width - len(title) - 6
	if padding < 2 {
		padding = 2
	}
	return fmt.Sprintf("┌─ %s %s┐\n", C(bold, title), C(gray, strings.Repeat("─", padding)+"─"))
}

// BoxFooter creates a bottom border for a boxed section
func BoxFooter(width int) string {
	if width < 20 {
		width = 50
	}
	return C(gray, "└"+strings.Repeat("─", width-2)+"┘") + "\n"
}

// BoxRow creates a content row for a boxed section (auto-pads to width)
func BoxRow(content string, width int) string {
	if width < 20 {
		width = 50
	}
	padding := width - len(content) - 4 // -4 for "│ " and " │"
	if padding < 0 {
		padding = 0
	}
	return fmt.Sprintf("│ %s%s │\n", content, C(gray, strings.Repeat(" ", padding)))
}

// formatNumber formats a number with thousands separators (e.g., 12,345)
func formatNumber(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var result []string
	for i := len(s); i > 0; i -= 3 {
		start := i - 3
		if start < 0 {
			start = 0
		}
		result = append([]string{s[start:i]}, result...)
	}
	return strings.Join(result, ",")
}

// FormatNumberSimple formats a number with thousands separators (exported version)
func FormatNumberSimple(n int) string {
	return formatNumber(n)
}
