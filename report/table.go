package report

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/andrewhamaty/qqq-voo-monte-carlo/models"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4D4C57"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return cellStyle
			default:
				return numberStyle
			}
		})
}

// SharpeTable renders one row per ticker with the ratio rounded to 3 decimals.
func SharpeTable(results []models.SharpeResult) string {
	t := newTable("Ticker", "Sharpe Ratio")
	for _, r := range results {
		t.Row(r.Ticker, strconv.FormatFloat(r.Ratio, 'f', 3, 64))
	}
	return t.String()
}

// SummaryTable renders the terminal value distribution of every simulated ticker.
func SummaryTable(summaries []models.EnsembleSummary) string {
	t := newTable("Ticker", "Start", "Mean", "Median", "P5", "P95", "P(loss)", "VaR 95%", "CVaR 95%")
	for _, s := range summaries {
		t.Row(
			s.Ticker,
			money(s.StartPrice),
			money(s.MeanFinalValue),
			money(s.MedianFinalValue),
			money(s.P5FinalValue),
			money(s.P95FinalValue),
			percent(s.ProbabilityOfLoss),
			percent(s.VaR95),
			percent(s.CVaR95),
		)
	}
	return t.String()
}

// UnderperformanceStatement e.g. "Probability QQQ underperforms VOO over 10 years: 33.16%"
func UnderperformanceStatement(u models.Underperformance, years int) string {
	return fmt.Sprintf("Probability %s underperforms %s over %d years: %s", u.Ticker, u.Benchmark, years, percent(u.Probability))
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func percent(p float64) string {
	return strconv.FormatFloat(p*100, 'f', 2, 64) + "%"
}
