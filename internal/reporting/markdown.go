package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Feature Extraction Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.Ticker != "" {
		sb.WriteString(fmt.Sprintf("Ticker: %s\n\n", r.Ticker))
	}

	if r.Run != nil {
		sb.WriteString("## Run\n\n")
		sb.WriteString("| Run ID | Mode | Succeeded | Skipped | Failed | Duration |\n")
		sb.WriteString("|--------|------|-----------|---------|--------|----------|\n")
		sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %d | %s |\n\n",
			r.Run.RunID, r.Run.Mode, r.Run.Succeeded, r.Run.Skipped, r.Run.Failed,
			r.Run.Duration.Round(time.Millisecond)))
	}

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Records | %d |\n", r.DataSummary.TotalRecords))
	sb.WriteString(fmt.Sprintf("| Completed | %d |\n", r.DataSummary.CompletedRecords))
	sb.WriteString(fmt.Sprintf("| Failed | %d |\n", r.DataSummary.FailedRecords))
	sb.WriteString(fmt.Sprintf("| Tickers | %d |\n", r.DataSummary.Tickers))
	sb.WriteString(fmt.Sprintf("| Date Range Start | %s |\n", formatTime(r.DataSummary.DateRangeStart)))
	sb.WriteString(fmt.Sprintf("| Date Range End | %s |\n", formatTime(r.DataSummary.DateRangeEnd)))
	sb.WriteString("\n")

	// Data Quality
	sb.WriteString("## Data Quality\n\n")
	if r.DataSummary.CompletedRecords > 0 {
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Mean Completeness | %.4f |\n", r.DataQuality.MeanCompleteness))
		sb.WriteString(fmt.Sprintf("| Min Completeness | %.4f |\n", r.DataQuality.MinCompleteness))
		sb.WriteString(fmt.Sprintf("| Fully Complete | %d |\n", r.DataQuality.FullyComplete))
		sb.WriteString(fmt.Sprintf("| Approximated Windows | %d |\n", r.DataQuality.ApproximatedWindows))
		sb.WriteString("\n")

		if len(r.DataQuality.MostMissing) > 0 {
			sb.WriteString("### Most Missing Windows\n\n")
			sb.WriteString("| Window | Records |\n")
			sb.WriteString("|--------|---------|\n")
			for _, m := range r.DataQuality.MostMissing {
				sb.WriteString(fmt.Sprintf("| %s | %d |\n", m.Window, m.Count))
			}
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString("No completed records.\n\n")
	}

	// Regimes
	sb.WriteString("## Market Regimes\n\n")
	if len(r.Regimes) > 0 {
		sb.WriteString("| Benchmark | Regime | Records |\n")
		sb.WriteString("|-----------|--------|---------|\n")
		for _, row := range r.Regimes {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d |\n", row.Benchmark, row.Regime, row.Count))
		}
	} else {
		sb.WriteString("No benchmark regimes available.\n")
	}
	sb.WriteString("\n")

	// Failures
	sb.WriteString("## Failed Events\n\n")
	if len(r.Failures) > 0 {
		sb.WriteString("| Event | Ticker | Error |\n")
		sb.WriteString("|-------|--------|-------|\n")
		for _, f := range r.Failures {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", f.EventID, f.Ticker, escapeCell(f.Error)))
		}
	} else {
		sb.WriteString("No failed events.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
