package reporting

import (
	"fmt"
	"strings"
	"time"

	"dex-exec-lab/internal/domain"
)

// RenderMarkdown renders a backtest report as Markdown string.
func RenderMarkdown(r *domain.BacktestReport, generatedAt time.Time) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Z-Cap Sizing Backtest\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", generatedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: `%s` | Pool: `%s`\n\n", r.RunID, r.Pool))

	// Parameters
	sb.WriteString("## Parameters\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Train Fraction | %.2f |\n", r.TrainFraction))
	sb.WriteString(fmt.Sprintf("| Static Quantile | %.2f |\n", r.StaticQuantile))
	sb.WriteString(fmt.Sprintf("| Static Cap | %.6g (%s) |\n", r.StaticCap, r.StaticCapSource))
	sb.WriteString(fmt.Sprintf("| Rolling Window | %d |\n", r.RollingWindow))
	sb.WriteString(fmt.Sprintf("| Rolling Quantile | %.2f |\n", r.RollingQuantile))
	sb.WriteString("\n")

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Rows Loaded | %d |\n", r.RowsLoaded))
	sb.WriteString(fmt.Sprintf("| Rows Cleaned | %d |\n", r.RowsCleaned))
	sb.WriteString(fmt.Sprintf("| Train Rows | %d |\n", r.TrainRows))
	sb.WriteString(fmt.Sprintf("| Eval Rows | %d |\n", r.EvalRows))
	sb.WriteString(fmt.Sprintf("| Rolling Evaluable | %d (%.1f%%) |\n", r.RollingEvaluable, r.RollingCoverage*100))
	sb.WriteString("\n")

	// Static over full eval
	sb.WriteString("## Static Cap (full evaluation set)\n\n")
	writeOutcomeTable(&sb, r.StaticFull)

	// Comparison
	sb.WriteString("## Static vs Rolling (rolling-evaluable rows)\n\n")
	if r.RollingEvaluable > 0 {
		writeOutcomeTable(&sb, r.Static, r.Rolling)
	} else {
		sb.WriteString("Rolling window never filled; no comparable rows.\n\n")
	}

	// Tail bins
	if len(r.TailBins) > 0 {
		sb.WriteString("## Slippage Tail by z Bin\n\n")
		sb.WriteString("| z Range | Count | P95 | P99 | Max |\n")
		sb.WriteString("|---------|-------|-----|-----|-----|\n")
		for _, b := range r.TailBins {
			sb.WriteString(fmt.Sprintf("| %.3g to %.3g | %d | %.6g | %.6g | %.6g |\n",
				b.ZLow, b.ZHigh, b.Count, b.P95, b.P99, b.Max))
		}
		sb.WriteString("\n")
	}

	// Sweep
	if len(r.Sweep) > 0 {
		sb.WriteString("## Cap Quantile Sweep\n\n")
		sb.WriteString("| Quantile | Cap | P99 Cost | Total Cost | Notional Executed |\n")
		sb.WriteString("|----------|-----|----------|------------|-------------------|\n")
		for _, s := range r.Sweep {
			sb.WriteString(fmt.Sprintf("| %.3f | %.6g | %.6g | %.6g | %.4f |\n",
				s.Quantile, s.Cap, s.P99Cost, s.TotalCost, s.ExecutedNotional))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func writeOutcomeTable(sb *strings.Builder, outcomes ...domain.PolicyOutcome) {
	sb.WriteString("| Series | N | Mean | Median | P95 | P99 | Max | Total |\n")
	sb.WriteString("|--------|---|------|--------|-----|-----|-----|-------|\n")
	writeSummaryRow(sb, outcomes[0].Baseline)
	for _, o := range outcomes {
		writeSummaryRow(sb, o.Capped)
	}
	sb.WriteString("\n")
	for _, o := range outcomes {
		sb.WriteString(fmt.Sprintf("- **%s**: avoided cost %.6g, notional executed %.2f%%\n",
			o.Policy, o.AvoidedCost, o.ExecutedNotional*100))
	}
	sb.WriteString("\n")
}

func writeSummaryRow(sb *strings.Builder, s domain.CostSummary) {
	sb.WriteString(fmt.Sprintf("| %s | %d | %.6g | %.6g | %.6g | %.6g | %.6g | %.6g |\n",
		s.Name, s.Count, s.Mean, s.Median, s.P95, s.P99, s.Max, s.Sum))
}
