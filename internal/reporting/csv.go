package reporting

import (
	"fmt"
	"strconv"
	"strings"

	"dex-exec-lab/internal/domain"
)

// RenderDecisionsCSV renders per-record sizing decisions as CSV.
// Policy columns carry suffix (e.g. "roll" gives z_cap_roll). Undefined values are empty.
func RenderDecisionsCSV(suffix string, decisions []domain.SizingDecision) string {
	var sb strings.Builder

	// Header
	sb.WriteString("block_number,log_index,z,trade_size,adverse_slippage,")
	sb.WriteString(fmt.Sprintf("z_cap_%[1]s,scale_%[1]s,size_eff_%[1]s,cost_eff_%[1]s\n", suffix))

	// Rows
	for _, d := range decisions {
		sb.WriteString(fmt.Sprintf("%d,%d,%s,%s,%s,%s,%s,%s,%s\n",
			d.BlockNumber,
			d.LogIndex,
			formatFloat(d.Z),
			formatFloat(d.TradeSize),
			formatFloat(d.AdverseSlippage),
			formatNullable(d.Cap),
			formatNullable(d.Scale),
			formatNullable(d.EffectiveSize),
			formatNullable(d.EffectiveCost),
		))
	}

	return sb.String()
}

// RenderTailBinsCSV renders tail-risk bins as CSV.
func RenderTailBinsCSV(bins []domain.TailRiskBin) string {
	var sb strings.Builder
	sb.WriteString("z_low,z_high,count,p95,p99,max\n")
	for _, b := range bins {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%s,%s,%s\n",
			formatFloat(b.ZLow), formatFloat(b.ZHigh), b.Count,
			formatFloat(b.P95), formatFloat(b.P99), formatFloat(b.Max)))
	}
	return sb.String()
}

// RenderCapSweepCSV renders the static cap sweep as CSV.
func RenderCapSweepCSV(rows []domain.CapSweepRow) string {
	var sb strings.Builder
	sb.WriteString("z_cap_quantile,z_cap,p99_cost_eff,total_cost_eff,notional_exec_frac\n")
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%.4f,%s,%s,%s,%.6f\n",
			r.Quantile, formatFloat(r.Cap), formatFloat(r.P99Cost),
			formatFloat(r.TotalCost), r.ExecutedNotional))
	}
	return sb.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatNullable(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
