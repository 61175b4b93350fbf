package sizing

import "dex-exec-lab/internal/domain"

const (
	sweepFrom   = 0.50
	sweepTo     = 0.99
	sweepPoints = 15
)

// SweepMinRows is the evaluation size below which CapSweep returns nothing.
const SweepMinRows = 50

// SweepQuantiles returns the cap quantiles visited by CapSweep.
func SweepQuantiles() []float64 {
	return linspace(sweepFrom, sweepTo, sweepPoints)
}

// CapSweep evaluates a static cap taken at each sweep quantile of the training
// z values against the whole evaluation set. Returns nil when the evaluation
// set has fewer than 50 observations.
func CapSweep(train, eval []Observation, method QuantileMethod) []domain.CapSweepRow {
	if len(eval) < SweepMinRows || len(train) == 0 {
		return nil
	}

	rows := make([]domain.CapSweepRow, 0, sweepPoints)
	for _, q := range SweepQuantiles() {
		zCap := StaticCap(train, q, method)
		decisions := ApplyStatic(eval, zCap)
		outcome := Compare("static", decisions, allPositions(len(decisions)))
		rows = append(rows, domain.CapSweepRow{
			Quantile:         q,
			Cap:              zCap,
			P99Cost:          outcome.Capped.P99,
			TotalCost:        outcome.Capped.Sum,
			ExecutedNotional: outcome.ExecutedNotional,
		})
	}
	return rows
}

func linspace(from, to float64, n int) []float64 {
	if n == 1 {
		return []float64{from}
	}
	out := make([]float64, n)
	step := (to - from) / float64(n-1)
	for i := range out {
		out[i] = from + float64(i)*step
	}
	out[n-1] = to
	return out
}
