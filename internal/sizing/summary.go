package sizing

import (
	"sort"

	"dex-exec-lab/internal/domain"
)

// Summarize computes count, mean, median, p95, p99, max and sum of values.
// Percentiles always interpolate linearly. An empty series gives a zero
// summary carrying only the name.
func Summarize(name string, values []float64) domain.CostSummary {
	s := domain.CostSummary{Name: name, Count: len(values)}
	if len(values) == 0 {
		return s
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	s.Sum = sum
	s.Mean = sum / float64(len(values))
	s.Median = Quantile(sorted, 0.50, QuantileLinear)
	s.P95 = Quantile(sorted, 0.95, QuantileLinear)
	s.P99 = Quantile(sorted, 0.99, QuantileLinear)
	s.Max = sorted[len(sorted)-1]
	return s
}

// Compare builds a policy outcome from decisions at the given positions.
// Positions whose decision has no effective cost are skipped.
func Compare(policy string, decisions []domain.SizingDecision, positions []int) domain.PolicyOutcome {
	base := make([]float64, 0, len(positions))
	capped := make([]float64, 0, len(positions))
	sizeSum, effSum := 0.0, 0.0

	for _, i := range positions {
		d := decisions[i]
		if d.EffectiveCost == nil || d.EffectiveSize == nil {
			continue
		}
		base = append(base, d.TradeSize*d.AdverseSlippage)
		capped = append(capped, *d.EffectiveCost)
		sizeSum += d.TradeSize
		effSum += *d.EffectiveSize
	}

	out := domain.PolicyOutcome{
		Policy:   policy,
		Baseline: Summarize("baseline", base),
		Capped:   Summarize(policy, capped),
	}
	out.AvoidedCost = out.Baseline.Sum - out.Capped.Sum
	if sizeSum > 0 {
		out.ExecutedNotional = effSum / sizeSum
	}
	return out
}

func allPositions(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
