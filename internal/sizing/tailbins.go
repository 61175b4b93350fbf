package sizing

import (
	"sort"

	"dex-exec-lab/internal/domain"
)

// DefaultTailBins is the number of z-quantile bins used for tail risk.
const DefaultTailBins = 10

// TailRiskBins splits records with z > 0 and finite slippage into n
// equal-count bins on z and summarizes the raw slippage of each bin.
// Bin edges are z quantiles; repeated edges collapse, so fewer than n bins
// may come back. Intervals are (low, high], the first one closed on the left.
func TailRiskBins(records []*domain.FeatureRecord, n int) []domain.TailRiskBin {
	if n < 1 {
		n = DefaultTailBins
	}

	var zs, slips []float64
	for _, r := range records {
		if r == nil || r.Z == nil || r.Slippage == nil {
			continue
		}
		if !(*r.Z > 0) || !finite(*r.Z) || !finite(*r.Slippage) {
			continue
		}
		zs = append(zs, *r.Z)
		slips = append(slips, *r.Slippage)
	}
	if len(zs) == 0 {
		return nil
	}

	sortedZ := make([]float64, len(zs))
	copy(sortedZ, zs)
	sort.Float64s(sortedZ)

	edges := make([]float64, 0, n+1)
	for i := 0; i <= n; i++ {
		e := Quantile(sortedZ, float64(i)/float64(n), QuantileLinear)
		if len(edges) > 0 && e == edges[len(edges)-1] {
			continue
		}
		edges = append(edges, e)
	}
	if len(edges) < 2 {
		return nil
	}

	nb := len(edges) - 1
	groups := make([][]float64, nb)
	for i, z := range zs {
		b := sort.SearchFloat64s(edges[1:], z)
		if b >= nb {
			b = nb - 1
		}
		groups[b] = append(groups[b], slips[i])
	}

	out := make([]domain.TailRiskBin, 0, nb)
	for b, g := range groups {
		if len(g) == 0 {
			continue
		}
		sort.Float64s(g)
		out = append(out, domain.TailRiskBin{
			ZLow:  edges[b],
			ZHigh: edges[b+1],
			Count: len(g),
			P95:   Quantile(g, 0.95, QuantileLinear),
			P99:   Quantile(g, 0.99, QuantileLinear),
			Max:   g[len(g)-1],
		})
	}
	return out
}
