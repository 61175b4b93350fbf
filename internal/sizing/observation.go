package sizing

import (
	"math"

	"dex-exec-lab/internal/domain"
)

// Observation is a feature record that survived cleaning.
type Observation struct {
	BlockNumber uint64
	LogIndex    uint
	Z           float64
	TradeSize   float64
	Slippage    float64 // raw, may be negative
	Adverse     float64 // max(Slippage, 0)
	Cost        float64 // TradeSize * Adverse
}

// Clean keeps records with finite positive z and trade size, finite slippage
// and a positive previous liquidity. Input order is preserved.
func Clean(records []*domain.FeatureRecord) []Observation {
	out := make([]Observation, 0, len(records))
	for _, r := range records {
		if r == nil || r.Z == nil || r.Slippage == nil || r.TradeSize == nil || r.LiquidityPrev == nil {
			continue
		}
		z, slip, size := *r.Z, *r.Slippage, *r.TradeSize
		if !finite(z) || !finite(slip) || !finite(size) {
			continue
		}
		if z <= 0 || size <= 0 || r.LiquidityPrev.Sign() <= 0 {
			continue
		}
		adverse := math.Max(slip, 0)
		out = append(out, Observation{
			BlockNumber: r.BlockNumber,
			LogIndex:    r.LogIndex,
			Z:           z,
			TradeSize:   size,
			Slippage:    slip,
			Adverse:     adverse,
			Cost:        size * adverse,
		})
	}
	return out
}

// Split divides observations chronologically at floor(n*trainFraction).
func Split(obs []Observation, trainFraction float64) (train, eval []Observation) {
	cut := int(float64(len(obs)) * trainFraction)
	if cut < 0 {
		cut = 0
	}
	if cut > len(obs) {
		cut = len(obs)
	}
	return obs[:cut], obs[cut:]
}

func zValues(obs []Observation) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = o.Z
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
