package sizing

import (
	"math"

	"dex-exec-lab/internal/domain"
)

// Scale returns min(1, cap/z).
func Scale(zCap, z float64) float64 {
	return math.Min(1, zCap/z)
}

// Decide sizes one observation under cap. A nil cap yields a decision with
// nil cap, scale, effective size and effective cost.
func Decide(o Observation, zCap *float64) domain.SizingDecision {
	d := domain.SizingDecision{
		BlockNumber:     o.BlockNumber,
		LogIndex:        o.LogIndex,
		Z:               o.Z,
		TradeSize:       o.TradeSize,
		AdverseSlippage: o.Adverse,
	}
	if zCap == nil {
		return d
	}
	c := *zCap
	scale := Scale(c, o.Z)
	size := o.TradeSize * scale
	cost := size * o.Adverse
	d.Cap = &c
	d.Scale = &scale
	d.EffectiveSize = &size
	d.EffectiveCost = &cost
	return d
}

// StaticCap returns the q-quantile of the training z values.
func StaticCap(train []Observation, q float64, method QuantileMethod) float64 {
	return quantileOf(zValues(train), q, method)
}

// ApplyStatic sizes every observation under one fixed cap.
func ApplyStatic(obs []Observation, zCap float64) []domain.SizingDecision {
	out := make([]domain.SizingDecision, len(obs))
	for i, o := range obs {
		out[i] = Decide(o, &zCap)
	}
	return out
}

// RollingCaps returns, for each position t, the q-quantile of z over
// positions [t-window, t). Positions before the window fills are nil.
// The value at t never depends on z at t or later.
func RollingCaps(obs []Observation, window int, q float64, method QuantileMethod) []*float64 {
	caps := make([]*float64, len(obs))
	// a window longer than the series never fills
	if window < 1 || window >= len(obs) {
		return caps
	}
	w := NewWindow(window)
	for t, o := range obs {
		if w.Full() {
			c := w.Quantile(q, method)
			caps[t] = &c
		}
		w.Push(o.Z)
	}
	return caps
}

// ApplyRolling sizes each observation under its backward-looking rolling cap.
func ApplyRolling(obs []Observation, window int, q float64, method QuantileMethod) []domain.SizingDecision {
	caps := RollingCaps(obs, window, q, method)
	out := make([]domain.SizingDecision, len(obs))
	for i, o := range obs {
		out[i] = Decide(o, caps[i])
	}
	return out
}
