package sizing

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-exec-lab/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func record(block uint64, z, size, slip float64) *domain.FeatureRecord {
	return &domain.FeatureRecord{
		Pool:          "p",
		BlockNumber:   block,
		Z:             ptr(z),
		TradeSize:     ptr(size),
		Slippage:      ptr(slip),
		LiquidityPrev: big.NewInt(1_000),
	}
}

func observations(zs ...float64) []Observation {
	out := make([]Observation, len(zs))
	for i, z := range zs {
		out[i] = Observation{BlockNumber: uint64(i + 1), Z: z, TradeSize: 1, Slippage: 0.1, Adverse: 0.1, Cost: 0.1}
	}
	return out
}

func TestClean(t *testing.T) {
	noLiq := record(6, 1, 1, 0.1)
	noLiq.LiquidityPrev = big.NewInt(0)
	noZ := record(7, 1, 1, 0.1)
	noZ.Z = nil

	obs := Clean([]*domain.FeatureRecord{
		record(1, 0.5, 10, 0.02),
		record(2, 0, 10, 0.02),
		record(3, 0.5, 0, 0.02),
		record(4, 0.5, 10, math.NaN()),
		record(5, math.Inf(1), 10, 0.02),
		noLiq,
		noZ,
		nil,
		record(8, 0.25, 4, -0.01),
	})

	require.Len(t, obs, 2)
	assert.Equal(t, uint64(1), obs[0].BlockNumber)
	assert.InDelta(t, 0.2, obs[0].Cost, 1e-12)
	assert.Equal(t, uint64(8), obs[1].BlockNumber)
	assert.Equal(t, -0.01, obs[1].Slippage)
	assert.Equal(t, 0.0, obs[1].Adverse)
	assert.Equal(t, 0.0, obs[1].Cost)
}

func TestSplit(t *testing.T) {
	obs := observations(1, 2, 3, 4, 5)
	train, eval := Split(obs, 0.6)
	assert.Len(t, train, 3)
	assert.Len(t, eval, 2)
	assert.Equal(t, 4.0, eval[0].Z)
}

func TestStaticCap_TrainQuantile(t *testing.T) {
	train := observations(oneToHundred()...)

	assert.Equal(t, 90.0, StaticCap(train, 0.9, QuantileLower))
	assert.InDelta(t, 90.1, StaticCap(train, 0.9, QuantileLinear), 1e-9)

	d := Decide(Observation{Z: 120, TradeSize: 10, Adverse: 0.01}, ptr(90))
	require.NotNil(t, d.Scale)
	assert.InDelta(t, 0.75, *d.Scale, 1e-12)
	assert.InDelta(t, 7.5, *d.EffectiveSize, 1e-12)
	assert.InDelta(t, 0.075, *d.EffectiveCost, 1e-12)
}

func TestRollingCaps_ExcludesCurrentRow(t *testing.T) {
	caps := RollingCaps(observations(5, 6, 7, 8), 3, 0.5, QuantileLinear)

	require.Len(t, caps, 4)
	assert.Nil(t, caps[0])
	assert.Nil(t, caps[1])
	assert.Nil(t, caps[2])
	require.NotNil(t, caps[3])
	assert.Equal(t, 6.0, *caps[3])
}

func TestRollingCaps_WindowLongerThanSeries(t *testing.T) {
	obs := observations(5, 6, 7, 8)
	for _, window := range []int{4, 5, 1_000_000_000_000} {
		caps := RollingCaps(obs, window, 0.9, QuantileLinear)
		require.Len(t, caps, 4)
		for i, c := range caps {
			assert.Nil(t, c, "window %d position %d", window, i)
		}
	}
}

func TestRollingCaps_NoLookAhead(t *testing.T) {
	base := observations(3, 9, 1, 4, 4, 7, 2, 8, 5, 6)
	want := RollingCaps(base, 4, 0.9, QuantileLinear)

	for cut := 0; cut < len(base); cut++ {
		changed := make([]Observation, len(base))
		copy(changed, base)
		for i := cut; i < len(changed); i++ {
			changed[i].Z = 1_000 + float64(i)
		}
		got := RollingCaps(changed, 4, 0.9, QuantileLinear)
		for i := 0; i <= cut; i++ {
			assert.Equal(t, want[i], got[i], "cut %d position %d", cut, i)
		}
	}
}

func TestApplyRolling_WarmupUndefined(t *testing.T) {
	decisions := ApplyRolling(observations(5, 6, 7, 8), 3, 0.5, QuantileLinear)

	for _, d := range decisions[:3] {
		assert.Nil(t, d.Cap)
		assert.Nil(t, d.Scale)
		assert.Nil(t, d.EffectiveSize)
		assert.Nil(t, d.EffectiveCost)
	}
	require.NotNil(t, decisions[3].EffectiveSize)
	assert.InDelta(t, 0.75, *decisions[3].EffectiveSize, 1e-12)
}

func TestApplyStatic_ScaleMonotonic(t *testing.T) {
	decisions := ApplyStatic(observations(1, 5, 10, 20, 40), 10)

	prev := math.Inf(1)
	for _, d := range decisions {
		require.NotNil(t, d.Scale)
		assert.LessOrEqual(t, *d.Scale, 1.0)
		assert.LessOrEqual(t, *d.Scale, prev)
		assert.LessOrEqual(t, *d.EffectiveSize, d.TradeSize)
		prev = *d.Scale
	}
	assert.Equal(t, 1.0, *decisions[2].Scale)
	assert.Equal(t, 0.5, *decisions[3].Scale)
	assert.Equal(t, 0.25, *decisions[4].Scale)
}

func TestSummarize(t *testing.T) {
	s := Summarize("cost", []float64{4, 1, 3, 2})
	assert.Equal(t, "cost", s.Name)
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 10.0, s.Sum)
	assert.Equal(t, 2.5, s.Mean)
	assert.Equal(t, 2.5, s.Median)
	assert.InDelta(t, 3.85, s.P95, 1e-9)
	assert.Equal(t, 4.0, s.Max)

	empty := Summarize("cost", nil)
	assert.Equal(t, domain.CostSummary{Name: "cost"}, empty)
}
