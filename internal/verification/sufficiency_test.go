package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-exec-lab/internal/domain"
	"dex-exec-lab/internal/features"
	"dex-exec-lab/internal/sizing"
)

func builtRecords(t *testing.T, n int) []*domain.FeatureRecord {
	t.Helper()
	records, err := features.Build(testEvents(n), usdcWeth)
	require.NoError(t, err)
	return records
}

func checkByName(t *testing.T, r *SufficiencyResult, name string) SufficiencyCheck {
	t.Helper()
	for _, c := range r.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %q not found", name)
	return SufficiencyCheck{}
}

func TestCheckSufficiency_SmallSample(t *testing.T) {
	// 10 events -> 9 clean rows -> 5 train, 4 eval
	cfg := sizing.DefaultConfig()
	cfg.RollingWindow = 2

	result := CheckSufficiency(builtRecords(t, 10), cfg)
	require.Len(t, result.Checks, 4)
	assert.False(t, result.AllPass)
	assert.Empty(t, result.Errors)

	assert.True(t, checkByName(t, result, "Ordering violations").Pass)

	clean := checkByName(t, result, "Clean rows")
	assert.True(t, clean.Pass)
	assert.Equal(t, "9 of 10", clean.Actual)

	rolling := checkByName(t, result, "Rolling evaluable rows")
	assert.True(t, rolling.Pass)
	assert.Equal(t, "2", rolling.Actual)

	eval := checkByName(t, result, "Evaluation rows")
	assert.False(t, eval.Pass)
	assert.Equal(t, ">= 52", eval.Threshold)
	assert.Equal(t, "4", eval.Actual)
}

func TestCheckSufficiency_AllPass(t *testing.T) {
	cfg := sizing.DefaultConfig()
	cfg.RollingWindow = 10
	cfg.Sweep = true

	// 201 events -> 200 clean rows -> 120 train, 80 eval
	result := CheckSufficiency(builtRecords(t, 201), cfg)
	require.Len(t, result.Checks, 5)
	assert.True(t, result.AllPass)
	assert.Equal(t, "80", checkByName(t, result, "Sweep rows").Actual)
}

func TestCheckSufficiency_OrderingViolations(t *testing.T) {
	records := builtRecords(t, 5)
	records[1], records[2] = records[2], records[1]
	records = append(records, records[len(records)-1])

	result := CheckSufficiency(records, sizing.DefaultConfig())
	check := checkByName(t, result, "Ordering violations")
	assert.False(t, check.Pass)
	assert.Equal(t, "2", check.Actual)
	assert.Len(t, result.Errors, 2)
	assert.False(t, result.AllPass)
}

func TestCheckSufficiency_Empty(t *testing.T) {
	result := CheckSufficiency(nil, sizing.DefaultConfig())
	assert.False(t, result.AllPass)
	assert.False(t, checkByName(t, result, "Clean rows").Pass)
	assert.Equal(t, "0", checkByName(t, result, "Rolling evaluable rows").Actual)
}
