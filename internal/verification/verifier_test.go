package verification

import (
	"context"
	"math/big"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-exec-lab/internal/domain"
	"dex-exec-lab/internal/features"
	"dex-exec-lab/internal/sizing"
	"dex-exec-lab/internal/storage/memory"
)

const (
	testVenue = "v"
	testPool  = "P"
)

var usdcWeth = features.Decimals{Token0: 6, Token1: 18}

func testEvents(n int) []*domain.SwapEvent {
	q96 := new(big.Int).Lsh(big.NewInt(1), 96)
	out := make([]*domain.SwapEvent, n)
	for i := range out {
		k := int64(i + 1)
		out[i] = &domain.SwapEvent{
			Venue:        testVenue,
			Pool:         testPool,
			BlockNumber:  uint64(10 * k),
			Amount0:      big.NewInt(1_000_000 * k),
			Amount1:      big.NewInt(-400_000_000_000_000 * k),
			SqrtPriceX96: new(big.Int).Mul(big.NewInt(20_000+k), q96),
			Liquidity:    big.NewInt(50_000_000 + k),
		}
	}
	return out
}

type testEnv struct {
	events   *memory.SwapEventStore
	features *memory.FeatureStore
	verifier *Verifier
}

func newTestEnv(t *testing.T, n int) *testEnv {
	t.Helper()
	ctx := context.Background()

	env := &testEnv{
		events:   memory.NewSwapEventStore(),
		features: memory.NewFeatureStore(),
	}
	_, err := env.events.InsertIfAbsent(ctx, testEvents(n))
	require.NoError(t, err)

	logger, _ := logtest.NewNullLogger()
	_, err = features.NewRunner(features.RunnerOptions{
		Events:   env.events,
		Features: env.features,
		Decimals: usdcWeth,
		Logger:   logger,
	}).Run(ctx, testVenue, testPool)
	require.NoError(t, err)

	env.verifier = NewVerifier(VerifierOptions{
		Events:   env.events,
		Features: env.features,
		Decimals: usdcWeth,
		Backtest: sizing.DefaultConfig(),
		Logger:   logger,
	})
	return env
}

func (e *testEnv) stored(t *testing.T) []*domain.FeatureRecord {
	t.Helper()
	rows, err := e.features.GetByPool(context.Background(), testPool)
	require.NoError(t, err)
	return rows
}

func TestVerifyPool_Match(t *testing.T) {
	env := newTestEnv(t, 10)

	report, err := env.verifier.Check(context.Background(), testVenue, testPool)
	require.NoError(t, err)
	assert.True(t, report.Match())
	assert.Equal(t, 10, report.Events)
	assert.Equal(t, 10, report.StoredRecords)
	assert.Equal(t, 10, report.RebuiltRecords)
	assert.Equal(t, 10, report.Matched)
	assert.Empty(t, report.Results)
	require.NotNil(t, report.Sufficiency)
}

func TestVerifyPool_DetectsDivergence(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10)

	rows := env.stored(t)
	z := *rows[4].Z * 1.01
	rows[4].Z = &z
	rows[6].LiquidityPrev = big.NewInt(1)
	require.NoError(t, env.features.Rebuild(ctx, testPool, rows))

	report, err := env.verifier.Check(ctx, testVenue, testPool)
	require.ErrorIs(t, err, ErrMismatch)
	require.NotNil(t, report)
	assert.Equal(t, 2, report.Divergent)
	assert.Equal(t, 8, report.Matched)
	require.Len(t, report.Results, 2)

	assert.Equal(t, rows[4].BlockNumber, report.Results[0].BlockNumber)
	require.Len(t, report.Results[0].Divergences, 1)
	assert.Equal(t, "Z", report.Results[0].Divergences[0].Field)

	fields := make([]string, 0)
	for _, d := range report.Results[1].Divergences {
		fields = append(fields, d.Field)
	}
	assert.Contains(t, fields, "LiquidityPrev")
}

func TestVerifyPool_MissingAndExtraRows(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10)

	rows := env.stored(t)
	extra := *rows[0]
	extra.BlockNumber = 999
	rows = append(rows[1:], &extra)
	require.NoError(t, env.features.Rebuild(ctx, testPool, rows))

	report, err := env.verifier.VerifyPool(ctx, testVenue, testPool)
	require.NoError(t, err)
	assert.False(t, report.Match())
	assert.Equal(t, 1, report.Missing)
	assert.Equal(t, 1, report.Extra)
	assert.Equal(t, 9, report.Matched)
}

func TestVerifyPool_EmptyPool(t *testing.T) {
	env := newTestEnv(t, 0)

	report, err := env.verifier.Check(context.Background(), testVenue, testPool)
	require.NoError(t, err)
	assert.True(t, report.Match())
	assert.False(t, report.Sufficiency.AllPass)
}

func TestCompareFeatureRecords_Tolerance(t *testing.T) {
	a, b := 2500.0, 2500.0*(1+1e-12)
	stored := &domain.FeatureRecord{Price: &a, Liquidity: big.NewInt(5)}
	rebuilt := &domain.FeatureRecord{Price: &b, Liquidity: big.NewInt(5)}
	assert.Empty(t, CompareFeatureRecords(stored, rebuilt))

	c := 2500.1
	rebuilt.Price = &c
	assert.Len(t, CompareFeatureRecords(stored, rebuilt), 1)

	rebuilt.Price = nil
	d := CompareFeatureRecords(stored, rebuilt)
	require.Len(t, d, 1)
	assert.Equal(t, 2500.0, d[0].Expected)
	assert.Nil(t, d[0].Actual)
}
