package sqlite

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-exec-lab/internal/domain"
	"dex-exec-lab/internal/storage"
)

const venue = "arbitrum_42161"

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "swaps.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func event(pool string, block uint64, index uint) *domain.SwapEvent {
	liq, _ := new(big.Int).SetString("340282366920938463463374607431768211455", 10) // max uint128
	return &domain.SwapEvent{
		Venue:          venue,
		Pool:           pool,
		BlockNumber:    block,
		LogIndex:       index,
		TxHash:         "0xtx",
		Sender:         "0xs",
		Recipient:      "0xr",
		Amount0:        big.NewInt(-5),
		Amount1:        big.NewInt(7),
		SqrtPriceX96:   big.NewInt(1 << 50),
		Liquidity:      liq,
		Tick:           -10,
		BlockTimestamp: 1700000000 + int64(block),
	}
}

func TestSwapEventStore_RoundTripAndIdempotence(t *testing.T) {
	db := openTestDB(t)
	store := NewSwapEventStore(db)
	ctx := context.Background()

	n, err := store.InsertIfAbsent(ctx, []*domain.SwapEvent{event("P", 5, 1), event("P", 5, 0), event("P", 4, 9)})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = store.InsertIfAbsent(ctx, []*domain.SwapEvent{event("P", 5, 1), event("P", 6, 0)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	events, err := store.ScanPool(ctx, venue, "P")
	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, uint64(4), events[0].BlockNumber)
	assert.Equal(t, uint(0), events[1].LogIndex)
	assert.Equal(t, uint(1), events[2].LogIndex)
	assert.Equal(t, uint64(6), events[3].BlockNumber)

	assert.Equal(t, "340282366920938463463374607431768211455", events[0].Liquidity.String())
	assert.Equal(t, int64(-5), events[0].Amount0.Int64())
	assert.Equal(t, int32(-10), events[0].Tick)

	last, ok, err := store.LastBlock(ctx, venue, "P")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(6), last)

	_, ok, err = store.LastBlock(ctx, venue, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSwapEventStore_ReinsertKeepsOriginal(t *testing.T) {
	store := NewSwapEventStore(openTestDB(t))
	ctx := context.Background()

	_, err := store.InsertIfAbsent(ctx, []*domain.SwapEvent{event("P", 5, 0)})
	require.NoError(t, err)

	changed := event("P", 5, 0)
	changed.Amount0 = big.NewInt(99)
	changed.TxHash = "0xother"
	changed.BlockTimestamp = 1
	n, err := store.InsertIfAbsent(ctx, []*domain.SwapEvent{changed})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	events, err := store.ScanPool(ctx, venue, "P")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(-5), events[0].Amount0.Int64())
	assert.Equal(t, "0xtx", events[0].TxHash)
	assert.Equal(t, int64(1700000005), events[0].BlockTimestamp)
}

func TestSwapEventStore_InvalidInput(t *testing.T) {
	store := NewSwapEventStore(openTestDB(t))

	bad := event("P", 1, 0)
	bad.SqrtPriceX96 = nil
	_, err := store.InsertIfAbsent(context.Background(), []*domain.SwapEvent{bad})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestFeatureStore_RebuildKeepsNulls(t *testing.T) {
	db := openTestDB(t)
	store := NewFeatureStore(db)
	ctx := context.Background()

	price := 2500.0
	z := 2e-8
	records := []*domain.FeatureRecord{
		{Pool: "P", BlockNumber: 1, LogIndex: 0, Price: &price, Liquidity: big.NewInt(50_000_000)},
		{Pool: "P", BlockNumber: 2, LogIndex: 0, Price: &price, RefPrice: &price, Z: &z,
			Liquidity: big.NewInt(50_000_001), LiquidityPrev: big.NewInt(50_000_000)},
	}
	require.NoError(t, store.Rebuild(ctx, "P", records))

	got, err := store.GetByPool(ctx, "P")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Nil(t, got[0].RefPrice)
	assert.Nil(t, got[0].LiquidityPrev)
	assert.Nil(t, got[0].Z)
	require.NotNil(t, got[1].Z)
	assert.InDelta(t, 2e-8, *got[1].Z, 1e-20)
	assert.Equal(t, "50000000", got[1].LiquidityPrev.String())

	// Rebuild fully replaces the pool's rows
	require.NoError(t, store.Rebuild(ctx, "P", records[:1]))
	got, err = store.GetByPool(ctx, "P")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
