package clickhouse

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-exec-lab/internal/domain"
	"dex-exec-lab/internal/storage"
)

func ptr[T any](v T) *T {
	return &v
}

func TestFeatureStore_RebuildAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewFeatureStore(conn)

	records := []*domain.FeatureRecord{
		{Pool: "P", BlockNumber: 10, LogIndex: 1, Price: ptr(2500.0), Liquidity: big.NewInt(50_000_000), TradeSize: ptr(1.0)},
		{
			Pool: "P", BlockNumber: 10, LogIndex: 4,
			Price: ptr(2501.0), RefPrice: ptr(2500.0), ExecPrice: ptr(2502.0), Slippage: ptr(0.0008),
			TradeSize: ptr(1.0), Liquidity: big.NewInt(50_000_100), LiquidityPrev: big.NewInt(50_000_000), Z: ptr(2e-8),
		},
	}

	require.NoError(t, store.Rebuild(ctx, "P", records))

	got, err := store.GetByPool(ctx, "P")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Nil(t, got[0].RefPrice)
	assert.Nil(t, got[0].LiquidityPrev)
	assert.Nil(t, got[0].Z)
	assert.Equal(t, uint(4), got[1].LogIndex)
	require.NotNil(t, got[1].Slippage)
	assert.InDelta(t, 0.0008, *got[1].Slippage, 1e-12)
	assert.Equal(t, "50000000", got[1].LiquidityPrev.String())
}

func TestFeatureStore_RebuildReplaces(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewFeatureStore(conn)

	first := []*domain.FeatureRecord{
		{Pool: "P", BlockNumber: 1}, {Pool: "P", BlockNumber: 2}, {Pool: "P", BlockNumber: 3},
	}
	require.NoError(t, store.Rebuild(ctx, "P", first))
	require.NoError(t, store.Rebuild(ctx, "Q", []*domain.FeatureRecord{{Pool: "Q", BlockNumber: 1}}))
	require.NoError(t, store.Rebuild(ctx, "P", first[:1]))

	p, err := store.GetByPool(ctx, "P")
	require.NoError(t, err)
	assert.Len(t, p, 1)

	q, err := store.GetByPool(ctx, "Q")
	require.NoError(t, err)
	assert.Len(t, q, 1)
}

func TestFeatureStore_InvalidInput(t *testing.T) {
	store := NewFeatureStore(nil)

	err := store.Rebuild(context.Background(), "", nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.Rebuild(context.Background(), "P", []*domain.FeatureRecord{{Pool: "Q"}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
