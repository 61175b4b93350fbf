package backend

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-exec-lab/internal/config"
	"dex-exec-lab/internal/domain"
	"dex-exec-lab/internal/storage/memory"
	"dex-exec-lab/internal/storage/sqlite"
)

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{Events: config.BackendMemory, Features: config.BackendMemory})
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &memory.SwapEventStore{}, s.Events)
	assert.IsType(t, &memory.FeatureStore{}, s.Features)
}

func TestOpen_SQLiteSharesFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "univ3.db")
	s, err := Open(ctx, config.StorageConfig{Events: config.BackendSQLite, Features: config.BackendSQLite, SQLitePath: path})
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &sqlite.SwapEventStore{}, s.Events)
	assert.IsType(t, &sqlite.FeatureStore{}, s.Features)
	assert.Len(t, s.closers, 1)

	n, err := s.Events.InsertIfAbsent(ctx, []*domain.SwapEvent{{
		Venue: "v", Pool: "0xpool", BlockNumber: 1,
		Amount0: big.NewInt(1), Amount1: big.NewInt(-1),
		SqrtPriceX96: big.NewInt(1), Liquidity: big.NewInt(1),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Events: "mysql", Features: config.BackendMemory})
	assert.Error(t, err)

	_, err = Open(context.Background(), config.StorageConfig{Events: config.BackendMemory, Features: "parquet"})
	assert.Error(t, err)
}
