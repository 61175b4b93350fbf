package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-exec-lab/internal/chain/stub"
)

type fakeTimestampStore struct {
	data    map[uint64]int64
	getErr  error
	puts    int
	lookups int
}

func (s *fakeTimestampStore) GetBlockTimestamp(_ context.Context, block uint64) (int64, bool, error) {
	s.lookups++
	if s.getErr != nil {
		return 0, false, s.getErr
	}
	ts, ok := s.data[block]
	return ts, ok, nil
}

func (s *fakeTimestampStore) PutBlockTimestamp(_ context.Context, block uint64, ts int64) error {
	s.puts++
	s.data[block] = ts
	return nil
}

func TestTimestampCache_LocalHit(t *testing.T) {
	src := stub.NewLogSource()
	src.SetTimestamp(10, 1000)
	cache := NewTimestampCache(src, nil, quietLogger(), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ts, err := cache.Get(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), ts)
	}
	assert.Equal(t, 1, src.TimestampCalls[10])
	assert.Equal(t, 1, cache.Len())
}

func TestTimestampCache_RemoteBeforeAdapter(t *testing.T) {
	src := stub.NewLogSource()
	src.SetTimestamp(11, 2000)
	remote := &fakeTimestampStore{data: map[uint64]int64{10: 1000}}
	cache := NewTimestampCache(src, remote, quietLogger(), nil)
	ctx := context.Background()

	ts, err := cache.Get(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), ts)
	assert.Zero(t, src.TimestampCalls[10])

	ts, err = cache.Get(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), ts)
	assert.Equal(t, 1, remote.puts)
	assert.Equal(t, int64(2000), remote.data[11])
}

func TestTimestampCache_RemoteErrorFallsThrough(t *testing.T) {
	src := stub.NewLogSource()
	src.SetTimestamp(10, 1000)
	remote := &fakeTimestampStore{data: map[uint64]int64{}, getErr: errors.New("connection refused")}
	cache := NewTimestampCache(src, remote, quietLogger(), nil)

	ts, err := cache.Get(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), ts)
}

func TestTimestampCache_AdapterError(t *testing.T) {
	cache := NewTimestampCache(stub.NewLogSource(), nil, quietLogger(), nil)

	_, err := cache.Get(context.Background(), 99)
	assert.ErrorIs(t, err, stub.ErrNotFound)
	assert.Zero(t, cache.Len())
}
