package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := New(ctx, ClientConfig{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestTimestampStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewTimestampStore(setupRedis(t), "base")

	_, ok, err := store.GetBlockTimestamp(ctx, 100)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.PutBlockTimestamp(ctx, 100, 1_700_000_000))
	ts, ok, err := store.GetBlockTimestamp(ctx, 100)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1_700_000_000), ts)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTimestampStore_NamespacesIsolated(t *testing.T) {
	ctx := context.Background()
	client := setupRedis(t)
	base := NewTimestampStore(client, "base")
	mainnet := NewTimestampStore(client, "mainnet")

	require.NoError(t, base.PutBlockTimestamp(ctx, 7, 42))
	_, ok, err := mainnet.GetBlockTimestamp(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTimestampKey(t *testing.T) {
	assert.Equal(t, "blockts:8453", timestampKey("8453"))
}
