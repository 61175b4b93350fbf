package ingestion

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"dex-exec-lab/internal/chain"
	"dex-exec-lab/internal/observability"
)

// TimestampStore is an optional cache shared across runs (e.g. Redis).
type TimestampStore interface {
	// GetBlockTimestamp returns ok=false on a miss.
	GetBlockTimestamp(ctx context.Context, block uint64) (ts int64, ok bool, err error)
	PutBlockTimestamp(ctx context.Context, block uint64, ts int64) error
}

// TimestampCache resolves block timestamps at most once per block per run.
// Lookup order: in-run map, optional shared store, chain adapter.
type TimestampCache struct {
	source  chain.LogSource
	remote  TimestampStore
	local   map[uint64]int64
	logger  logrus.FieldLogger
	metrics *observability.Metrics
}

// NewTimestampCache creates a per-run cache. remote may be nil.
func NewTimestampCache(source chain.LogSource, remote TimestampStore, logger logrus.FieldLogger, metrics *observability.Metrics) *TimestampCache {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TimestampCache{
		source:  source,
		remote:  remote,
		local:   make(map[uint64]int64),
		logger:  logger,
		metrics: metrics,
	}
}

// Get returns the timestamp of block.
// Shared store failures are logged and fall through to the adapter.
func (c *TimestampCache) Get(ctx context.Context, block uint64) (int64, error) {
	if ts, ok := c.local[block]; ok {
		c.metrics.RecordTimestampLookup("local")
		return ts, nil
	}

	if c.remote != nil {
		ts, ok, err := c.remote.GetBlockTimestamp(ctx, block)
		if err != nil {
			c.logger.WithError(err).WithField("block", block).Warn("timestamp store lookup failed")
		} else if ok {
			c.local[block] = ts
			c.metrics.RecordTimestampLookup("remote")
			return ts, nil
		}
	}

	ts, err := c.source.GetBlockTimestamp(ctx, block)
	if err != nil {
		return 0, fmt.Errorf("block %d timestamp: %w", block, err)
	}
	c.metrics.RecordTimestampLookup("rpc")
	c.local[block] = ts

	if c.remote != nil {
		if err := c.remote.PutBlockTimestamp(ctx, block, ts); err != nil {
			c.logger.WithError(err).WithField("block", block).Warn("timestamp store write failed")
		}
	}
	return ts, nil
}

// Len returns the number of blocks cached in this run.
func (c *TimestampCache) Len() int {
	return len(c.local)
}
