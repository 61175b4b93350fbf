package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// TimestampStore keeps block timestamps in one Redis hash per chain.
// Field is the block number, value the unix timestamp in seconds.
// Block timestamps never change, so entries carry no TTL.
type TimestampStore struct {
	rdb *redis.Client
	key string
}

// NewTimestampStore creates a TimestampStore. namespace separates chains
// sharing one Redis instance (e.g. "base" or a chain id).
func NewTimestampStore(c *Client, namespace string) *TimestampStore {
	return &TimestampStore{rdb: c.Underlying(), key: timestampKey(namespace)}
}

func timestampKey(namespace string) string {
	return "blockts:" + namespace
}

// GetBlockTimestamp returns ok=false when the block is not cached.
func (s *TimestampStore) GetBlockTimestamp(ctx context.Context, block uint64) (int64, bool, error) {
	val, err := s.rdb.HGet(ctx, s.key, strconv.FormatUint(block, 10)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis: get block ts %d: %w", block, err)
	}
	ts, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("redis: parse block ts %d: %w", block, err)
	}
	return ts, true, nil
}

// PutBlockTimestamp stores the timestamp of block.
func (s *TimestampStore) PutBlockTimestamp(ctx context.Context, block uint64, ts int64) error {
	field := strconv.FormatUint(block, 10)
	if err := s.rdb.HSet(ctx, s.key, field, strconv.FormatInt(ts, 10)).Err(); err != nil {
		return fmt.Errorf("redis: put block ts %d: %w", block, err)
	}
	return nil
}

// Len returns the number of cached blocks.
func (s *TimestampStore) Len(ctx context.Context) (int64, error) {
	n, err := s.rdb.HLen(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: len block ts: %w", err)
	}
	return n, nil
}
