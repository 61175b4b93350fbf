// Package chain defines the contract for reading historical logs from an EVM chain.
package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// RawLog is a single undecoded log record as returned by eth_getLogs.
type RawLog = types.Log

// LogSource provides historical log records and block timestamps.
type LogSource interface {
	// GetLogs returns logs emitted by pool in [from, to] (inclusive) matching topics.
	// An error means the query itself failed (bad range, provider limit);
	// an empty slice means the range had no matching logs.
	GetLogs(ctx context.Context, pool common.Address, topics [][]common.Hash, from, to uint64) ([]RawLog, error)

	// GetBlockTimestamp returns the block's Unix timestamp in seconds.
	GetBlockTimestamp(ctx context.Context, block uint64) (int64, error)
}
