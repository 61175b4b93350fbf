// Package stub provides a deterministic in-memory chain.LogSource for tests.
package stub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"dex-exec-lab/internal/chain"
)

// ErrNotFound is returned when a block timestamp is not found.
var ErrNotFound = errors.New("not found")

// ErrRangeTooLarge mimics a provider rejecting a wide eth_getLogs range.
var ErrRangeTooLarge = errors.New("query returned more than 10000 results")

// Call records one GetLogs invocation.
type Call struct {
	From uint64
	To   uint64
}

// LogSource implements chain.LogSource for testing.
type LogSource struct {
	mu sync.Mutex

	Logs       []chain.RawLog
	Timestamps map[uint64]int64

	// MaxWidth rejects ranges wider than this many blocks. Zero disables the limit.
	MaxWidth uint64
	// FailFunc, when set, is consulted before serving a range.
	FailFunc func(from, to uint64) error

	Calls          []Call
	TimestampCalls map[uint64]int
}

// NewLogSource creates a new stub log source.
func NewLogSource() *LogSource {
	return &LogSource{
		Timestamps:     make(map[uint64]int64),
		TimestampCalls: make(map[uint64]int),
	}
}

var _ chain.LogSource = (*LogSource)(nil)

// AddLog adds a log record to the stub.
func (s *LogSource) AddLog(lg chain.RawLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Logs = append(s.Logs, lg)
}

// SetTimestamp sets the timestamp returned for a block.
func (s *LogSource) SetTimestamp(block uint64, ts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Timestamps[block] = ts
}

// GetLogs returns stored logs of pool within [from, to] whose topic0 matches.
func (s *LogSource) GetLogs(_ context.Context, pool common.Address, topics [][]common.Hash, from, to uint64) ([]chain.RawLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls = append(s.Calls, Call{From: from, To: to})

	if to < from {
		return nil, fmt.Errorf("invalid range %d-%d", from, to)
	}
	if s.FailFunc != nil {
		if err := s.FailFunc(from, to); err != nil {
			return nil, err
		}
	}
	if s.MaxWidth > 0 && to-from+1 > s.MaxWidth {
		return nil, ErrRangeTooLarge
	}

	var out []chain.RawLog
	for _, lg := range s.Logs {
		if lg.Address != pool || lg.BlockNumber < from || lg.BlockNumber > to {
			continue
		}
		if !matchTopic0(lg, topics) {
			continue
		}
		cp := lg
		cp.Topics = append([]common.Hash(nil), lg.Topics...)
		cp.Data = append([]byte(nil), lg.Data...)
		out = append(out, cp)
	}
	return out, nil
}

// GetBlockTimestamp returns the configured timestamp for block.
func (s *LogSource) GetBlockTimestamp(_ context.Context, block uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TimestampCalls[block]++
	ts, ok := s.Timestamps[block]
	if !ok {
		return 0, ErrNotFound
	}
	return ts, nil
}

// RangeCalls returns a copy of recorded GetLogs calls.
func (s *LogSource) RangeCalls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.Calls...)
}

func matchTopic0(lg chain.RawLog, topics [][]common.Hash) bool {
	if len(topics) == 0 || len(topics[0]) == 0 {
		return true
	}
	if len(lg.Topics) == 0 {
		return false
	}
	for _, want := range topics[0] {
		if lg.Topics[0] == want {
			return true
		}
	}
	return false
}
