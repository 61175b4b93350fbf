package memory

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"dex-exec-lab/internal/domain"
	"dex-exec-lab/internal/storage"
)

// swapEventKey is the composite key for swap event deduplication.
type swapEventKey struct {
	Pool        string
	BlockNumber uint64
	LogIndex    uint
}

// SwapEventStore is an in-memory implementation of storage.SwapEventStore.
type SwapEventStore struct {
	mu   sync.RWMutex
	data []*domain.SwapEvent
	keys map[swapEventKey]bool
}

// NewSwapEventStore creates a new in-memory swap event store.
func NewSwapEventStore() *SwapEventStore {
	return &SwapEventStore{
		data: make([]*domain.SwapEvent, 0),
		keys: make(map[swapEventKey]bool),
	}
}

// Compile-time interface check.
var _ storage.SwapEventStore = (*SwapEventStore)(nil)

// InsertIfAbsent stores events not already present. Existing keys are skipped.
func (s *SwapEventStore) InsertIfAbsent(_ context.Context, events []*domain.SwapEvent) (int, error) {
	for _, e := range events {
		if err := storage.ValidateSwapEvent(e); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, e := range events {
		key := swapEventKey{Pool: e.Pool, BlockNumber: e.BlockNumber, LogIndex: e.LogIndex}
		if s.keys[key] {
			continue
		}
		s.data = append(s.data, cloneEvent(e))
		s.keys[key] = true
		inserted++
	}

	return inserted, nil
}

// ScanPool returns all events of a pool ordered by (block, log index).
func (s *SwapEventStore) ScanPool(_ context.Context, venue, pool string) ([]*domain.SwapEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SwapEvent
	for _, e := range s.data {
		if e.Venue == venue && e.Pool == pool {
			result = append(result, cloneEvent(e))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Before(result[j])
	})

	return result, nil
}

// LastBlock returns the highest stored block for a pool.
func (s *SwapEventStore) LastBlock(_ context.Context, venue, pool string) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last uint64
	found := false
	for _, e := range s.data {
		if e.Venue != venue || e.Pool != pool {
			continue
		}
		if !found || e.BlockNumber > last {
			last = e.BlockNumber
			found = true
		}
	}
	return last, found, nil
}

// Len returns the total number of stored events.
func (s *SwapEventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func cloneEvent(e *domain.SwapEvent) *domain.SwapEvent {
	cp := *e
	cp.Amount0 = cloneInt(e.Amount0)
	cp.Amount1 = cloneInt(e.Amount1)
	cp.SqrtPriceX96 = cloneInt(e.SqrtPriceX96)
	cp.Liquidity = cloneInt(e.Liquidity)
	return &cp
}

func cloneInt(n *big.Int) *big.Int {
	if n == nil {
		return nil
	}
	return new(big.Int).Set(n)
}
