package memory

import (
	"context"
	"sort"
	"sync"

	"dex-exec-lab/internal/domain"
	"dex-exec-lab/internal/storage"
)

// FeatureStore is an in-memory implementation of storage.FeatureStore.
type FeatureStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.FeatureRecord
}

// NewFeatureStore creates a new in-memory feature store.
func NewFeatureStore() *FeatureStore {
	return &FeatureStore{
		data: make(map[string][]*domain.FeatureRecord),
	}
}

// Compile-time interface check.
var _ storage.FeatureStore = (*FeatureStore)(nil)

// Rebuild replaces every record of pool.
func (s *FeatureStore) Rebuild(_ context.Context, pool string, records []*domain.FeatureRecord) error {
	if pool == "" {
		return storage.ErrInvalidInput
	}

	rows := make([]*domain.FeatureRecord, 0, len(records))
	for _, r := range records {
		if r == nil || r.Pool != pool {
			return storage.ErrInvalidInput
		}
		rows = append(rows, cloneFeature(r))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[pool] = rows
	return nil
}

// GetByPool returns records of a pool ordered by (block, log index).
func (s *FeatureStore) GetByPool(_ context.Context, pool string) ([]*domain.FeatureRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.data[pool]
	result := make([]*domain.FeatureRecord, 0, len(rows))
	for _, r := range rows {
		result = append(result, cloneFeature(r))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].BlockNumber != result[j].BlockNumber {
			return result[i].BlockNumber < result[j].BlockNumber
		}
		return result[i].LogIndex < result[j].LogIndex
	})

	return result, nil
}

func cloneFeature(r *domain.FeatureRecord) *domain.FeatureRecord {
	cp := *r
	cp.Liquidity = cloneInt(r.Liquidity)
	cp.LiquidityPrev = cloneInt(r.LiquidityPrev)
	return &cp
}
