package storage

import (
	"context"

	"dex-exec-lab/internal/domain"
)

// SwapEventStore provides access to swap_events storage.
// Rows are keyed by (pool, block_number, log_index) and never updated.
type SwapEventStore interface {
	// InsertIfAbsent stores events whose key is not yet present and silently
	// skips the rest. Returns the number of rows actually inserted.
	InsertIfAbsent(ctx context.Context, events []*domain.SwapEvent) (int, error)

	// ScanPool returns all events of a pool ordered by (block_number, log_index) ASC.
	ScanPool(ctx context.Context, venue, pool string) ([]*domain.SwapEvent, error)

	// LastBlock returns the highest stored block for a pool. ok is false when the pool has no rows.
	LastBlock(ctx context.Context, venue, pool string) (block uint64, ok bool, err error)
}

// FeatureStore provides access to swap_features storage.
// The table for a pool is derived data and is fully replaced on every build.
type FeatureStore interface {
	// Rebuild deletes all records of pool and writes records in their place.
	Rebuild(ctx context.Context, pool string, records []*domain.FeatureRecord) error

	// GetByPool returns records of a pool ordered by (block_number, log_index) ASC.
	GetByPool(ctx context.Context, pool string) ([]*domain.FeatureRecord, error)
}

// ValidateSwapEvent checks the fields every store requires.
func ValidateSwapEvent(e *domain.SwapEvent) error {
	if e == nil || e.Pool == "" {
		return ErrInvalidInput
	}
	if e.Amount0 == nil || e.Amount1 == nil || e.SqrtPriceX96 == nil || e.Liquidity == nil {
		return ErrInvalidInput
	}
	return nil
}
