package sqlite

import (
	"context"
	"fmt"

	"dex-exec-lab/internal/domain"
	"dex-exec-lab/internal/storage"
)

// SwapEventStore implements storage.SwapEventStore on SQLite.
type SwapEventStore struct {
	db *DB
}

// NewSwapEventStore creates a new SwapEventStore.
func NewSwapEventStore(db *DB) *SwapEventStore {
	return &SwapEventStore{db: db}
}

// Compile-time interface check.
var _ storage.SwapEventStore = (*SwapEventStore)(nil)

// InsertIfAbsent inserts events with INSERT OR IGNORE in a single transaction.
func (s *SwapEventStore) InsertIfAbsent(ctx context.Context, events []*domain.SwapEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	for _, e := range events {
		if err := storage.ValidateSwapEvent(e); err != nil {
			return 0, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO swap_events (
			venue, pool, block_number, log_index, tx_hash, sender, recipient,
			amount0, amount1, sqrt_price_x96, liquidity, tick, block_timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range events {
		res, err := stmt.ExecContext(ctx,
			e.Venue, e.Pool, int64(e.BlockNumber), int64(e.LogIndex), e.TxHash, e.Sender, e.Recipient,
			e.Amount0.String(), e.Amount1.String(), e.SqrtPriceX96.String(), e.Liquidity.String(),
			e.Tick, e.BlockTimestamp,
		)
		if err != nil {
			return 0, fmt.Errorf("insert swap event: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return inserted, nil
}

// ScanPool returns all events of a pool ordered by (block_number, log_index) ASC.
func (s *SwapEventStore) ScanPool(ctx context.Context, venue, pool string) ([]*domain.SwapEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT venue, pool, block_number, log_index, tx_hash, sender, recipient,
			amount0, amount1, sqrt_price_x96, liquidity, tick, block_timestamp
		FROM swap_events
		WHERE venue = ? AND pool = ?
		ORDER BY block_number ASC, log_index ASC
	`, venue, pool)
	if err != nil {
		return nil, fmt.Errorf("scan pool: %w", err)
	}
	defer rows.Close()

	var events []*domain.SwapEvent
	for rows.Next() {
		var (
			e                            domain.SwapEvent
			block, logIndex              int64
			amount0, amount1, sqrtP, liq string
		)
		err := rows.Scan(
			&e.Venue, &e.Pool, &block, &logIndex, &e.TxHash, &e.Sender, &e.Recipient,
			&amount0, &amount1, &sqrtP, &liq, &e.Tick, &e.BlockTimestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan swap event: %w", err)
		}
		e.BlockNumber = uint64(block)
		e.LogIndex = uint(logIndex)

		if e.Amount0, err = parseInt("amount0", amount0); err != nil {
			return nil, err
		}
		if e.Amount1, err = parseInt("amount1", amount1); err != nil {
			return nil, err
		}
		if e.SqrtPriceX96, err = parseInt("sqrt_price_x96", sqrtP); err != nil {
			return nil, err
		}
		if e.Liquidity, err = parseInt("liquidity", liq); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap events: %w", err)
	}
	return events, nil
}

// LastBlock returns the highest stored block for a pool.
func (s *SwapEventStore) LastBlock(ctx context.Context, venue, pool string) (uint64, bool, error) {
	var last *int64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(block_number) FROM swap_events WHERE venue = ? AND pool = ?`, venue, pool,
	).Scan(&last)
	if err != nil {
		return 0, false, fmt.Errorf("last block: %w", err)
	}
	if last == nil {
		return 0, false, nil
	}
	return uint64(*last), true, nil
}
