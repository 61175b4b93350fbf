package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"dex-exec-lab/internal/domain"
	"dex-exec-lab/internal/storage"
)

// SwapEventStore implements storage.SwapEventStore using PostgreSQL.
type SwapEventStore struct {
	pool *Pool
}

// NewSwapEventStore creates a new SwapEventStore.
func NewSwapEventStore(pool *Pool) *SwapEventStore {
	return &SwapEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SwapEventStore = (*SwapEventStore)(nil)

const insertSwapEventSQL = `
	INSERT INTO swap_events (
		venue, pool, block_number, log_index, tx_hash, sender, recipient,
		amount0, amount1, sqrt_price_x96, liquidity, tick, block_timestamp
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric, $10::numeric, $11::numeric, $12, $13)
	ON CONFLICT (pool, block_number, log_index) DO NOTHING
`

// InsertIfAbsent inserts all events in one transaction, skipping existing keys.
func (s *SwapEventStore) InsertIfAbsent(ctx context.Context, events []*domain.SwapEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	for _, e := range events {
		if err := storage.ValidateSwapEvent(e); err != nil {
			return 0, err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(insertSwapEventSQL,
			e.Venue,
			e.Pool,
			int64(e.BlockNumber),
			int32(e.LogIndex),
			e.TxHash,
			e.Sender,
			e.Recipient,
			e.Amount0.String(),
			e.Amount1.String(),
			e.SqrtPriceX96.String(),
			e.Liquidity.String(),
			e.Tick,
			e.BlockTimestamp,
		)
	}

	br := tx.SendBatch(ctx, batch)
	inserted := 0
	for range events {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return 0, fmt.Errorf("insert swap event: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return inserted, nil
}

// ScanPool returns all events of a pool ordered by (block_number, log_index) ASC.
func (s *SwapEventStore) ScanPool(ctx context.Context, venue, pool string) ([]*domain.SwapEvent, error) {
	query := `
		SELECT venue, pool, block_number, log_index, tx_hash, sender, recipient,
			amount0::text, amount1::text, sqrt_price_x96::text, liquidity::text, tick, block_timestamp
		FROM swap_events
		WHERE venue = $1 AND pool = $2
		ORDER BY block_number ASC, log_index ASC
	`

	rows, err := s.pool.Query(ctx, query, venue, pool)
	if err != nil {
		return nil, fmt.Errorf("scan pool: %w", err)
	}
	defer rows.Close()

	return scanSwapEvents(rows)
}

// LastBlock returns the highest stored block for a pool.
func (s *SwapEventStore) LastBlock(ctx context.Context, venue, pool string) (uint64, bool, error) {
	query := `SELECT MAX(block_number) FROM swap_events WHERE venue = $1 AND pool = $2`

	var last *int64
	if err := s.pool.QueryRow(ctx, query, venue, pool).Scan(&last); err != nil {
		return 0, false, fmt.Errorf("last block: %w", err)
	}
	if last == nil {
		return 0, false, nil
	}
	return uint64(*last), true, nil
}

// scanSwapEvents scans multiple rows into a slice of SwapEvent.
func scanSwapEvents(rows pgx.Rows) ([]*domain.SwapEvent, error) {
	var events []*domain.SwapEvent

	for rows.Next() {
		var (
			e                            domain.SwapEvent
			block                        int64
			logIndex                     int32
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

		if e.Amount0, err = parseNumeric("amount0", amount0); err != nil {
			return nil, err
		}
		if e.Amount1, err = parseNumeric("amount1", amount1); err != nil {
			return nil, err
		}
		if e.SqrtPriceX96, err = parseNumeric("sqrt_price_x96", sqrtP); err != nil {
			return nil, err
		}
		if e.Liquidity, err = parseNumeric("liquidity", liq); err != nil {
			return nil, err
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap events: %w", err)
	}

	return events, nil
}
