package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"dex-exec-lab/internal/domain"
	"dex-exec-lab/internal/storage"
)

// FeatureStore implements storage.FeatureStore on SQLite.
type FeatureStore struct {
	db *DB
}

// NewFeatureStore creates a new FeatureStore.
func NewFeatureStore(db *DB) *FeatureStore {
	return &FeatureStore{db: db}
}

// Compile-time interface check.
var _ storage.FeatureStore = (*FeatureStore)(nil)

// Rebuild deletes the pool's rows and writes records in one transaction.
func (s *FeatureStore) Rebuild(ctx context.Context, pool string, records []*domain.FeatureRecord) error {
	if pool == "" {
		return storage.ErrInvalidInput
	}
	for _, r := range records {
		if r == nil || r.Pool != pool {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM swap_features WHERE pool = ?`, pool); err != nil {
		return fmt.Errorf("clear features: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO swap_features (
			pool, block_number, log_index, price, ref_price, exec_price,
			slippage, trade_size, liquidity, liquidity_prev, z
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.Pool, int64(r.BlockNumber), int64(r.LogIndex),
			r.Price, r.RefPrice, r.ExecPrice, r.Slippage, r.TradeSize,
			nullableInt(r.Liquidity), nullableInt(r.LiquidityPrev), r.Z,
		)
		if err != nil {
			return fmt.Errorf("insert feature %d:%d: %w", r.BlockNumber, r.LogIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByPool returns records of a pool ordered by (block_number, log_index) ASC.
func (s *FeatureStore) GetByPool(ctx context.Context, pool string) ([]*domain.FeatureRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pool, block_number, log_index, price, ref_price, exec_price,
			slippage, trade_size, liquidity, liquidity_prev, z
		FROM swap_features
		WHERE pool = ?
		ORDER BY block_number ASC, log_index ASC
	`, pool)
	if err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	defer rows.Close()

	var records []*domain.FeatureRecord
	for rows.Next() {
		var (
			r               domain.FeatureRecord
			block, logIndex int64
			liq, liqPrev    sql.NullString
		)
		err := rows.Scan(
			&r.Pool, &block, &logIndex, &r.Price, &r.RefPrice, &r.ExecPrice,
			&r.Slippage, &r.TradeSize, &liq, &liqPrev, &r.Z,
		)
		if err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		r.BlockNumber = uint64(block)
		r.LogIndex = uint(logIndex)

		if r.Liquidity, err = fromNullable("liquidity", liq); err != nil {
			return nil, err
		}
		if r.LiquidityPrev, err = fromNullable("liquidity_prev", liqPrev); err != nil {
			return nil, err
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate features: %w", err)
	}
	return records, nil
}
