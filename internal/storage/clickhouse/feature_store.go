package clickhouse

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ClickHouse/clickhouse-go/v2"

	"dex-exec-lab/internal/domain"
	"dex-exec-lab/internal/storage"
)

// FeatureStore implements storage.FeatureStore using ClickHouse.
type FeatureStore struct {
	conn *Conn
}

// NewFeatureStore creates a new FeatureStore.
func NewFeatureStore(conn *Conn) *FeatureStore {
	return &FeatureStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FeatureStore = (*FeatureStore)(nil)

// Rebuild removes the pool's rows with a synchronous mutation, then batch-inserts records.
func (s *FeatureStore) Rebuild(ctx context.Context, pool string, records []*domain.FeatureRecord) error {
	if pool == "" {
		return storage.ErrInvalidInput
	}
	for _, r := range records {
		if r == nil || r.Pool != pool {
			return storage.ErrInvalidInput
		}
	}

	syncCtx := clickhouse.Context(ctx, clickhouse.WithSettings(clickhouse.Settings{
		"mutations_sync": 2,
	}))
	if err := s.conn.Exec(syncCtx, `ALTER TABLE swap_features DELETE WHERE pool = ?`, pool); err != nil {
		return fmt.Errorf("clear features: %w", err)
	}

	if len(records) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO swap_features (
			pool, block_number, log_index,
			price, ref_price, exec_price, slippage, trade_size,
			liquidity, liquidity_prev, z
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		// Pass nil values directly for Nullable columns
		err = batch.Append(
			r.Pool, r.BlockNumber, uint32(r.LogIndex),
			r.Price, r.RefPrice, r.ExecPrice, r.Slippage, r.TradeSize,
			intString(r.Liquidity), intString(r.LiquidityPrev), r.Z,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByPool retrieves all records for a pool, ordered by (block_number, log_index) ASC.
func (s *FeatureStore) GetByPool(ctx context.Context, pool string) ([]*domain.FeatureRecord, error) {
	query := `
		SELECT
			pool, block_number, log_index,
			price, ref_price, exec_price, slippage, trade_size,
			liquidity, liquidity_prev, z
		FROM swap_features
		WHERE pool = ?
		ORDER BY block_number ASC, log_index ASC
	`

	rows, err := s.conn.Query(ctx, query, pool)
	if err != nil {
		return nil, fmt.Errorf("query by pool: %w", err)
	}
	defer rows.Close()

	return scanFeatures(rows)
}

// intString renders a big integer for a Nullable(String) column.
func intString(n *big.Int) *string {
	if n == nil {
		return nil
	}
	s := n.String()
	return &s
}

func parseIntString(column string, s *string) (*big.Int, error) {
	if s == nil {
		return nil, nil
	}
	n, ok := new(big.Int).SetString(*s, 10)
	if !ok {
		return nil, fmt.Errorf("column %s: invalid integer %q", column, *s)
	}
	return n, nil
}

// scanFeatures scans multiple rows.
func scanFeatures(rows chRows) ([]*domain.FeatureRecord, error) {
	var records []*domain.FeatureRecord

	for rows.Next() {
		var r domain.FeatureRecord
		var logIndex uint32
		var liq, liqPrev *string

		err := rows.Scan(
			&r.Pool, &r.BlockNumber, &logIndex,
			&r.Price, &r.RefPrice, &r.ExecPrice, &r.Slippage, &r.TradeSize,
			&liq, &liqPrev, &r.Z,
		)
		if err != nil {
			return nil, fmt.Errorf("scan features row: %w", err)
		}
		r.LogIndex = uint(logIndex)

		if r.Liquidity, err = parseIntString("liquidity", liq); err != nil {
			return nil, err
		}
		if r.LiquidityPrev, err = parseIntString("liquidity_prev", liqPrev); err != nil {
			return nil, err
		}

		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate features rows: %w", err)
	}

	return records, nil
}
