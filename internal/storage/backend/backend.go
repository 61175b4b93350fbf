// Package backend opens the swap event and feature stores selected by configuration.
package backend

import (
	"context"
	"fmt"

	"dex-exec-lab/internal/config"
	"dex-exec-lab/internal/storage"
	chstore "dex-exec-lab/internal/storage/clickhouse"
	"dex-exec-lab/internal/storage/memory"
	"dex-exec-lab/internal/storage/migrations"
	pgstore "dex-exec-lab/internal/storage/postgres"
	"dex-exec-lab/internal/storage/sqlite"
)

// Stores holds the opened stores and the connections behind them.
type Stores struct {
	Events   storage.SwapEventStore
	Features storage.FeatureStore

	closers []func()
}

// Close releases every connection opened by Open.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Open connects the configured backends and applies their migrations.
// SQLite events and features share one database file.
func Open(ctx context.Context, cfg config.StorageConfig) (*Stores, error) {
	s := &Stores{}

	var sqliteDB *sqlite.DB
	openSQLite := func() (*sqlite.DB, error) {
		if sqliteDB != nil {
			return sqliteDB, nil
		}
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		s.closers = append(s.closers, func() { _ = db.Close() })
		sqliteDB = db
		return db, nil
	}

	switch cfg.Events {
	case config.BackendMemory:
		s.Events = memory.NewSwapEventStore()
	case config.BackendSQLite:
		db, err := openSQLite()
		if err != nil {
			return nil, err
		}
		s.Events = sqlite.NewSwapEventStore(db)
	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool.Pool); err != nil {
			s.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		s.Events = pgstore.NewSwapEventStore(pool)
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Events)
	}

	switch cfg.Features {
	case config.BackendMemory:
		s.Features = memory.NewFeatureStore()
	case config.BackendSQLite:
		db, err := openSQLite()
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Features = sqlite.NewFeatureStore(db)
	case config.BackendClickhouse:
		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = conn.Close() })
		if err := migrations.RunClickhouseMigrations(ctx, conn.Conn); err != nil {
			s.Close()
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		s.Features = chstore.NewFeatureStore(conn)
	default:
		s.Close()
		return nil, fmt.Errorf("unknown features backend %q", cfg.Features)
	}

	return s, nil
}
