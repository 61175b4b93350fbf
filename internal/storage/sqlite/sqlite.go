// Package sqlite stores swap events and features in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"dex-exec-lab/internal/storage/migrations"
)

// DB wraps *sql.DB for dependency injection.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the database at path and applies migrations.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// Single writer; also keeps ":memory:" on one connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{DB: db}, nil
}

func parseInt(column, s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("column %s: invalid integer %q", column, s)
	}
	return n, nil
}

func nullableInt(n *big.Int) sql.NullString {
	if n == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: n.String(), Valid: true}
}

func fromNullable(column string, s sql.NullString) (*big.Int, error) {
	if !s.Valid {
		return nil, nil
	}
	return parseInt(column, s.String)
}
