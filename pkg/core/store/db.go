// Package store persists blueprint versions in Postgres as an append-only
// history per dossier.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	pool     *pgxpool.Pool
	initOnce sync.Once
)

// InitDB opens the shared connection pool for the blueprint store. The DSN
// comes from configuration, not from this package. The pool is created once
// per process; a failed first attempt stays failed.
func InitDB(ctx context.Context, dsn string) error {
	var initErr error
	initOnce.Do(func() {
		if dsn == "" {
			initErr = fmt.Errorf("blueprint store: no database DSN configured")
			return
		}
		cfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			initErr = fmt.Errorf("blueprint store: parse DSN: %w", err)
			return
		}
		pool, initErr = pgxpool.NewWithConfig(ctx, cfg)
	})
	if initErr == nil && pool == nil {
		initErr = fmt.Errorf("blueprint store: pool initialization previously failed")
	}
	return initErr
}

// GetPool returns the blueprint store's connection pool, or nil before a
// successful InitDB.
func GetPool() *pgxpool.Pool {
	return pool
}

// Close releases the pool. Safe to call before InitDB.
func Close() {
	if pool != nil {
		pool.Close()
	}
}
