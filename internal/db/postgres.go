// Package db opens the Postgres connection pool and embeds schema migrations.
package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open opens a Postgres connection pool using the given DSN and verifies it
// with a short ping. Caller must call Close when done.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("db: DSN is empty")
	}
	pool, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(5)
	pool.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return pool, nil
}
