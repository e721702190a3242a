package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// ConnectOptions bounds how long OpenPostgres waits for the database to
// accept connections.
type ConnectOptions struct {
	Attempts int
	Backoff  time.Duration
}

// OpenPostgres opens a pooled connection and pings it until it answers or
// the attempts run out.
func OpenPostgres(ctx context.Context, databaseURL string, pool PoolConfig, opts ConnectOptions) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("OpenPostgres: open: %w", err)
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	attempts := max(opts.Attempts, 1)
	for i := range attempts {
		if err = db.PingContext(ctx); err == nil {
			return db, nil
		}
		if i == attempts-1 {
			break
		}
		slog.Info("waiting for database", "attempt", i+1, "error", err)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, fmt.Errorf("OpenPostgres: %w", ctx.Err())
		case <-time.After(opts.Backoff):
		}
	}

	db.Close()
	return nil, fmt.Errorf("OpenPostgres: gave up after %d attempts: %w", attempts, err)
}
