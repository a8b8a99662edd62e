package pgx

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const pingTimeout = 10 * time.Second

// ParseConfig parses a connection URL or keyword/value string into a pool
// config whose connections log every query.
func ParseConfig(databaseURL string, opts ...Option) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	poolConfig.ConnConfig.Tracer = NewTracer(opts...)
	return poolConfig, nil
}

// NewPool creates a pool whose connections log every query and checks that
// the database is reachable.
func NewPool(ctx context.Context, databaseURL string, opts ...Option) (*pgxpool.Pool, error) {
	poolConfig, err := ParseConfig(databaseURL, opts...)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database (%s timeout): %w", pingTimeout, err)
	}

	return pool, nil
}
