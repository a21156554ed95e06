package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PGOptions struct {
	MaxConns       int
	AcquireTimeout time.Duration
}

// Connect opens a bounded pgx pool and pings it.
func Connect(ctx context.Context, dsn string, opt PGOptions) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	if opt.MaxConns > 0 {
		config.MaxConns = int32(opt.MaxConns)
	}
	config.MinConns = 0
	config.MaxConnLifetime = time.Hour
	config.HealthCheckPeriod = 30 * time.Second
	if opt.AcquireTimeout > 0 {
		config.ConnConfig.ConnectTimeout = opt.AcquireTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("open pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", classifyPG(err))
	}
	return pool, nil
}
