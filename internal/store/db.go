package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"botsupport/internal/secret"
)

// Connect opens the read pool used by the support API.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// poolConfig drops pgbouncer parameters pgx would otherwise send as runtime
// params. Transaction poolers do not keep prepared statements between
// transactions, so pooled targets use the simple protocol.
func poolConfig(dsn string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(secret.EncodePassword(secret.StripPooler(dsn)))
	if err != nil {
		return nil, fmt.Errorf("parse db dsn: %w", err)
	}
	if secret.IsPooler(dsn) {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}
	return cfg, nil
}
