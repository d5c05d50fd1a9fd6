package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/richxcame/fraud-screening/pkg/config"
	"github.com/richxcame/fraud-screening/pkg/resilience"
)

// NewPostgresPool creates a new PostgreSQL connection pool
func NewPostgresPool(cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	dsn := cfg.DSN()

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test the connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

// WaitForDatabase blocks until the database accepts connections or the
// attempts run out. Batch runs start as soon as their database container
// does, so the first connections routinely fail.
func WaitForDatabase(ctx context.Context, cfg *config.DatabaseConfig, log *zap.Logger) (*pgxpool.Pool, error) {
	retryCfg := resilience.RetryConfig{
		MaxAttempts:       10,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 1.5,
	}

	attempt := 0
	result, err := resilience.Retry(ctx, retryCfg, func(ctx context.Context) (interface{}, error) {
		attempt++
		pool, err := NewPostgresPool(cfg)
		if err != nil {
			log.Warn("database not ready",
				zap.Int("attempt", attempt),
				zap.Error(err))
			return nil, err
		}
		return pool, nil
	})
	if err != nil {
		return nil, fmt.Errorf("database unavailable after %d attempts: %w", attempt, err)
	}

	log.Info("database connection established", zap.Int("attempts", attempt))
	return result.(*pgxpool.Pool), nil
}

// Close closes the database connection pool
func Close(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}
