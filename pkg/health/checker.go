package health

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Check probes one dependency. The health endpoint runs every registered
// check on each request.
type Check func(ctx context.Context) error

// probeTimeout bounds a single probe so one hung dependency cannot stall
// the whole health endpoint.
const probeTimeout = 2 * time.Second

// Database probes the Postgres pool backing ingestion and the detectors.
func Database(pool *pgxpool.Pool) Check {
	return func(ctx context.Context) error {
		if pool == nil {
			return errors.New("database pool is nil")
		}
		ctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		return pool.Ping(ctx)
	}
}

// Redis probes the rate-limit store.
func Redis(client redis.UniversalClient) Check {
	return func(ctx context.Context) error {
		if client == nil {
			return errors.New("redis client is nil")
		}
		ctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		return client.Ping(ctx).Err()
	}
}
