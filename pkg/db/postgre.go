package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fleet-dashboard/pkg/logger"
)

const (
	maxRetries    = 5
	retryInterval = 3 * time.Second
)

// NewConnection opens a pool for dsn and pings it, retrying a few times while
// the database comes up. It gives up early when ctx ends.
func NewConnection(ctx context.Context, dsn string, log logger.Logger) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	var err error

	log.Info("db_connect", "Connecting to database...")

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("database connect aborted: %w", ctx.Err())
			case <-time.After(retryInterval):
			}
		}

		pool, err = pgxpool.New(ctx, dsn)
		if err != nil {
			log.Error("db_connect_failed", fmt.Errorf("failed to connect to database(attempt %d/%d): %w", i+1, maxRetries, err))
			continue
		}
		err = pool.Ping(ctx)
		if err == nil {
			log.Info("db_connected_success", "Successfully connected to database")
			return pool, nil
		}

		log.Error("db_ping_failed", fmt.Errorf("failed to connect to database(attempt %d/%d): %w", i+1, maxRetries, err))
		pool.Close()
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
}
