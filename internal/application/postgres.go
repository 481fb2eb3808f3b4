package application

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"thirdcoast.systems/contentdna/internal/config"
)

var (
	dbOpenBackoffBase  = 1 * time.Second
	dbOpenBackoffScale = 1.618
)

func backoff(attempt int) time.Duration {
	return time.Duration(float64(dbOpenBackoffBase) * math.Pow(dbOpenBackoffScale, float64(attempt)))
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// OpenDBPoolWithRetry initializes a new PostgreSQL connection pool with retry logic.
func OpenDBPoolWithRetry(ctx context.Context, conf config.Config) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	var lastErr error

	retries := conf.DatabaseRetries
	if retries <= 0 {
		retries = 10
	}

	cfg, err := pgxpool.ParseConfig(conf.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	slog.Info("Connecting to database", "host", cfg.ConnConfig.Host)
	for i := 0; i < retries; i++ {
		if pool, err = pgxpool.NewWithConfig(ctx, cfg); err == nil {
			break
		}
		lastErr = err

		wait := backoff(i)
		slog.Warn("Database pool creation failed", "error", err, "retry_in", wait)
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
	}

	if pool == nil {
		if lastErr != nil {
			return nil, fmt.Errorf("failed to connect to database after multiple attempts: %w", lastErr)
		}
		return nil, fmt.Errorf("failed to connect to database after multiple attempts")
	}

	for i := 0; i < retries; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
		err = pool.Ping(pingCtx)
		cancel()
		if err == nil {
			slog.Info("Pinged database", "host", cfg.ConnConfig.Host)
			return pool, nil
		}
		lastErr = err

		wait := backoff(i)
		slog.Warn("Database ping failed", "error", err, "retry_in", wait)
		if err := sleepCtx(ctx, wait); err != nil {
			pool.Close()
			return nil, err
		}
	}
	pool.Close()
	return nil, fmt.Errorf("failed to ping database after multiple attempts: %w", lastErr)
}
