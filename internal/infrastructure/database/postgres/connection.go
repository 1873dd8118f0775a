// Package postgres owns the engine's single connection pool to the Store
// (§4.1). One pool is opened at boot, shared by every request, and injected
// into the repositories; per-request concurrency is the pool's problem, not
// the pipeline's (§5).
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RSBalchII/anchor/internal/config"
	"github.com/RSBalchII/anchor/internal/infrastructure/monitoring/logging"
)

const (
	maxDialAttempts = 5
	baseDialBackoff = 1 * time.Second
	dialTimeout     = 10 * time.Second
	pingTimeout     = 5 * time.Second

	defaultMaxConns          = 25
	defaultMinConns          = 5
	defaultMaxConnLifetime   = 1 * time.Hour
	defaultMaxConnIdleTime   = 30 * time.Minute
	defaultHealthCheckPeriod = 1 * time.Minute
)

// NewConnectionPool opens the Store's pgxpool.Pool, retrying with
// exponential backoff while Postgres comes up. Local-first deployments
// routinely start the engine and the database side by side, so a handful of
// failed dials at boot is the normal case, not an error; only exhausting
// every attempt is fatal (§7, store-unavailable). The caller owns the pool
// and must Close it on shutdown.
func NewConnectionPool(cfg config.StoreConfig, logger logging.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse store DSN: %w", err)
	}
	applyPoolSettings(poolConfig, cfg)

	var lastErr error
	for attempt := 1; attempt <= maxDialAttempts; attempt++ {
		if attempt > 1 {
			delay := backoffDelay(attempt)
			logger.Info("store not ready, backing off",
				logging.Int("attempt", attempt),
				logging.Duration("delay", delay),
			)
			time.Sleep(delay)
		}

		pool, err := dial(poolConfig)
		if err == nil {
			logger.Info("store connection established",
				logging.String("host", cfg.Host),
				logging.Int("port", cfg.Port),
				logging.String("database", cfg.DBName),
				logging.Int("max_conns", int(poolConfig.MaxConns)),
			)
			return pool, nil
		}
		lastErr = err
		logger.Warn("store dial failed", logging.Int("attempt", attempt), logging.Err(err))
	}

	return nil, fmt.Errorf("store unreachable after %d attempts: %w", maxDialAttempts, lastErr)
}

// dial creates a pool and proves it with a ping; a pool that cannot answer
// a ping is closed and discarded rather than handed to the caller.
func dial(poolConfig *pgxpool.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), pingTimeout)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// backoffDelay doubles per attempt: 1s before the 2nd dial, 2s before the
// 3rd, and so on.
func backoffDelay(attempt int) time.Duration {
	return baseDialBackoff << (attempt - 2)
}

// applyPoolSettings copies the StoreConfig's pool tunables onto the pgx
// config, falling back to this package's defaults where the config is zero.
func applyPoolSettings(poolConfig *pgxpool.Config, cfg config.StoreConfig) {
	poolConfig.MaxConns = int32(intOr(cfg.MaxConns, defaultMaxConns))
	poolConfig.MinConns = int32(intOr(cfg.MinConns, defaultMinConns))
	poolConfig.MaxConnLifetime = durationOr(cfg.ConnMaxLifetime, defaultMaxConnLifetime)
	poolConfig.MaxConnIdleTime = durationOr(cfg.ConnMaxIdleTime, defaultMaxConnIdleTime)
	poolConfig.HealthCheckPeriod = defaultHealthCheckPeriod
}

func intOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}

// Close shuts the pool down, waiting for in-flight connections to release.
func Close(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}

// HealthCheck proves the Store is reachable with a SELECT 1 under the
// caller's deadline.
func HealthCheck(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("connection pool is nil")
	}
	var result int
	if err := pool.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("health check query failed: %w", err)
	}
	return nil
}

// WithTransaction runs fn inside a transaction, rolling back on error or
// panic and committing otherwise. The retrieval core is read-mostly; the
// only writer that needs this is the Engram sidecar's write path.
//
//	err := WithTransaction(ctx, pool, func(tx pgx.Tx) error {
//	    _, err := tx.Exec(ctx, "INSERT INTO engrams (key_hash, atom_ids) VALUES ($1, $2)", key, ids)
//	    return err
//	})
func WithTransaction(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
