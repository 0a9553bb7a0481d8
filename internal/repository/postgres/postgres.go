package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xela07ax/taskmanager-auth/internal/infra"
	"go.uber.org/zap"
)

// NewPool создает пул соединений и ждет готовности базы.
// В docker-compose Postgres часто поднимается позже сервиса, поэтому Ping повторяется.
func NewPool(ctx context.Context, cfg infra.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	const op = "repository.postgres.NewPool"

	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	pcfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	attempts := cfg.PingAttempts
	if attempts == 0 {
		attempts = 1
	}

	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(cfg.PingDelay),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("database not ready, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	err = r.Do(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return pool.Ping(pingCtx)
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: database unreachable: %w", op, err)
	}

	return pool, nil
}
