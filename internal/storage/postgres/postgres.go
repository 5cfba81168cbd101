// Package postgres persists battle statistics in PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cory-johannsen/raid/internal/config"
)

// applicationName tags raid's sessions in pg_stat_activity.
const applicationName = "raid"

// Pool is the connection pool the statistics repository runs on.
type Pool struct {
	pool *pgxpool.Pool
}

// poolConfig sizes the pool for writers battles flushing at once: each flush
// holds one connection for its transaction, so MaxConns is raised to writers
// when the configured value is lower.
//
// Postcondition: MinConns <= MaxConns; every session reports applicationName
// and, when cfg.StatementTimeout > 0, that server-side statement timeout.
func poolConfig(cfg config.DatabaseConfig, writers int) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	pc.MaxConns = max(cfg.MaxConns, int32(writers), 1)
	pc.MinConns = min(cfg.MinConns, pc.MaxConns)
	pc.MaxConnLifetime = cfg.MaxConnLifetime

	params := pc.ConnConfig.RuntimeParams
	params["application_name"] = applicationName
	if cfg.StatementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}
	return pc, nil
}

// NewPool connects to the statistics database.
//
// Precondition: cfg must have passed config validation; writers is the number
// of battles that may save concurrently (0 for read-only use).
// Postcondition: Returns a pinged Pool or a non-nil error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, writers int, logger *zap.Logger) (*Pool, error) {
	pc, err := poolConfig(cfg, writers)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if logger != nil {
		logger.Info("statistics database connected",
			zap.String("host", cfg.Host),
			zap.String("database", cfg.Name),
			zap.Int32("max_conns", pc.MaxConns),
		)
	}
	return &Pool{pool: pool}, nil
}

// BattleStats returns the statistics repository over p.
func (p *Pool) BattleStats() *BattleStatsRepository {
	return NewBattleStatsRepository(p.pool)
}

// Close releases all pool resources.
func (p *Pool) Close() {
	p.pool.Close()
}

// DB returns the underlying pgxpool.Pool.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}
