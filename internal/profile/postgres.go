package profile

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/banking/upi-risk-service/internal/config"
	"github.com/banking/upi-risk-service/internal/domain"
	"github.com/banking/upi-risk-service/internal/metrics"
)

// minHistoryForPercentile is the row count below which p95 falls back to max
const minHistoryForPercentile = 5

// Querier is the subset of pgxpool.Pool the store needs
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore derives baselines from the transactions table
type PostgresStore struct {
	db     Querier
	window time.Duration
	now    func() time.Time
}

// NewPostgresStore creates a store reading the given history window
func NewPostgresStore(db Querier, window time.Duration) *PostgresStore {
	return &PostgresStore{
		db:     db,
		window: window,
		now:    time.Now,
	}
}

// DSN returns a PostgreSQL connection string
func DSN(cfg config.DatabaseConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, sslMode,
	)
}

// NewPool creates a connection pool and pings the database
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

const statsQuery = `
	WITH recent AS (
		SELECT amount, created_at
		FROM transactions
		WHERE sender_id = $1 AND created_at >= $2
	),
	daily AS (
		SELECT COUNT(*) AS tx_count FROM recent GROUP BY date_trunc('day', created_at)
	),
	hourly AS (
		SELECT COUNT(*) AS tx_count FROM recent GROUP BY date_trunc('hour', created_at)
	)
	SELECT
		(SELECT COUNT(*) FROM recent),
		COALESCE((SELECT AVG(amount) FROM recent), 0)::float8,
		COALESCE((SELECT MAX(amount) FROM recent), 0)::float8,
		COALESCE((SELECT percentile_cont(0.95) WITHIN GROUP (ORDER BY amount) FROM recent), 0)::float8,
		COALESCE((SELECT AVG(tx_count) FROM daily), 0)::float8,
		COALESCE((SELECT MAX(tx_count) FROM hourly), 0)::int
`

// GetStats implements Store
func (s *PostgresStore) GetStats(ctx context.Context, userID string) (domain.UserBehaviorStats, error) {
	since := s.now().Add(-s.window)

	var (
		count int64
		stats domain.UserBehaviorStats
	)
	err := s.db.QueryRow(ctx, statsQuery, userID, since).Scan(
		&count,
		&stats.AvgAmount,
		&stats.MaxAmount,
		&stats.Percentile95,
		&stats.AvgDailyCount,
		&stats.MaxHourlyCount,
	)
	if err != nil {
		metrics.ObserveProfileLookup(SourcePostgres, ResultError)
		return domain.UserBehaviorStats{}, fmt.Errorf("failed to query user stats: %w", err)
	}

	if count == 0 {
		metrics.ObserveProfileLookup(SourcePostgres, ResultMiss)
		return domain.UserBehaviorStats{}, domain.ErrStatsNotFound
	}

	if count < minHistoryForPercentile {
		stats.Percentile95 = stats.MaxAmount
	}

	metrics.ObserveProfileLookup(SourcePostgres, ResultHit)
	return stats, nil
}
