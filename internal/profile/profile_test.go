package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banking/upi-risk-service/internal/config"
	"github.com/banking/upi-risk-service/internal/domain"
	"github.com/banking/upi-risk-service/internal/pkg/logger"
)

type stubStore struct {
	stats domain.UserBehaviorStats
	err   error
	calls int
}

func (s *stubStore) GetStats(_ context.Context, _ string) (domain.UserBehaviorStats, error) {
	s.calls++
	return s.stats, s.err
}

func TestFixtureProvider_HighRiskUser(t *testing.T) {
	p := NewFixtureProvider("high_risk_user", 500)

	stats, err := p.Stats("high_risk_user")
	require.NoError(t, err)
	assert.Equal(t, 500.0, stats.Percentile95)
	assert.NoError(t, stats.Validate())

	stats, err = p.GetStats(context.Background(), "someone")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultUserStats(), stats)
}

func TestFixtureProvider_OverrideDisabled(t *testing.T) {
	p := NewFixtureProvider("", 500)

	stats, err := p.Stats("high_risk_user")
	require.NoError(t, err)
	assert.Equal(t, 1500.0, stats.Percentile95)
}

func TestFixtureProvider_SetHighRiskUser(t *testing.T) {
	p := NewFixtureProvider("high_risk_user", 500)

	p.SetHighRiskUser("vip", 300)

	stats, err := p.Stats("vip")
	require.NoError(t, err)
	assert.Equal(t, 300.0, stats.Percentile95)

	stats, err = p.Stats("high_risk_user")
	require.NoError(t, err)
	assert.Equal(t, 1500.0, stats.Percentile95)

	p.SetHighRiskUser("", 0)

	stats, err = p.Stats("vip")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultUserStats(), stats)
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisCache_ReadThrough(t *testing.T) {
	mr, client := newMiniredis(t)
	next := &stubStore{stats: domain.UserBehaviorStats{AvgAmount: 10, MaxAmount: 50, Percentile95: 40, AvgDailyCount: 1, MaxHourlyCount: 1}}
	cache := NewRedisCache(client, next, time.Hour, logger.NewNop())

	first, err := cache.GetStats(context.Background(), "u1")
	require.NoError(t, err)
	second, err := cache.GetStats(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, next.stats, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.calls)

	assert.True(t, mr.Exists("risk:stats:u1"))
	assert.Equal(t, time.Hour, mr.TTL("risk:stats:u1"))
}

func TestRedisCache_ExpiredEntryReloads(t *testing.T) {
	mr, client := newMiniredis(t)
	next := &stubStore{stats: domain.DefaultUserStats()}
	cache := NewRedisCache(client, next, time.Minute, logger.NewNop())

	_, err := cache.GetStats(context.Background(), "u1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = cache.GetStats(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestRedisCache_CorruptEntryDiscarded(t *testing.T) {
	mr, client := newMiniredis(t)
	require.NoError(t, mr.Set("risk:stats:u1", "{not json"))

	next := &stubStore{stats: domain.DefaultUserStats()}
	cache := NewRedisCache(client, next, time.Hour, logger.NewNop())

	stats, err := cache.GetStats(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultUserStats(), stats)

	raw, err := mr.Get("risk:stats:u1")
	require.NoError(t, err)
	var cached domain.UserBehaviorStats
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.Equal(t, stats, cached)
}

func TestRedisCache_MissWithoutBackingStore(t *testing.T) {
	_, client := newMiniredis(t)
	cache := NewRedisCache(client, nil, time.Hour, logger.NewNop())

	_, err := cache.GetStats(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrStatsNotFound)
}

func TestRedisCache_RedisDownStillServesFromNext(t *testing.T) {
	mr, client := newMiniredis(t)
	mr.Close()

	next := &stubStore{stats: domain.DefaultUserStats()}
	cache := NewRedisCache(client, next, time.Hour, logger.NewNop())

	stats, err := cache.GetStats(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultUserStats(), stats)
}

func TestRedisCache_Invalidate(t *testing.T) {
	mr, client := newMiniredis(t)
	cache := NewRedisCache(client, nil, time.Hour, logger.NewNop())

	require.NoError(t, cache.Set(context.Background(), "u1", domain.DefaultUserStats()))
	require.NoError(t, cache.Invalidate(context.Background(), "u1"))
	assert.False(t, mr.Exists("risk:stats:u1"))
}

// fakeRow scans fixed values into the destination pointers
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: want %d destinations, got %d", len(r.values), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = r.values[i].(int64)
		case *float64:
			*p = r.values[i].(float64)
		case *int:
			*p = r.values[i].(int)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

type fakeQuerier struct {
	row   fakeRow
	args  []any
	calls int
}

func (q *fakeQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	q.calls++
	q.args = args
	return q.row
}

func TestPostgresStore_GetStats(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{values: []any{int64(40), 750.0, 3000.0, 2100.0, 2.5, 4}}}
	store := NewPostgresStore(q, 90*24*time.Hour)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	stats, err := store.GetStats(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, domain.UserBehaviorStats{
		AvgAmount:      750,
		MaxAmount:      3000,
		Percentile95:   2100,
		AvgDailyCount:  2.5,
		MaxHourlyCount: 4,
	}, stats)
	require.Len(t, q.args, 2)
	assert.Equal(t, "u1", q.args[0])
	assert.Equal(t, now.Add(-90*24*time.Hour), q.args[1])
}

func TestPostgresStore_ShortHistoryUsesMax(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{values: []any{int64(3), 100.0, 400.0, 380.0, 1.0, 2}}}
	store := NewPostgresStore(q, time.Hour)

	stats, err := store.GetStats(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 400.0, stats.Percentile95)
}

func TestPostgresStore_NoHistory(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{values: []any{int64(0), 0.0, 0.0, 0.0, 0.0, 0}}}
	store := NewPostgresStore(q, time.Hour)

	_, err := store.GetStats(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrStatsNotFound)
}

func TestPostgresStore_QueryError(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{err: errors.New("connection reset")}}
	store := NewPostgresStore(q, time.Hour)

	_, err := store.GetStats(context.Background(), "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrStatsNotFound)
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 5432, Database: "upi_db", SSLMode: "disable"})
	assert.Equal(t, "postgres://u:p@db:5432/upi_db?sslmode=disable", dsn)
}

func TestBreakerStore_OpensAfterFailures(t *testing.T) {
	next := &stubStore{err: errors.New("timeout")}
	b := NewBreakerStore("test", next, config.BreakerConfig{
		MaxRequests:         1,
		Timeout:             time.Minute,
		ConsecutiveFailures: 2,
	}, logger.NewNop())

	for i := 0; i < 2; i++ {
		_, err := b.GetStats(context.Background(), "u1")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.GetStats(context.Background(), "u1")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, next.calls)
}

func TestBreakerStore_NotFoundDoesNotTrip(t *testing.T) {
	next := &stubStore{err: domain.ErrStatsNotFound}
	b := NewBreakerStore("test", next, config.BreakerConfig{ConsecutiveFailures: 1, Timeout: time.Minute}, logger.NewNop())

	for i := 0; i < 3; i++ {
		_, err := b.GetStats(context.Background(), "u1")
		assert.ErrorIs(t, err, domain.ErrStatsNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerStore_PassesThrough(t *testing.T) {
	next := &stubStore{stats: domain.DefaultUserStats()}
	b := NewBreakerStore("test", next, config.BreakerConfig{}, logger.NewNop())

	stats, err := b.GetStats(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultUserStats(), stats)
}
