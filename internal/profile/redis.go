package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/banking/upi-risk-service/internal/config"
	"github.com/banking/upi-risk-service/internal/domain"
	"github.com/banking/upi-risk-service/internal/metrics"
	"github.com/banking/upi-risk-service/internal/pkg/logger"
)

const statsKeyPrefix = "risk:stats:"

// NewRedisClient builds a client from config and verifies connectivity
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return client, nil
}

// RedisCache is a read-through cache in front of another store
type RedisCache struct {
	client redis.Cmdable
	next   Store
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCache creates a cache. next may be nil, in which case a miss
// returns domain.ErrStatsNotFound.
func NewRedisCache(client redis.Cmdable, next Store, ttl time.Duration, log *logger.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		next:   next,
		ttl:    ttl,
		log:    log.Named("stats_cache"),
	}
}

func statsKey(userID string) string {
	return statsKeyPrefix + userID
}

// GetStats implements Store
func (c *RedisCache) GetStats(ctx context.Context, userID string) (domain.UserBehaviorStats, error) {
	key := statsKey(userID)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var stats domain.UserBehaviorStats
		if jerr := json.Unmarshal(raw, &stats); jerr == nil {
			metrics.ObserveProfileLookup(SourceRedis, ResultHit)
			return stats, nil
		}
		// corrupt entry, drop it and reload
		c.log.Warn("discarding undecodable stats entry", logger.StringField("key", key))
		_ = c.client.Del(ctx, key).Err()
		metrics.ObserveProfileLookup(SourceRedis, ResultMiss)
	case errors.Is(err, redis.Nil):
		metrics.ObserveProfileLookup(SourceRedis, ResultMiss)
	default:
		metrics.ObserveProfileLookup(SourceRedis, ResultError)
		c.log.ProfileLookupFailed(userID, SourceRedis, err)
	}

	if c.next == nil {
		return domain.UserBehaviorStats{}, domain.ErrStatsNotFound
	}

	stats, err := c.next.GetStats(ctx, userID)
	if err != nil {
		return domain.UserBehaviorStats{}, err
	}

	if err := c.Set(ctx, userID, stats); err != nil {
		c.log.Warn("failed to cache user stats",
			logger.StringField("user_id", userID),
			logger.ErrorField(err),
		)
	}
	return stats, nil
}

// Set stores a baseline with the configured TTL
func (c *RedisCache) Set(ctx context.Context, userID string, stats domain.UserBehaviorStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, statsKey(userID), data, c.ttl).Err()
}

// Invalidate drops a cached baseline
func (c *RedisCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, statsKey(userID)).Err()
}
