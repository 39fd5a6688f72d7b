// Package profile resolves per-user behavior baselines from fixtures,
// PostgreSQL history and a Redis cache.
package profile

import (
	"context"

	"github.com/banking/upi-risk-service/internal/domain"
)

// Store resolves a user's behavior baseline
type Store interface {
	GetStats(ctx context.Context, userID string) (domain.UserBehaviorStats, error)
}

// Lookup sources reported to metrics
const (
	SourceFixture  = "fixture"
	SourceRedis    = "redis"
	SourcePostgres = "postgres"
)

// Lookup results reported to metrics
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)
