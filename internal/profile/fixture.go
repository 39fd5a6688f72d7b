package profile

import (
	"context"
	"sync"

	"github.com/banking/upi-risk-service/internal/domain"
	"github.com/banking/upi-risk-service/internal/metrics"
)

// FixtureProvider serves the default baseline to every user. When a
// high-risk user id is configured, that user gets a lowered 95th percentile
// so demo payments trip the amount tiers.
type FixtureProvider struct {
	mu             sync.RWMutex
	highRiskUserID string
	highRiskP95    float64
}

// NewFixtureProvider creates a fixture provider. An empty highRiskUserID
// disables the override.
func NewFixtureProvider(highRiskUserID string, highRiskP95 float64) *FixtureProvider {
	return &FixtureProvider{
		highRiskUserID: highRiskUserID,
		highRiskP95:    highRiskP95,
	}
}

// SetHighRiskUser replaces the high-risk override. An empty id disables it.
func (p *FixtureProvider) SetHighRiskUser(userID string, p95 float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.highRiskUserID = userID
	p.highRiskP95 = p95
}

// Stats returns the fixture baseline for a user. It never fails.
func (p *FixtureProvider) Stats(userID string) (domain.UserBehaviorStats, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := domain.DefaultUserStats()
	if p.highRiskUserID != "" && userID == p.highRiskUserID {
		stats.Percentile95 = p.highRiskP95
	}
	return stats, nil
}

// GetStats implements Store
func (p *FixtureProvider) GetStats(_ context.Context, userID string) (domain.UserBehaviorStats, error) {
	metrics.ObserveProfileLookup(SourceFixture, ResultHit)
	return p.Stats(userID)
}
