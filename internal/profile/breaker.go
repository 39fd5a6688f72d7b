package profile

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"

	"github.com/banking/upi-risk-service/internal/config"
	"github.com/banking/upi-risk-service/internal/domain"
	"github.com/banking/upi-risk-service/internal/pkg/logger"
)

// BreakerStore guards a remote store with a circuit breaker. A missing
// baseline is a successful lookup and never trips the breaker.
type BreakerStore struct {
	cb   *gobreaker.CircuitBreaker
	next Store
}

// NewBreakerStore wraps next in a named circuit breaker
func NewBreakerStore(name string, next Store, cfg config.BreakerConfig, log *logger.Logger) *BreakerStore {
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrStatsNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("profile store breaker state changed",
				logger.StringField("breaker", name),
				logger.StringField("from", from.String()),
				logger.StringField("to", to.String()),
			)
		},
	}

	return &BreakerStore{
		cb:   gobreaker.NewCircuitBreaker(settings),
		next: next,
	}
}

// GetStats implements Store. While the breaker is open it fails fast with
// gobreaker.ErrOpenState.
func (b *BreakerStore) GetStats(ctx context.Context, userID string) (domain.UserBehaviorStats, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.GetStats(ctx, userID)
	})
	if err != nil {
		return domain.UserBehaviorStats{}, err
	}
	return out.(domain.UserBehaviorStats), nil
}

// State reports the breaker state
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}
