package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidStats is returned for behavior baselines that break their invariants
var ErrInvalidStats = errors.New("invalid user behavior stats")

// ErrStatsNotFound is returned by profile stores that hold no history for a user
var ErrStatsNotFound = errors.New("user behavior stats not found")

// UserBehaviorStats is a user's historical spending baseline
type UserBehaviorStats struct {
	AvgAmount      float64 `json:"avg_amount"`
	MaxAmount      float64 `json:"max_amount"`
	Percentile95   float64 `json:"percentile_95"`
	AvgDailyCount  float64 `json:"avg_daily_count"`
	MaxHourlyCount int     `json:"max_hourly_count"`
}

// DefaultUserStats is the baseline used when no profile store knows the user
func DefaultUserStats() UserBehaviorStats {
	return UserBehaviorStats{
		AvgAmount:      800,
		MaxAmount:      2000,
		Percentile95:   1500,
		AvgDailyCount:  3,
		MaxHourlyCount: 2,
	}
}

// Validate checks that all values are finite, non-negative and that the
// 95th percentile does not exceed the maximum.
func (s UserBehaviorStats) Validate() error {
	values := []struct {
		name  string
		value float64
	}{
		{"avg_amount", s.AvgAmount},
		{"max_amount", s.MaxAmount},
		{"percentile_95", s.Percentile95},
		{"avg_daily_count", s.AvgDailyCount},
		{"max_hourly_count", float64(s.MaxHourlyCount)},
	}
	for _, v := range values {
		if math.IsNaN(v.value) || math.IsInf(v.value, 0) || v.value < 0 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidStats, v.name, v.value)
		}
	}
	if s.Percentile95 > s.MaxAmount {
		return fmt.Errorf("%w: percentile_95 %.2f exceeds max_amount %.2f", ErrInvalidStats, s.Percentile95, s.MaxAmount)
	}
	return nil
}
