// Package metrics provides Prometheus instrumentation for the risk service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "upi_risk"

var (
	// AssessmentsTotal counts completed assessments by decision.
	AssessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_assessments_total",
			Help:      "Total risk assessments by decision.",
		},
		[]string{"decision"},
	)

	// FallbacksTotal counts degraded review assessments.
	FallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "risk_assessment_fallbacks_total",
		Help:      "Total assessments that fell back to the review decision.",
	})

	// ScoreDistribution observes final scores.
	ScoreDistribution = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "risk_score",
		Help:      "Distribution of final risk scores.",
		Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
	})

	// ScoringDuration observes end-to-end scoring latency.
	ScoringDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "risk_scoring_duration_seconds",
		Help:      "Scoring latency in seconds, profile lookup included.",
		Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	// ProfileLookupsTotal counts behavior baseline lookups by source and result.
	ProfileLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_profile_lookups_total",
			Help:      "Total user stats lookups by source and result.",
		},
		[]string{"source", "result"}, // result: "hit", "miss", "error"
	)

	// EventsConsumedTotal counts transaction events by outcome.
	EventsConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_events_total",
			Help:      "Total transaction events consumed by outcome.",
		},
		[]string{"outcome"}, // "scored", "rejected", "publish_failed", "aborted"
	)
)

func init() {
	prometheus.MustRegister(
		AssessmentsTotal,
		FallbacksTotal,
		ScoreDistribution,
		ScoringDuration,
		ProfileLookupsTotal,
		EventsConsumedTotal,
	)
}

// ObserveAssessment records one finished assessment
func ObserveAssessment(decision string, score float64, fallback bool, d time.Duration) {
	AssessmentsTotal.WithLabelValues(decision).Inc()
	ScoreDistribution.Observe(score)
	ScoringDuration.Observe(d.Seconds())
	if fallback {
		FallbacksTotal.Inc()
	}
}

// ObserveProfileLookup records one stats lookup
func ObserveProfileLookup(source, result string) {
	ProfileLookupsTotal.WithLabelValues(source, result).Inc()
}

// ObserveEvent records one consumed transaction event
func ObserveEvent(outcome string) {
	EventsConsumedTotal.WithLabelValues(outcome).Inc()
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
