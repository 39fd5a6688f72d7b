package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/banking/upi-risk-service/internal/config"
)

// ErrInvalidPolicy is returned when a policy cannot be used for scoring
var ErrInvalidPolicy = errors.New("invalid scoring policy")

// FactorWeights are the fixed weights of the composite score. The composite
// is normalized by their sum.
type FactorWeights struct {
	Base            float64 `json:"base"`
	Amount          float64 `json:"amount"`
	FraudPattern    float64 `json:"fraud_pattern"`
	QRCode          float64 `json:"qr_code"`
	Behavioral      float64 `json:"behavioral"`
	Metadata        float64 `json:"metadata"`
	GraphTemporal   float64 `json:"graph_temporal"`
	ContentAnalysis float64 `json:"content_analysis"`
}

// Sum returns the normalization divisor
func (w FactorWeights) Sum() float64 {
	return w.Base + w.Amount + w.FraudPattern + w.QRCode +
		w.Behavioral + w.Metadata + w.GraphTemporal + w.ContentAnalysis
}

// QRMarker maps a substring of a QR payload to a risk score.
// Markers are checked in order and the first hit wins.
type QRMarker struct {
	Substring string  `json:"substring"`
	Score     float64 `json:"score"`
}

// DemoPolicy gates the demo-only scoring paths: simulation overrides and
// the demo sender rule. Both are ignored when Enabled is false.
type DemoPolicy struct {
	Enabled  bool   `json:"enabled"`
	SenderID string `json:"sender_id"`
}

// Policy is the complete scoring configuration. Engines never mutate a
// policy; a new one is swapped in through Engine.Reload.
type Policy struct {
	// Reported with the policy but not part of the composite formula
	GraphTemporalWeight   float64 `json:"graph_temporal_weight"`
	ContentAnalysisWeight float64 `json:"content_analysis_weight"`

	// Only medium and high gate the decision; low is a reporting band
	LowRiskThreshold    float64 `json:"low_risk_threshold"`
	MediumRiskThreshold float64 `json:"medium_risk_threshold"`
	HighRiskThreshold   float64 `json:"high_risk_threshold"`

	Weights         FactorWeights `json:"weights"`
	BaseRisk        float64       `json:"base_risk"`
	FraudPatternCap float64       `json:"fraud_pattern_cap"`

	SuspiciousReceivers []string   `json:"suspicious_receivers"`
	SuspiciousURLParts  []string   `json:"suspicious_url_parts"`
	QRMarkers           []QRMarker `json:"qr_markers"`
	RiskyLinkSources    []string   `json:"risky_link_sources"`
	LoginAttemptLimit   int        `json:"login_attempt_limit"`

	Demo DemoPolicy `json:"demo"`
}

// DefaultWeights returns the reference composite weights (sum 1.4)
func DefaultWeights() FactorWeights {
	return FactorWeights{
		Base:            0.1,
		Amount:          0.2,
		FraudPattern:    0.2,
		QRCode:          0.3,
		Behavioral:      0.2,
		Metadata:        0.2,
		GraphTemporal:   0.1,
		ContentAnalysis: 0.1,
	}
}

// DefaultPolicy returns the reference policy, demo fixtures included
func DefaultPolicy() Policy {
	return Policy{
		GraphTemporalWeight:   0.5,
		ContentAnalysisWeight: 0.5,
		LowRiskThreshold:      0.3,
		MediumRiskThreshold:   0.6,
		HighRiskThreshold:     0.8,
		Weights:               DefaultWeights(),
		BaseRisk:              0.1,
		FraudPatternCap:       0.8,
		SuspiciousReceivers:   []string{"merchant999", "fakepayee", "merchant456"},
		SuspiciousURLParts:    []string{"example.com"},
		QRMarkers: []QRMarker{
			{Substring: "fakehacker@fraud", Score: 0.9},
			{Substring: "suspicious", Score: 0.7},
		},
		RiskyLinkSources:  []string{"whatsapp", "email", "ad"},
		LoginAttemptLimit: 5,
		Demo: DemoPolicy{
			Enabled:  true,
			SenderID: "user123",
		},
	}
}

// PolicyFromConfig overlays the configurable parts of a policy on the defaults
func PolicyFromConfig(cfg config.PolicyConfig) Policy {
	p := DefaultPolicy()
	p.GraphTemporalWeight = cfg.GraphTemporalWeight
	p.ContentAnalysisWeight = cfg.ContentAnalysisWeight
	p.LowRiskThreshold = cfg.LowRiskThreshold
	p.MediumRiskThreshold = cfg.MediumRiskThreshold
	p.HighRiskThreshold = cfg.HighRiskThreshold
	p.FraudPatternCap = cfg.FraudPatternCap
	p.SuspiciousReceivers = append([]string(nil), cfg.SuspiciousReceivers...)
	p.SuspiciousURLParts = append([]string(nil), cfg.SuspiciousURLParts...)
	p.RiskyLinkSources = append([]string(nil), cfg.RiskyLinkSources...)
	p.LoginAttemptLimit = cfg.LoginAttemptLimit
	p.Demo = DemoPolicy{
		Enabled:  cfg.Demo.Enabled,
		SenderID: cfg.Demo.SenderID,
	}
	return p
}

// Validate checks thresholds, weights and caps
func (p Policy) Validate() error {
	inUnit := func(name string, v float64) error {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%w: %s must be within [0,1], got %v", ErrInvalidPolicy, name, v)
		}
		return nil
	}

	checks := []struct {
		name  string
		value float64
	}{
		{"graph_temporal_weight", p.GraphTemporalWeight},
		{"content_analysis_weight", p.ContentAnalysisWeight},
		{"low_risk_threshold", p.LowRiskThreshold},
		{"medium_risk_threshold", p.MediumRiskThreshold},
		{"high_risk_threshold", p.HighRiskThreshold},
		{"base_risk", p.BaseRisk},
		{"fraud_pattern_cap", p.FraudPatternCap},
	}
	for _, c := range checks {
		if err := inUnit(c.name, c.value); err != nil {
			return err
		}
	}

	if !(p.LowRiskThreshold <= p.MediumRiskThreshold && p.MediumRiskThreshold <= p.HighRiskThreshold) {
		return fmt.Errorf("%w: thresholds must satisfy low <= medium <= high", ErrInvalidPolicy)
	}

	w := p.Weights
	for _, v := range []float64{w.Base, w.Amount, w.FraudPattern, w.QRCode, w.Behavioral, w.Metadata, w.GraphTemporal, w.ContentAnalysis} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: factor weights must be finite and non-negative", ErrInvalidPolicy)
		}
	}
	if w.Sum() <= 0 {
		return fmt.Errorf("%w: factor weights sum to zero", ErrInvalidPolicy)
	}

	for _, m := range p.QRMarkers {
		if m.Substring == "" {
			return fmt.Errorf("%w: qr marker with empty substring", ErrInvalidPolicy)
		}
		if err := inUnit("qr marker score", m.Score); err != nil {
			return err
		}
	}

	if p.LoginAttemptLimit < 0 {
		return fmt.Errorf("%w: login_attempt_limit must be non-negative", ErrInvalidPolicy)
	}
	return nil
}

// Clone returns a deep copy so callers cannot reach the engine's slices
func (p Policy) Clone() Policy {
	c := p
	c.SuspiciousReceivers = append([]string(nil), p.SuspiciousReceivers...)
	c.SuspiciousURLParts = append([]string(nil), p.SuspiciousURLParts...)
	c.QRMarkers = append([]QRMarker(nil), p.QRMarkers...)
	c.RiskyLinkSources = append([]string(nil), p.RiskyLinkSources...)
	return c
}
