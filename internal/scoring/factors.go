package scoring

import (
	"math"
	"strings"

	"github.com/banking/upi-risk-service/internal/domain"
)

// Fixed factor increments
const (
	amountFarAboveP95 = 0.7 // amount > 2 x p95
	amountAboveP95    = 0.4 // amount > p95
	amountAboveAvg    = 0.2 // amount > 1.5 x avg

	patternQRManipulated   = 0.4
	patternDeviceChanged   = 0.2
	patternDeviceAndPlace  = 0.2
	patternDemoSender      = 0.3
	patternSuspiciousPayee = 0.2
	patternSuspiciousURL   = 0.1

	behaviorDeviceAndPlace = 0.6
	behaviorDeviceOnly     = 0.3
	behaviorPlaceOnly      = 0.2

	metaHighVelocity   = 0.3
	metaNewBeneficiary = 0.2
	metaLoginAttempts  = 0.4
	metaRiskyLink      = 0.2
)

// factorScores holds the per-factor risks of one evaluation
type factorScores struct {
	base            float64
	amount          float64
	fraudPattern    float64
	qrCode          float64
	behavioral      float64
	metadata        float64
	graphTemporal   float64
	contentAnalysis float64
}

// calculator evaluates one policy snapshot. It is built once per policy and
// shared read-only by concurrent callers.
type calculator struct {
	policy              Policy
	suspiciousReceivers map[string]bool
	riskyLinkSources    map[string]bool
}

func newCalculator(p Policy) *calculator {
	receivers := make(map[string]bool, len(p.SuspiciousReceivers))
	for _, r := range p.SuspiciousReceivers {
		receivers[r] = true
	}
	sources := make(map[string]bool, len(p.RiskyLinkSources))
	for _, s := range p.RiskyLinkSources {
		sources[strings.ToLower(s)] = true
	}

	return &calculator{
		policy:              p,
		suspiciousReceivers: receivers,
		riskyLinkSources:    sources,
	}
}

// amountRisk tiers the amount against the user's baseline. A baseline
// without a positive 95th percentile carries no amount risk.
func (c *calculator) amountRisk(amount float64, stats domain.UserBehaviorStats) float64 {
	if stats.Percentile95 <= 0 {
		return 0
	}
	switch {
	case amount > stats.Percentile95*2:
		return amountFarAboveP95
	case amount > stats.Percentile95:
		return amountAboveP95
	case amount > stats.AvgAmount*1.5:
		return amountAboveAvg
	default:
		return 0
	}
}

// fraudPatternRisk accumulates known fraud-trend signals and caps the sum
func (c *calculator) fraudPatternRisk(tx *domain.TransactionInput) float64 {
	risk := 0.0

	if tx.Metadata != nil && tx.Metadata.QRManipulated {
		risk += patternQRManipulated
	}

	if tx.DeviceChanged() {
		risk += patternDeviceChanged
		if tx.LocationChanged() {
			risk += patternDeviceAndPlace
		}
	}

	risk += c.demoSenderRisk(tx)

	if tx.ReceiverID != "" && c.suspiciousReceivers[tx.ReceiverID] {
		risk += patternSuspiciousPayee
	}

	if tx.PaymentURL != "" {
		for _, part := range c.policy.SuspiciousURLParts {
			if part != "" && strings.Contains(tx.PaymentURL, part) {
				risk += patternSuspiciousURL
				break
			}
		}
	}

	return math.Min(risk, c.policy.FraudPatternCap)
}

// qrRisk scores the raw QR payload against the configured markers
func (c *calculator) qrRisk(payload string) float64 {
	if payload == "" {
		return 0
	}
	for _, m := range c.policy.QRMarkers {
		if strings.Contains(payload, m.Substring) {
			return m.Score
		}
	}
	return 0
}

// behavioralRisk scores device and location changes
func (c *calculator) behavioralRisk(tx *domain.TransactionInput) float64 {
	device, place := tx.DeviceChanged(), tx.LocationChanged()
	switch {
	case device && place:
		return behaviorDeviceAndPlace
	case device:
		return behaviorDeviceOnly
	case place:
		return behaviorPlaceOnly
	default:
		return 0
	}
}

// metadataRisk sums the behavioral metadata signals. The sum is not capped here.
func (c *calculator) metadataRisk(m *domain.TransactionMetadata) float64 {
	if m == nil {
		return 0
	}
	risk := 0.0
	if m.HighVelocity {
		risk += metaHighVelocity
	}
	if m.NewBeneficiary {
		risk += metaNewBeneficiary
	}
	if m.LoginAttempts24h > c.policy.LoginAttemptLimit {
		risk += metaLoginAttempts
	}
	if m.LinkSource != "" && c.riskyLinkSources[strings.ToLower(m.LinkSource)] {
		risk += metaRiskyLink
	}
	return risk
}

// composite combines the factors with the policy weights and normalizes
func (c *calculator) composite(f factorScores) float64 {
	w := c.policy.Weights
	raw := f.base*w.Base +
		f.amount*w.Amount +
		f.fraudPattern*w.FraudPattern +
		f.qrCode*w.QRCode +
		f.behavioral*w.Behavioral +
		f.metadata*w.Metadata +
		f.graphTemporal*w.GraphTemporal +
		f.contentAnalysis*w.ContentAnalysis
	return clamp01(raw / w.Sum())
}

// decide maps a final score to a decision. Only the medium and high
// thresholds take part.
func (c *calculator) decide(score float64) domain.Decision {
	switch {
	case score >= c.policy.HighRiskThreshold:
		return domain.DecisionDecline
	case score >= c.policy.MediumRiskThreshold:
		return domain.DecisionReview
	default:
		return domain.DecisionApprove
	}
}

// riskLevel returns the reporting band for a final score
func (c *calculator) riskLevel(score float64) domain.RiskLevel {
	switch {
	case score >= c.policy.HighRiskThreshold:
		return domain.RiskLevelCritical
	case score >= c.policy.MediumRiskThreshold:
		return domain.RiskLevelHigh
	case score >= c.policy.LowRiskThreshold:
		return domain.RiskLevelMedium
	default:
		return domain.RiskLevelLow
	}
}

func (f factorScores) breakdown() map[string]float64 {
	return map[string]float64{
		domain.FactorBase:            f.base,
		domain.FactorAmount:          f.amount,
		domain.FactorFraudPattern:    f.fraudPattern,
		domain.FactorQRCode:          f.qrCode,
		domain.FactorBehavioral:      f.behavioral,
		domain.FactorMetadata:        f.metadata,
		domain.FactorGraphTemporal:   f.graphTemporal,
		domain.FactorContentAnalysis: f.contentAnalysis,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
