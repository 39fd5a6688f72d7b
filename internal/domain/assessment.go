package domain

// Decision represents the outcome of risk scoring
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReview  Decision = "review"
	DecisionDecline Decision = "decline"
)

// RiskLevel is a reporting band over the final score. It never gates the decision.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// Breakdown keys
const (
	FactorBase            = "base_risk"
	FactorAmount          = "amount_risk"
	FactorFraudPattern    = "fraud_pattern_risk"
	FactorQRCode          = "qr_code_risk"
	FactorBehavioral      = "behavioral_risk"
	FactorMetadata        = "metadata_risk"
	FactorGraphTemporal   = "graph_temporal_risk"
	FactorContentAnalysis = "content_analysis_risk"
)

// BreakdownKeys lists every key a successful assessment carries
func BreakdownKeys() []string {
	return []string{
		FactorBase,
		FactorAmount,
		FactorFraudPattern,
		FactorQRCode,
		FactorBehavioral,
		FactorMetadata,
		FactorGraphTemporal,
		FactorContentAnalysis,
	}
}

// FallbackScore is the score carried by a degraded assessment
const FallbackScore = 0.5

// RiskAssessment is the result of scoring one transaction.
// A fallback assessment has Error set and no breakdown or stats.
type RiskAssessment struct {
	TransactionID string             `json:"transaction_id,omitempty"`
	FinalScore    float64            `json:"final_score"`
	Decision      Decision           `json:"decision"`
	RiskLevel     RiskLevel          `json:"risk_level,omitempty"`
	RiskBreakdown map[string]float64 `json:"risk_breakdown,omitempty"`
	UserStats     *UserBehaviorStats `json:"user_stats,omitempty"`
	Amount        float64            `json:"amount"`

	QRAnalyzed       bool `json:"qr_analyzed"`
	DeviceAnalyzed   bool `json:"device_analyzed"`
	LocationAnalyzed bool `json:"location_analyzed"`
	MetadataAnalyzed bool `json:"metadata_analyzed"`

	Error string `json:"error,omitempty"`
}

// NewFallbackAssessment builds the fail-safe review assessment
func NewFallbackAssessment(txID string, err error) *RiskAssessment {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &RiskAssessment{
		TransactionID: txID,
		FinalScore:    FallbackScore,
		Decision:      DecisionReview,
		Error:         msg,
	}
}

// IsFallback returns true if the assessment is a degraded result
func (a *RiskAssessment) IsFallback() bool {
	return a.Error != ""
}

// IsApproved returns true if the transaction was approved
func (a *RiskAssessment) IsApproved() bool {
	return a.Decision == DecisionApprove
}

// IsDeclined returns true if the transaction was declined
func (a *RiskAssessment) IsDeclined() bool {
	return a.Decision == DecisionDecline
}

// NeedsReview returns true if manual review is required
func (a *RiskAssessment) NeedsReview() bool {
	return a.Decision == DecisionReview
}
