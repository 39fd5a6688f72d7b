package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventTypeTransactionSubmitted = "upi.transaction.submitted"
	EventTypeRiskAssessed         = "upi.risk.assessed"
)

// TransactionEvent is the Kafka event received from the payment service
type TransactionEvent struct {
	EventID   uuid.UUID     `json:"event_id"`
	EventType string        `json:"event_type"`
	Timestamp time.Time     `json:"timestamp"`
	Payload   *ScoreRequest `json:"payload"`
}

// AssessmentEvent is published for every scored transaction
type AssessmentEvent struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	CausationID   uuid.UUID       `json:"causation_id"`
	TransactionID string          `json:"transaction_id"`
	Assessment    *RiskAssessment `json:"payload"`
}

// NewAssessmentEvent wraps an assessment produced from the given transaction event
func NewAssessmentEvent(cause uuid.UUID, a *RiskAssessment) *AssessmentEvent {
	return &AssessmentEvent{
		EventID:       uuid.New(),
		EventType:     EventTypeRiskAssessed,
		Timestamp:     time.Now().UTC(),
		CausationID:   cause,
		TransactionID: a.TransactionID,
		Assessment:    a,
	}
}
