package domain

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// SimulationType names a demo fraud scenario
type SimulationType string

const (
	SimulationQRCodeTampering SimulationType = "qr_code_tampering"
	SimulationAccountTakeover SimulationType = "account_takeover"
	SimulationFakeUPI         SimulationType = "fake_upi"
	SimulationDeviceSpoofing  SimulationType = "device_spoofing"
)

// Amount is the raw transaction amount as sent by the caller. Clients send it
// either as a JSON string ("1000") or a number (1000); both are kept verbatim
// and only interpreted by Float.
type Amount string

// NewAmount builds an Amount from a float
func NewAmount(f float64) Amount {
	return Amount(decimal.NewFromFloat(f).String())
}

// UnmarshalJSON accepts strings, numbers and null
func (a *Amount) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*a = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	*a = Amount(raw)
	return nil
}

// Float parses the amount. Missing, malformed, negative or non-finite
// amounts read as 0.
func (a Amount) Float() float64 {
	s := strings.TrimSpace(string(a))
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return 0
	}
	f, _ := d.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// DeviceInfo describes the device a payment was initiated from
type DeviceInfo struct {
	DeviceChanged bool   `json:"device_changed"`
	DeviceID      string `json:"device_id,omitempty"`
	Platform      string `json:"platform,omitempty"`
}

// Location describes where a payment was initiated
type Location struct {
	Changed bool   `json:"changed"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

// TransactionMetadata carries behavioral signals collected by the client app
type TransactionMetadata struct {
	HighVelocity     bool   `json:"high_velocity"`
	NewBeneficiary   bool   `json:"new_beneficiary"`
	LoginAttempts24h int    `json:"login_attempts_24h"`
	LinkSource       string `json:"link_source,omitempty"` // direct, whatsapp, email, ad
	QRManipulated    bool   `json:"qr_manipulated"`
}

// TransactionInput is a payment event submitted for scoring.
// It is treated as read-only for the duration of a scoring call.
type TransactionInput struct {
	TransactionID string `json:"transaction_id,omitempty"`
	Amount        Amount `json:"amount"`

	// Parties
	SenderID   string `json:"sender_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	ReceiverID string `json:"receiver_id,omitempty"`

	// Content
	QRPayload  string `json:"qr_payload,omitempty"`
	PaymentURL string `json:"payment_url,omitempty"`

	// Behavior
	DeviceInfo *DeviceInfo          `json:"device_info,omitempty"`
	Location   *Location            `json:"location,omitempty"`
	Metadata   *TransactionMetadata `json:"transaction_metadata,omitempty"`

	// Demo scenarios
	IsSimulated    bool           `json:"is_simulated,omitempty"`
	SimulationType SimulationType `json:"simulation_type,omitempty"`
}

// ResolveUserID returns the id whose behavior baseline applies.
// The sender takes precedence over the generic user field.
func (t *TransactionInput) ResolveUserID() string {
	if t.SenderID != "" {
		return t.SenderID
	}
	return t.UserID
}

// DeviceChanged reports whether the device flag is set
func (t *TransactionInput) DeviceChanged() bool {
	return t.DeviceInfo != nil && t.DeviceInfo.DeviceChanged
}

// LocationChanged reports whether the location flag is set
func (t *TransactionInput) LocationChanged() bool {
	return t.Location != nil && t.Location.Changed
}

// ScoreRequest is a transaction plus the externally computed sub-scores.
// A nil ContentAnalysisScore asks the service to run its own content analyzer.
type ScoreRequest struct {
	TransactionInput
	GraphTemporalScore   *float64 `json:"graph_temporal_score,omitempty"`
	ContentAnalysisScore *float64 `json:"content_analysis_score,omitempty"`
}
