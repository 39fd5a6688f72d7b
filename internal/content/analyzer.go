// Package content scores payment URLs and UPI QR payloads for phishing and
// tampering signals.
package content

import (
	"regexp"
	"strings"
	"sync"

	"github.com/banking/upi-risk-service/internal/config"
	"github.com/banking/upi-risk-service/internal/domain"
	"github.com/banking/upi-risk-service/internal/pkg/logger"
)

// Result is the combined content analysis of one transaction
type Result struct {
	Score float64     `json:"score"`
	URL   *URLFinding `json:"url,omitempty"`
	QR    *QRFinding  `json:"qr,omitempty"`
}

// URLFinding describes the signals found in a payment URL
type URLFinding struct {
	Score             float64 `json:"score"`
	Host              string  `json:"host,omitempty"`
	HTTPS             bool    `json:"https"`
	SuspiciousTLD     bool    `json:"suspicious_tld"`
	SuspiciousPattern bool    `json:"suspicious_pattern"`
	SuspiciousKeyword bool    `json:"suspicious_keyword"`
	SimilarTo         string  `json:"similar_to,omitempty"`
	Error             string  `json:"error,omitempty"`
}

// QRFinding describes the signals found in a QR payload
type QRFinding struct {
	Score            float64 `json:"score"`
	Payee            string  `json:"payee,omitempty"`
	PayeeFlagged     bool    `json:"payee_flagged"`
	ReceiverMismatch bool    `json:"receiver_mismatch"`
	AmountMismatch   bool    `json:"amount_mismatch"`
	NonUPIScheme     bool    `json:"non_upi_scheme"`
	Error            string  `json:"error,omitempty"`
}

var (
	suspiciousTLDs = []string{".xyz", ".tk", ".ml", ".ga", ".cf", ".gq"}

	suspiciousKeywords = []string{
		"secure", "verify", "account", "login", "confirm", "update", "bank",
		"payment", "wallet", "authenticate", "validate",
	}

	suspiciousHostPattern = regexp.MustCompile(`secure|verify|authenticate|[0-9]{5,}|[a-zA-Z0-9]{25,}`)
)

// Analyzer scores transaction content. The flagged payee index can be
// swapped at runtime; everything else is fixed at construction.
type Analyzer struct {
	legitimate []string
	threshold  float64
	log        *logger.Logger

	flagged   map[string]bool
	flaggedMu sync.RWMutex
}

// NewAnalyzer creates a content analyzer
func NewAnalyzer(cfg config.ContentConfig, log *logger.Logger) *Analyzer {
	legit := make([]string, 0, len(cfg.LegitimateDomains))
	for _, d := range cfg.LegitimateDomains {
		if d = normalizeHost(d); d != "" {
			legit = append(legit, d)
		}
	}

	a := &Analyzer{
		legitimate: legit,
		threshold:  cfg.SimilarityThreshold,
		log:        log.Named("content_analyzer"),
	}
	a.LoadFlaggedPayees(cfg.FlaggedPayees)
	return a
}

// LoadFlaggedPayees replaces the flagged payee index
func (a *Analyzer) LoadFlaggedPayees(payees []string) {
	index := make(map[string]bool, len(payees))
	for _, p := range payees {
		if p = normalizeVPA(p); p != "" {
			index[p] = true
		}
	}

	a.flaggedMu.Lock()
	a.flagged = index
	a.flaggedMu.Unlock()

	a.log.Info("flagged payee index loaded", logger.IntField("entries", len(index)))
}

func (a *Analyzer) isFlagged(vpa string) bool {
	a.flaggedMu.RLock()
	defer a.flaggedMu.RUnlock()
	return a.flagged[normalizeVPA(vpa)]
}

// Analyze inspects the payment URL and QR payload of a transaction
func (a *Analyzer) Analyze(tx *domain.TransactionInput) Result {
	var res Result
	if tx == nil {
		return res
	}

	if tx.PaymentURL != "" {
		res.URL = a.analyzeURL(tx.PaymentURL)
		res.Score = max(res.Score, res.URL.Score)
	}
	if tx.QRPayload != "" {
		res.QR = a.analyzeQR(tx.QRPayload, tx)
		res.Score = max(res.Score, res.QR.Score)
	}
	return res
}

// Score returns the combined content score
func (a *Analyzer) Score(tx *domain.TransactionInput) float64 {
	res := a.Analyze(tx)
	if res.Score > 0 {
		a.log.Debug("content risk detected",
			logger.StringField("transaction_id", tx.TransactionID),
			logger.Float64Field("score", res.Score),
		)
	}
	return res.Score
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimPrefix(host, "www.")
}

func normalizeVPA(vpa string) string {
	return strings.ToLower(strings.TrimSpace(vpa))
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
