package content

import (
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/banking/upi-risk-service/internal/domain"
)

const (
	qrFlaggedPayee     = 0.9
	qrReceiverMismatch = 0.9
	qrAmountMismatch   = 0.6
	qrNonUPIScheme     = 0.3
	qrUnparsable       = 0.5
)

// amountTolerance is the largest QR vs transaction amount gap treated as equal
var amountTolerance = decimal.RequireFromString("0.01")

// analyzeQR parses a upi://pay?pa=..&pn=..&am=.. payload and compares it
// with the transaction it was scanned for
func (a *Analyzer) analyzeQR(raw string, tx *domain.TransactionInput) *QRFinding {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return &QRFinding{Score: qrUnparsable, Error: err.Error()}
	}
	if !strings.EqualFold(u.Scheme, "upi") {
		return &QRFinding{Score: qrNonUPIScheme, NonUPIScheme: true}
	}

	q := u.Query()
	f := &QRFinding{Payee: q.Get("pa")}
	if f.Payee == "" {
		f.Score = qrUnparsable
		f.Error = "missing payee address"
		return f
	}

	if a.isFlagged(f.Payee) {
		f.PayeeFlagged = true
		f.Score = max(f.Score, qrFlaggedPayee)
	}

	// receivers that are VPAs must match the payee encoded in the code
	if strings.Contains(tx.ReceiverID, "@") && normalizeVPA(tx.ReceiverID) != normalizeVPA(f.Payee) {
		f.ReceiverMismatch = true
		f.Score = max(f.Score, qrReceiverMismatch)
	}

	if am := q.Get("am"); am != "" {
		qrAmount, err := decimal.NewFromString(am)
		if err != nil {
			f.Error = "invalid amount: " + am
			f.Score = max(f.Score, qrUnparsable)
			return f
		}
		txAmount := decimal.NewFromFloat(tx.Amount.Float())
		if txAmount.IsPositive() && qrAmount.Sub(txAmount).Abs().GreaterThan(amountTolerance) {
			f.AmountMismatch = true
			f.Score = max(f.Score, qrAmountMismatch)
		}
	}

	return f
}
