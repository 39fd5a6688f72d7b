package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banking/upi-risk-service/internal/config"
	"github.com/banking/upi-risk-service/internal/domain"
	"github.com/banking/upi-risk-service/internal/pkg/logger"
)

func newTestAnalyzer() *Analyzer {
	return NewAnalyzer(config.ContentConfig{
		SimilarityThreshold: 0.85,
		LegitimateDomains:   []string{"paytm.com", "paypal.com", "www.phonepe.com"},
		FlaggedPayees:       []string{"FakeHacker@Fraud"},
	}, logger.NewNop())
}

func TestAnalyzeURL_LegitimateDomain(t *testing.T) {
	a := newTestAnalyzer()

	f := a.analyzeURL("https://paytm.com/pay")
	assert.Equal(t, 0.0, f.Score)
	assert.True(t, f.HTTPS)
	assert.Empty(t, f.SimilarTo)

	f = a.analyzeURL("https://www.phonepe.com/")
	assert.Equal(t, 0.0, f.Score)
	assert.Equal(t, "phonepe.com", f.Host)
}

func TestAnalyzeURL_Lookalike(t *testing.T) {
	a := newTestAnalyzer()

	f := a.analyzeURL("https://paytrn.com/checkout")

	assert.Equal(t, "paytm.com", f.SimilarTo)
	assert.InDelta(t, 0.4, f.Score, 1e-9)
}

func TestAnalyzeURL_PhishingSignals(t *testing.T) {
	a := newTestAnalyzer()

	f := a.analyzeURL("http://secure-login-verify.xyz/upi")

	assert.False(t, f.HTTPS)
	assert.True(t, f.SuspiciousTLD)
	assert.True(t, f.SuspiciousPattern)
	assert.True(t, f.SuspiciousKeyword)
	assert.GreaterOrEqual(t, f.Score, 0.9)
	assert.LessOrEqual(t, f.Score, 1.0)
}

func TestAnalyzeURL_DeepSubdomains(t *testing.T) {
	a := newTestAnalyzer()

	f := a.analyzeURL("https://q.w.e.r.zzzz.org/")

	assert.InDelta(t, 0.3, f.Score, 1e-9)
}

func TestAnalyzeURL_Unparsable(t *testing.T) {
	a := newTestAnalyzer()

	assert.Equal(t, 0.5, a.analyzeURL("%zz").Score)
	assert.Equal(t, 0.5, a.analyzeURL("just some words").Score)
}

func TestAnalyzeQR(t *testing.T) {
	a := newTestAnalyzer()

	tests := []struct {
		name    string
		payload string
		tx      domain.TransactionInput
		want    float64
	}{
		{"clean", "upi://pay?pa=shop@okbank&pn=Shop&am=1000", domain.TransactionInput{Amount: "1000"}, 0},
		{"flagged payee", "upi://pay?pa=fakehacker@fraud&pn=X&am=1000", domain.TransactionInput{Amount: "1000"}, 0.9},
		{"amount mismatch", "upi://pay?pa=shop@okbank&am=1500", domain.TransactionInput{Amount: "1000"}, 0.6},
		{"amount within tolerance", "upi://pay?pa=shop@okbank&am=1000.005", domain.TransactionInput{Amount: "1000"}, 0},
		{"receiver mismatch", "upi://pay?pa=other@okbank", domain.TransactionInput{ReceiverID: "shop@okbank"}, 0.9},
		{"non-vpa receiver ignored", "upi://pay?pa=other@okbank", domain.TransactionInput{ReceiverID: "merchant42"}, 0},
		{"other scheme", "https://example.org/qr", domain.TransactionInput{}, 0.3},
		{"missing payee", "upi://pay?pn=Shop", domain.TransactionInput{}, 0.5},
		{"bad amount", "upi://pay?pa=shop@okbank&am=ten", domain.TransactionInput{Amount: "10"}, 0.5},
		{"unparsable", "%zz", domain.TransactionInput{}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := a.analyzeQR(tt.payload, &tt.tx)
			assert.Equal(t, tt.want, f.Score)
		})
	}
}

func TestAnalyze_TakesMaximum(t *testing.T) {
	a := newTestAnalyzer()

	res := a.Analyze(&domain.TransactionInput{
		Amount:     "1000",
		PaymentURL: "https://paytrn.com/checkout",
		QRPayload:  "upi://pay?pa=fakehacker@fraud&am=1000",
	})

	require.NotNil(t, res.URL)
	require.NotNil(t, res.QR)
	assert.Equal(t, 0.9, res.Score)
}

func TestAnalyze_NoContent(t *testing.T) {
	a := newTestAnalyzer()

	res := a.Analyze(&domain.TransactionInput{Amount: "1000"})

	assert.Equal(t, 0.0, res.Score)
	assert.Nil(t, res.URL)
	assert.Nil(t, res.QR)
	assert.Equal(t, 0.0, a.Analyze(nil).Score)
}

func TestLoadFlaggedPayees_Swaps(t *testing.T) {
	a := newTestAnalyzer()
	tx := &domain.TransactionInput{QRPayload: "upi://pay?pa=newscam@upi"}

	assert.Equal(t, 0.0, a.Score(tx))

	a.LoadFlaggedPayees([]string{"newscam@upi"})

	assert.Equal(t, 0.9, a.Score(tx))
}

func TestJaroWinkler(t *testing.T) {
	assert.Equal(t, 1.0, jaroWinkler("paytm.com", "paytm.com"))
	assert.Equal(t, 0.0, jaroWinkler("", "paytm.com"))
	assert.Greater(t, jaroWinkler("paytrn.com", "paytm.com"), 0.9)
	assert.Less(t, jaroWinkler("zzzz.org", "paypal.com"), 0.6)
}
