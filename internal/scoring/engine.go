package scoring

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/banking/upi-risk-service/internal/domain"
	"github.com/banking/upi-risk-service/internal/pkg/logger"
)

var (
	errNilTransaction = errors.New("transaction is nil")
	errNonFinite      = errors.New("external score is not a finite number")
)

// StatsProvider resolves a user's behavior baseline synchronously
type StatsProvider interface {
	Stats(userID string) (domain.UserBehaviorStats, error)
}

// StatsProviderFunc adapts a function to StatsProvider
type StatsProviderFunc func(userID string) (domain.UserBehaviorStats, error)

// Stats implements StatsProvider
func (f StatsProviderFunc) Stats(userID string) (domain.UserBehaviorStats, error) {
	return f(userID)
}

// Engine scores transactions against the active policy. It is safe for
// concurrent use; Reload swaps the policy without blocking scorers.
type Engine struct {
	calc  atomic.Pointer[calculator]
	stats StatsProvider
	log   *logger.Logger
}

// NewEngine creates a scoring engine. A nil stats provider scores every user
// against the default baseline.
func NewEngine(policy Policy, stats StatsProvider, log *logger.Logger) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if stats == nil {
		stats = StatsProviderFunc(func(string) (domain.UserBehaviorStats, error) {
			return domain.DefaultUserStats(), nil
		})
	}
	if log == nil {
		log = logger.NewNop()
	}

	e := &Engine{
		stats: stats,
		log:   log.Named("scoring_engine"),
	}
	e.calc.Store(newCalculator(policy.Clone()))
	return e, nil
}

// Policy returns a copy of the active policy
func (e *Engine) Policy() Policy {
	return e.calc.Load().policy.Clone()
}

// Reload validates and atomically installs a new policy. On error the
// previous policy stays active.
func (e *Engine) Reload(policy Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	e.calc.Store(newCalculator(policy.Clone()))
	e.log.PolicyReloaded(policy.MediumRiskThreshold, policy.HighRiskThreshold)
	return nil
}

// Stats resolves the behavior baseline for a user through the engine's provider
func (e *Engine) Stats(userID string) (domain.UserBehaviorStats, error) {
	return e.stats.Stats(userID)
}

// Score resolves the user's baseline and evaluates the transaction. It never
// returns an error: any failure yields the review fallback.
func (e *Engine) Score(tx *domain.TransactionInput, graphTemporalScore, contentAnalysisScore float64) (assessment *domain.RiskAssessment) {
	txID, userID := identify(tx)
	defer e.recoverToFallback(txID, userID, &assessment)

	if tx == nil {
		return e.fallback(txID, userID, errNilTransaction)
	}

	stats, err := e.stats.Stats(userID)
	if err != nil {
		return e.fallback(txID, userID, fmt.Errorf("resolve user stats: %w", err))
	}

	return e.Evaluate(tx, stats, graphTemporalScore, contentAnalysisScore)
}

// Evaluate scores a transaction against the given baseline. The result
// depends only on its inputs and the active policy.
func (e *Engine) Evaluate(tx *domain.TransactionInput, stats domain.UserBehaviorStats, graphTemporalScore, contentAnalysisScore float64) (assessment *domain.RiskAssessment) {
	txID, userID := identify(tx)
	defer e.recoverToFallback(txID, userID, &assessment)

	a, err := e.calc.Load().evaluate(tx, stats, graphTemporalScore, contentAnalysisScore)
	if err != nil {
		return e.fallback(txID, userID, err)
	}
	return a
}

func (e *Engine) fallback(txID, userID string, err error) *domain.RiskAssessment {
	e.log.FallbackIssued(userID, err)
	return domain.NewFallbackAssessment(txID, err)
}

func (e *Engine) recoverToFallback(txID, userID string, out **domain.RiskAssessment) {
	if r := recover(); r != nil {
		*out = e.fallback(txID, userID, fmt.Errorf("scoring panic: %v", r))
	}
}

func identify(tx *domain.TransactionInput) (txID, userID string) {
	if tx == nil {
		return "", ""
	}
	return tx.TransactionID, tx.ResolveUserID()
}

// evaluate runs the full factor pipeline for one transaction
func (c *calculator) evaluate(tx *domain.TransactionInput, stats domain.UserBehaviorStats, graphTemporal, contentAnalysis float64) (*domain.RiskAssessment, error) {
	if tx == nil {
		return nil, errNilTransaction
	}
	if err := stats.Validate(); err != nil {
		return nil, err
	}

	gt, err := externalScore("graph_temporal_score", graphTemporal)
	if err != nil {
		return nil, err
	}
	ca, err := externalScore("content_analysis_score", contentAnalysis)
	if err != nil {
		return nil, err
	}

	amount := tx.Amount.Float()

	f := factorScores{
		base:            c.policy.BaseRisk,
		amount:          c.amountRisk(amount, stats),
		fraudPattern:    c.fraudPatternRisk(tx),
		qrCode:          c.qrRisk(tx.QRPayload),
		behavioral:      c.behavioralRisk(tx),
		metadata:        c.metadataRisk(tx.Metadata),
		graphTemporal:   gt,
		contentAnalysis: ca,
	}
	c.applySimulation(&f, tx)
	f.metadata = clamp01(f.metadata)

	final := c.composite(f)
	statsCopy := stats

	return &domain.RiskAssessment{
		TransactionID:    tx.TransactionID,
		FinalScore:       final,
		Decision:         c.decide(final),
		RiskLevel:        c.riskLevel(final),
		RiskBreakdown:    f.breakdown(),
		UserStats:        &statsCopy,
		Amount:           amount,
		QRAnalyzed:       tx.QRPayload != "",
		DeviceAnalyzed:   tx.DeviceInfo != nil,
		LocationAnalyzed: tx.Location != nil,
		MetadataAnalyzed: tx.Metadata != nil,
	}, nil
}

// externalScore clamps a caller-supplied score into [0,1]
func externalScore(name string, v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s", errNonFinite, name)
	}
	return clamp01(v), nil
}
