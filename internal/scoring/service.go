package scoring

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/banking/upi-risk-service/internal/domain"
	"github.com/banking/upi-risk-service/internal/metrics"
	"github.com/banking/upi-risk-service/internal/pkg/logger"
	"github.com/banking/upi-risk-service/internal/pkg/telemetry"
)

// ErrEmptyBatch is returned for a batch with no requests
var ErrEmptyBatch = errors.New("empty scoring batch")

// ProfileStore resolves behavior baselines from remote storage
type ProfileStore interface {
	GetStats(ctx context.Context, userID string) (domain.UserBehaviorStats, error)
}

// ContentScorer produces a content analysis score for a transaction's URL and QR payload
type ContentScorer interface {
	Score(tx *domain.TransactionInput) float64
}

// ServiceConfig tunes the scoring service
type ServiceConfig struct {
	MaxScoringLatency time.Duration
	Parallelism       int
}

// Service is the context-aware entry point used by the HTTP and Kafka
// adapters. It resolves stats and content scores in parallel, then
// evaluates through the engine.
type Service struct {
	engine   *Engine
	profiles ProfileStore
	content  ContentScorer
	cfg      ServiceConfig
	log      *logger.Logger
}

// NewService creates a scoring service. profiles and content may be nil.
func NewService(engine *Engine, profiles ProfileStore, content ContentScorer, cfg ServiceConfig, log *logger.Logger) *Service {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		engine:   engine,
		profiles: profiles,
		content:  content,
		cfg:      cfg,
		log:      log.Named("scoring_service"),
	}
}

// Engine returns the underlying engine
func (s *Service) Engine() *Engine {
	return s.engine
}

// Score assesses one request. The only errors returned are for a nil request
// or a context that is already done; scoring failures yield the fallback.
func (s *Service) Score(ctx context.Context, req *domain.ScoreRequest) (*domain.RiskAssessment, error) {
	if req == nil {
		return nil, errNilTransaction
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	startTime := time.Now()
	tx := &req.TransactionInput
	userID := tx.ResolveUserID()

	ctx, span := telemetry.StartSpan(ctx, "risk.score",
		telemetry.TransactionID(tx.TransactionID),
		telemetry.UserID(userID),
	)
	defer span.End()

	s.log.ScoringStarted(tx.TransactionID, userID)

	var (
		stats        domain.UserBehaviorStats
		contentScore float64
	)
	if req.ContentAnalysisScore != nil {
		contentScore = *req.ContentAnalysisScore
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stats = s.resolveStats(gctx, userID)
		return nil
	})

	if req.ContentAnalysisScore == nil && s.content != nil {
		g.Go(func() error {
			contentScore = s.content.Score(tx)
			return nil
		})
	}

	_ = g.Wait()

	graphTemporal := 0.0
	if req.GraphTemporalScore != nil {
		graphTemporal = *req.GraphTemporalScore
	}

	result := s.engine.Evaluate(tx, stats, graphTemporal, contentScore)

	duration := time.Since(startTime)
	durationMs := duration.Milliseconds()

	if budget := s.cfg.MaxScoringLatency; budget > 0 && duration > budget {
		s.log.LatencyWarning("risk_scoring", durationMs, budget.Milliseconds())
	}

	metrics.ObserveAssessment(string(result.Decision), result.FinalScore, result.IsFallback(), duration)

	span.SetAttributes(telemetry.Decision(string(result.Decision)), telemetry.Score(result.FinalScore))
	if result.IsFallback() {
		span.SetStatus(codes.Error, result.Error)
	}

	s.log.ScoringCompleted(tx.TransactionID, string(result.Decision), result.FinalScore, durationMs)

	return result, nil
}

// ScoreBatch assesses requests concurrently. Results keep the input order.
func (s *Service) ScoreBatch(ctx context.Context, reqs []*domain.ScoreRequest) ([]*domain.RiskAssessment, error) {
	if len(reqs) == 0 {
		return nil, ErrEmptyBatch
	}

	ctx, span := telemetry.StartSpan(ctx, "risk.score_batch", telemetry.BatchSize(len(reqs)))
	defer span.End()

	results := make([]*domain.RiskAssessment, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			if req == nil {
				results[i] = s.engine.fallback("", "", errNilTransaction)
				return nil
			}
			a, err := s.Score(gctx, req)
			if err != nil {
				return err
			}
			results[i] = a
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return results, nil
}

// resolveStats asks the profile store first and falls back to the engine's
// provider. A missing or broken baseline never fails the assessment here.
func (s *Service) resolveStats(ctx context.Context, userID string) domain.UserBehaviorStats {
	if s.profiles != nil && userID != "" {
		stats, err := s.profiles.GetStats(ctx, userID)
		switch {
		case err == nil:
			verr := stats.Validate()
			if verr == nil {
				return stats
			}
			s.log.ProfileLookupFailed(userID, "store", verr)
		case errors.Is(err, domain.ErrStatsNotFound):
			s.log.Debug("no stored baseline, using fixture", logger.StringField("user_id", userID))
		default:
			s.log.ProfileLookupFailed(userID, "store", err)
		}
	}

	stats, err := s.engine.Stats(userID)
	if err != nil {
		s.log.ProfileLookupFailed(userID, "fixture", err)
		return domain.DefaultUserStats()
	}
	return stats
}
