// Package api exposes the risk service over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/banking/upi-risk-service/internal/domain"
	"github.com/banking/upi-risk-service/internal/pkg/logger"
	"github.com/banking/upi-risk-service/internal/scoring"
)

// Scorer assesses transactions
type Scorer interface {
	Score(ctx context.Context, req *domain.ScoreRequest) (*domain.RiskAssessment, error)
	ScoreBatch(ctx context.Context, reqs []*domain.ScoreRequest) ([]*domain.RiskAssessment, error)
}

// PolicySource exposes the active scoring policy
type PolicySource interface {
	Policy() scoring.Policy
}

// BatchRequest is the body of a batch scoring call
type BatchRequest struct {
	Transactions []*domain.ScoreRequest `json:"transactions"`
}

// BatchResponse is the result of a batch scoring call, in request order
type BatchResponse struct {
	Assessments []*domain.RiskAssessment `json:"assessments"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler serves the risk scoring endpoints
type Handler struct {
	scorer       Scorer
	policy       PolicySource
	maxBatchSize int
	log          *logger.Logger
}

// NewHandler creates a handler
func NewHandler(scorer Scorer, policy PolicySource, maxBatchSize int, log *logger.Logger) *Handler {
	return &Handler{
		scorer:       scorer,
		policy:       policy,
		maxBatchSize: maxBatchSize,
		log:          log.Named("api"),
	}
}

// Register mounts the routes. Middleware in auth guards /api/v1 only.
func (h *Handler) Register(e *echo.Echo, auth ...echo.MiddlewareFunc) {
	e.GET("/health", h.Health)

	v1 := e.Group("/api/v1", auth...)
	v1.POST("/risk/score", h.ScoreTransaction)
	v1.POST("/risk/score/batch", h.ScoreBatch)
	v1.GET("/risk/policy", h.GetPolicy)
}

// Health reports liveness
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ScoreTransaction scores a single transaction
func (h *Handler) ScoreTransaction(c echo.Context) error {
	var req domain.ScoreRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	ctx := c.Request().Context()
	assessment, err := h.scorer.Score(ctx, &req)
	if err != nil {
		return h.scoringError(c, err)
	}
	return c.JSON(http.StatusOK, assessment)
}

// ScoreBatch scores up to maxBatchSize transactions
func (h *Handler) ScoreBatch(c echo.Context) error {
	var req BatchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	switch n := len(req.Transactions); {
	case n == 0:
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "transactions must not be empty"})
	case h.maxBatchSize > 0 && n > h.maxBatchSize:
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("batch of %d exceeds the limit of %d", n, h.maxBatchSize),
		})
	}

	assessments, err := h.scorer.ScoreBatch(c.Request().Context(), req.Transactions)
	if err != nil {
		return h.scoringError(c, err)
	}
	return c.JSON(http.StatusOK, BatchResponse{Assessments: assessments})
}

// GetPolicy returns the active policy
func (h *Handler) GetPolicy(c echo.Context) error {
	return c.JSON(http.StatusOK, h.policy.Policy())
}

func (h *Handler) scoringError(c echo.Context, err error) error {
	log := h.log.WithContext(c.Request().Context())
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Warn("scoring aborted", logger.ErrorField(err))
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "request canceled"})
	case errors.Is(err, scoring.ErrEmptyBatch):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		log.Error("scoring failed", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
