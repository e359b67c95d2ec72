package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vigil/internal/behavior/models"
	"vigil/internal/platform/middleware"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/httputil"
)

//go:generate mockgen -source=handler.go -destination=mocks/engine-mocks.go -package=mocks Service

// Service defines the engine operations the HTTP layer depends on.
type Service interface {
	Admit(ctx context.Context, identity id.Identity, category string, attributes map[string]string) (*models.Decision, error)
	Baseline(ctx context.Context, identity id.Identity) (*models.Baseline, error)
	ResetIdentity(ctx context.Context, identity id.Identity) error
	Snapshot(ctx context.Context) (*models.Stats, error)
}

// Handler handles the behavior engine endpoints.
type Handler struct {
	logger    *slog.Logger
	engine    Service
	validator middleware.TokenValidator
}

// New creates a behavior Handler.
func New(engine Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:    logger,
		engine:    engine,
		validator: validator,
	}
}

// Register registers the behavior routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))

	router.Post("/v1/actions", h.handleAction)
	router.Get("/v1/stats", h.handleStats)

	router.Group(func(admin chi.Router) {
		admin.Use(middleware.RequireAdmin(h.validator, h.logger))
		admin.Get("/v1/identities/{identity}/baseline", h.handleBaseline)
		admin.Post("/v1/identities/{identity}/reset", h.handleReset)
	})

	r.Mount("/", router)
}

// handleAction runs one action through the admission pipeline.
func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req models.RecordActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid action request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	identity, err := id.ParseIdentity(req.Identity)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	decision, err := h.engine.Admit(ctx, identity, req.Category, req.Attributes)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "admission failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "admission failed"))
		return
	}

	if !decision.Allowed {
		httputil.WriteJSON(w, http.StatusTooManyRequests, models.ThrottledResponse{
			Error:      "rate_limit_exceeded",
			Message:    "Action rejected by adaptive rate limiter",
			Quota:      decision.Quota,
			RetryAfter: 60,
			Anomaly:    decision.Anomaly,
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.DecisionResponse{
		Allowed:   decision.Allowed,
		Quota:     decision.Quota,
		Remaining: decision.Remaining,
		Anomaly:   decision.Anomaly,
	})
}

// handleBaseline exports the stored baseline for operational tooling.
func (h *Handler) handleBaseline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, err := id.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	baseline, err := h.engine.Baseline(ctx, identity)
	if err != nil {
		h.logger.ErrorContext(ctx, "baseline lookup failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "baseline lookup failed"))
		return
	}
	if baseline == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no baseline for identity"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, baseline)
}

// handleReset wipes an identity's history, baseline, and cached quotas.
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, err := id.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.engine.ResetIdentity(ctx, identity); err != nil {
		h.logger.ErrorContext(ctx, "identity reset failed",
			"request_id", middleware.GetRequestID(ctx),
			"identity", identity,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "identity reset failed"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleStats returns the observability snapshot for dashboards.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.engine.Snapshot(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "stats snapshot failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "stats snapshot failed"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, stats)
}
