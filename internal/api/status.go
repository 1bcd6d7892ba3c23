package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/portfolio-chat/internal/domain"
	"github.com/ashureev/portfolio-chat/internal/store"
)

// HealthSource reports the server-wide view of the answering service.
type HealthSource interface {
	Status() domain.HealthStatus
}

// SessionCounter reports live tab sessions.
type SessionCounter interface {
	Len() int
}

// StatusHandler handles health and status endpoints.
type StatusHandler struct {
	repo     store.Repository
	health   HealthSource
	sessions SessionCounter
	timeout  time.Duration
}

// NewStatusHandler creates a status handler. sessions may be nil.
func NewStatusHandler(repo store.Repository, health HealthSource, sessions SessionCounter) *StatusHandler {
	return &StatusHandler{repo: repo, health: health, sessions: sessions, timeout: 5 * time.Second}
}

// RegisterRoutes registers the health and status routes.
func (h *StatusHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/api/status", h.Status)
}

// Health returns the health status of the API and its dependencies.
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := "healthy"
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}
	checks["answer_service"] = string(h.health.Status())

	JSON(w, statusCode, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Health   domain.HealthStatus  `json:"health"`
	Sessions int                  `json:"sessions"`
	History  []domain.HealthEvent `json:"history"`
}

// Status returns current upstream health and recent transitions.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	history, err := h.repo.RecentHealth(ctx, 20)
	if err != nil {
		slog.Warn("Failed to load health history", "error", err)
	}
	if history == nil {
		history = []domain.HealthEvent{}
	}

	resp := StatusResponse{Health: h.health.Status(), History: history}
	if h.sessions != nil {
		resp.Sessions = h.sessions.Len()
	}
	JSON(w, http.StatusOK, resp)
}
