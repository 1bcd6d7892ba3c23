package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/portfolio-chat/internal/chat"
	"github.com/ashureev/portfolio-chat/internal/domain"
	"github.com/ashureev/portfolio-chat/internal/identity"
	"github.com/ashureev/portfolio-chat/internal/session"
)

// maxRequestBodySize caps a submit body.
const maxRequestBodySize = 64 << 10

// SubmitRequest is the body of POST /api/chat/messages.
type SubmitRequest struct {
	Message string `json:"message"`
}

// SubmitResponse carries the resolved assistant entry.
type SubmitResponse struct {
	Entry  domain.MessageEntry `json:"entry"`
	Health domain.HealthStatus `json:"health"`
}

// ChatHandler serves the per-tab chat session over plain HTTP.
type ChatHandler struct {
	sessions *session.Registry
	counter  MessageCounter
	limit    func(http.Handler) http.Handler
}

// NewChatHandler creates a chat handler. counter and limit may be nil.
func NewChatHandler(sessions *session.Registry, counter MessageCounter, limit func(http.Handler) http.Handler) *ChatHandler {
	return &ChatHandler{sessions: sessions, counter: counter, limit: limit}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Get("/state", h.State)
		r.Get("/suggestions", h.Suggestions)
		r.Group(func(r chi.Router) {
			if h.limit != nil {
				r.Use(h.limit)
			}
			r.Post("/messages", h.Submit)
		})
	})
}

func (h *ChatHandler) controller(w http.ResponseWriter, r *http.Request) (*chat.Controller, string, bool) {
	visitorID := identity.VisitorIDFromContext(r.Context())
	if visitorID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, "", false
	}
	sessionID := identity.SessionIDFromContext(r.Context())
	ctrl := h.sessions.GetOrCreate(visitorID, sessionID)
	if ctrl == nil {
		Error(w, http.StatusServiceUnavailable, "server is shutting down")
		return nil, "", false
	}
	return ctrl, visitorID, true
}

// State returns the render-ready snapshot for the caller's tab.
func (h *ChatHandler) State(w http.ResponseWriter, r *http.Request) {
	ctrl, _, ok := h.controller(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, ctrl.Snapshot())
}

// Suggestions returns the predefined questions.
func (h *ChatHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string][]string{"suggestions": chat.Suggestions()})
}

// Submit sends one message and blocks until the assistant entry resolves.
func (h *ChatHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctrl, visitorID, ok := h.controller(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req SubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := identity.SessionIDFromContext(r.Context())
	h.sessions.Touch(visitorID, sessionID)

	reply, err := ctrl.Submit(r.Context(), req.Message)
	if err != nil {
		status, msg := submitErrorStatus(err)
		slog.Debug("Chat submit rejected",
			"visitor_id", visitorID,
			"session_id", sessionID,
			"request_id", chiMiddleware.GetReqID(r.Context()),
			"reason", err)
		Error(w, status, msg)
		return
	}

	if h.counter != nil {
		if err := h.counter.IncrementMessages(r.Context(), visitorID); err != nil {
			slog.Warn("Failed to count message", "visitor_id", visitorID, "error", err)
		}
	}

	JSON(w, http.StatusAccepted, SubmitResponse{Entry: reply, Health: ctrl.Health()})
}

// submitErrorStatus maps a guard rejection to an HTTP status.
func submitErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, chat.ErrBlankMessage):
		return http.StatusBadRequest, "message is required"
	case errors.Is(err, chat.ErrBusy):
		return http.StatusConflict, "a message is already awaiting a response"
	case errors.Is(err, chat.ErrOffline):
		return http.StatusServiceUnavailable, chat.OfflineNotice
	case errors.Is(err, chat.ErrClosed):
		return http.StatusGone, "chat session closed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
