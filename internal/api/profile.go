package api

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/portfolio-chat/internal/chat"
	"github.com/ashureev/portfolio-chat/internal/profile"
)

// ProfileHandler serves the portfolio data and page.
type ProfileHandler struct {
	profile  *profile.Profile
	renderer *profile.Renderer
}

// NewProfileHandler creates a profile handler. renderer may be nil, in which
// case only the JSON route is registered.
func NewProfileHandler(p *profile.Profile, renderer *profile.Renderer) *ProfileHandler {
	return &ProfileHandler{profile: p, renderer: renderer}
}

// RegisterRoutes registers profile routes.
func (h *ProfileHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/profile", h.Profile)
	if h.renderer != nil {
		r.Get("/", h.Page)
	}
}

// Profile returns the profile as JSON.
func (h *ProfileHandler) Profile(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.profile)
}

// Page renders the portfolio page with the chat widget.
func (h *ProfileHandler) Page(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, h.profile, chat.Suggestions()); err != nil {
		slog.Error("Failed to render page", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
