// Package widget serves the live chat channel used by the browser widget.
package widget

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/portfolio-chat/internal/chat"
	"github.com/ashureev/portfolio-chat/internal/identity"
	"github.com/ashureev/portfolio-chat/internal/session"
)

// MessageCounter records accepted submissions per visitor.
type MessageCounter interface {
	IncrementMessages(ctx context.Context, visitorID string) error
}

// Limiter throttles submissions per visitor.
type Limiter interface {
	Allow(key string) bool
}

// Handler upgrades GET /ws/chat and bridges one tab's controller to the socket.
type Handler struct {
	sessions      *session.Registry
	counter       MessageCounter
	limiter       Limiter
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a widget handler. counter and limiter may be nil.
func NewHandler(sessions *session.Registry, counter MessageCounter, limiter Limiter, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		sessions:      sessions,
		counter:       counter,
		limiter:       limiter,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// inbound is a client message.
type inbound struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// outbound frames other than controller events.
type snapshotFrame struct {
	Type     string        `json:"type"`
	Snapshot chat.Snapshot `json:"snapshot"`
}

type rejectedFrame struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	visitorID := identity.VisitorIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if visitorID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ctrl := h.sessions.GetOrCreate(visitorID, sessionID)
	if ctrl == nil {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "visitor_id", visitorID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "visitor_id", visitorID)
		}
	}()
	slog.Info("Chat widget connected", "visitor_id", visitorID, "session_id", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Subscribe before the snapshot so no change falls between them.
	events, unsubscribe := ctrl.Subscribe(chat.DefaultSubscriberBuffer)
	defer unsubscribe()

	c := &conn{ws: ws, ctx: ctx}
	if err := c.writeJSON(snapshotFrame{Type: "snapshot", Snapshot: ctrl.Snapshot()}); err != nil {
		slog.Debug("Failed to send snapshot", "error", err)
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer cancel()
		h.inputLoop(ctx, c, ctrl, visitorID, sessionID)
	}()

	go func() {
		defer wg.Done()
		defer cancel()
		outputLoop(ctx, c, events)
	}()

	wg.Wait()
	slog.Info("Chat widget disconnected", "visitor_id", visitorID, "session_id", sessionID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) inputLoop(ctx context.Context, c *conn, ctrl *chat.Controller, visitorID, sessionID string) {
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed by client", "visitor_id", visitorID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "visitor_id", visitorID)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("Ignoring malformed widget message", "visitor_id", visitorID, "error", err)
			continue
		}

		h.sessions.Touch(visitorID, sessionID)

		switch msg.Type {
		case "submit":
			if h.limiter != nil && !h.limiter.Allow(visitorID) {
				_ = c.writeJSON(rejectedFrame{Type: "rejected", Reason: "rate_limited", Error: "too many messages, slow down"})
				continue
			}
			// Submit blocks until resolved; the result reaches the socket as events.
			go h.submit(c, ctrl, visitorID, msg.Content)
		case "input":
			ctrl.SetInput(msg.Content)
		case "ping":
			if err := c.writeJSON(map[string]string{"type": "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
			}
		}
	}
}

func (h *Handler) submit(c *conn, ctrl *chat.Controller, visitorID, text string) {
	if _, err := ctrl.Submit(c.ctx, text); err != nil {
		if writeErr := c.writeJSON(rejectedFrame{Type: "rejected", Reason: rejectReason(err), Error: err.Error()}); writeErr != nil {
			slog.Debug("Failed to send rejection", "error", writeErr)
		}
		return
	}
	if h.counter == nil {
		return
	}
	countCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.counter.IncrementMessages(countCtx, visitorID); err != nil {
		slog.Warn("Failed to count message", "visitor_id", visitorID, "error", err)
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, chat.ErrBlankMessage):
		return "blank"
	case errors.Is(err, chat.ErrBusy):
		return "busy"
	case errors.Is(err, chat.ErrOffline):
		return "offline"
	case errors.Is(err, chat.ErrClosed):
		return "closed"
	default:
		return "error"
	}
}

func outputLoop(ctx context.Context, c *conn, events <-chan chat.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := c.writeJSON(ev); err != nil {
				slog.Debug("WebSocket write error", "error", err)
				return
			}
		}
	}
}

// conn serializes writes from the input and output loops.
type conn struct {
	ws  *websocket.Conn
	ctx context.Context
	mu  sync.Mutex
}

func (c *conn) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.Err() != nil {
		return c.ctx.Err()
	}
	writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.ws.Write(writeCtx, websocket.MessageText, data)
}
