// Package session tracks one chat controller per visitor tab.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/portfolio-chat/internal/chat"
)

// Factory builds a controller for a new tab session. The registry starts it.
type Factory func(visitorID, tabID string) *chat.Controller

// Key joins a visitor and tab into the session key used in logs and channels.
func Key(visitorID, tabID string) string {
	return visitorID + ":" + tabID
}

type entry struct {
	ctrl       *chat.Controller
	lastActive time.Time
}

// Registry manages live chat controllers, grouped by visitor.
type Registry struct {
	baseCtx context.Context
	factory Factory
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.RWMutex
	active map[string]map[string]*entry
	closed bool
}

// NewRegistry creates a registry. Controllers poll health until ctx ends or
// their session is closed.
func NewRegistry(ctx context.Context, factory Factory, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		baseCtx: ctx,
		factory: factory,
		logger:  logger,
		now:     time.Now,
		active:  make(map[string]map[string]*entry),
	}
}

// GetOrCreate returns the tab's controller, creating and starting one if
// needed. It returns nil after CloseAll.
func (r *Registry) GetOrCreate(visitorID, tabID string) *chat.Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}

	if tabs, ok := r.active[visitorID]; ok {
		if e, ok := tabs[tabID]; ok {
			e.lastActive = r.now()
			return e.ctrl
		}
	} else {
		r.active[visitorID] = make(map[string]*entry)
	}

	ctrl := r.factory(visitorID, tabID)
	ctrl.Start(r.baseCtx)
	r.active[visitorID][tabID] = &entry{ctrl: ctrl, lastActive: r.now()}
	r.logger.Info("Chat session registered", "visitor_id", visitorID, "session_id", tabID)
	return ctrl
}

// Get returns the tab's controller if one is live.
func (r *Registry) Get(visitorID, tabID string) (*chat.Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if tabs, ok := r.active[visitorID]; ok {
		if e, ok := tabs[tabID]; ok {
			return e.ctrl, true
		}
	}
	return nil, false
}

// Touch records activity on a tab session.
func (r *Registry) Touch(visitorID, tabID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tabs, ok := r.active[visitorID]; ok {
		if e, ok := tabs[tabID]; ok {
			e.lastActive = r.now()
		}
	}
}

// Len returns the number of live tab sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, tabs := range r.active {
		n += len(tabs)
	}
	return n
}

// CloseVisitor closes every tab session of a visitor.
func (r *Registry) CloseVisitor(visitorID string) {
	r.mu.Lock()
	tabs := r.active[visitorID]
	delete(r.active, visitorID)
	r.mu.Unlock()

	for tabID, e := range tabs {
		e.ctrl.Close()
		r.logger.Info("Chat session closed", "visitor_id", visitorID, "session_id", tabID)
	}
}

// Sweep closes sessions idle for longer than ttl and returns how many it closed.
// A session with an exchange in flight is never idle.
func (r *Registry) Sweep(ttl time.Duration) int {
	cutoff := r.now().Add(-ttl)
	var expired []*chat.Controller

	r.mu.Lock()
	for visitorID, tabs := range r.active {
		for tabID, e := range tabs {
			if e.lastActive.After(cutoff) || e.ctrl.State() == chat.StateAwaitingResponse {
				continue
			}
			expired = append(expired, e.ctrl)
			delete(tabs, tabID)
			r.logger.Info("Chat session expired", "visitor_id", visitorID, "session_id", tabID)
		}
		if len(tabs) == 0 {
			delete(r.active, visitorID)
		}
	}
	r.mu.Unlock()

	// Close waits on the controller's own lock; keep it outside ours.
	for _, ctrl := range expired {
		ctrl.Close()
	}
	return len(expired)
}

// StartSweeper runs Sweep every interval until ctx ends.
func (r *Registry) StartSweeper(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		r.logger.Info("Session sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				if n := r.Sweep(ttl); n > 0 {
					r.logger.Info("Session sweeper cleanup completed", "cleaned", n)
				}
			case <-ctx.Done():
				r.logger.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// CloseAll closes every session. Later GetOrCreate calls return nil.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	r.closed = true
	all := r.active
	r.active = make(map[string]map[string]*entry)
	r.mu.Unlock()

	n := 0
	for _, tabs := range all {
		for _, e := range tabs {
			e.ctrl.Close()
			n++
		}
	}
	r.logger.Info("All chat sessions closed", "count", n)
}
