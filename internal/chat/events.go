package chat

import (
	"log/slog"
	"sync"

	"github.com/ashureev/portfolio-chat/internal/domain"
)

// EventType names a controller change.
type EventType string

const (
	EventEntry  EventType = "entry"
	EventHealth EventType = "health"
	EventState  EventType = "state"
	EventInput  EventType = "input"
	EventNotice EventType = "notice"
)

// Event is pushed to subscribers whenever render-relevant state changes.
type Event struct {
	Type   EventType            `json:"type"`
	Entry  *domain.MessageEntry `json:"entry,omitempty"`
	Health domain.HealthStatus  `json:"health,omitempty"`
	State  State                `json:"state"`
	Input  string               `json:"input,omitempty"`
	Notice *domain.Notice       `json:"notice,omitempty"`
}

// DefaultSubscriberBuffer is the channel size handed to subscribers.
const DefaultSubscriberBuffer = 64

// eventHub fans events out to subscribers. A full subscriber channel drops the
// event instead of blocking the publisher.
type eventHub struct {
	mu     sync.Mutex
	subs   map[int64]chan Event
	nextID int64
	closed bool
	logger *slog.Logger
}

func newEventHub(logger *slog.Logger) *eventHub {
	return &eventHub{
		subs:   make(map[int64]chan Event),
		logger: logger,
	}
}

func (h *eventHub) subscribe(buf int) (<-chan Event, func()) {
	if buf <= 0 {
		buf = DefaultSubscriberBuffer
	}
	ch := make(chan Event, buf)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.nextID++
	id := h.nextID
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
		})
	}
}

func (h *eventHub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("Dropping event for slow subscriber", "subscriber_id", id, "type", ev.Type)
		}
	}
}

func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}
