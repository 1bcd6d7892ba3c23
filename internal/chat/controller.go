// Package chat implements the chat session controller behind the portfolio
// widget: conversation log, upstream health polling and the single-message
// request lifecycle.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/portfolio-chat/internal/backend"
	"github.com/ashureev/portfolio-chat/internal/domain"
)

// Guard rejections. None of them change controller state.
var (
	ErrBlankMessage = errors.New("message is blank")
	ErrBusy         = errors.New("a message is already awaiting a response")
	ErrOffline      = errors.New("answering service is offline")
	ErrClosed       = errors.New("chat session is closed")
)

// State is the controller's request lifecycle state.
type State int

const (
	// StateIdle accepts submissions.
	StateIdle State = iota
	// StateAwaitingResponse has one exchange in flight.
	StateAwaitingResponse
)

func (s State) String() string {
	if s == StateAwaitingResponse {
		return "awaiting_response"
	}
	return "idle"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = StateIdle
	case "awaiting_response":
		*s = StateAwaitingResponse
	default:
		return errors.New("unknown chat state: " + string(b))
	}
	return nil
}

// Options configures a Controller. Zero values take defaults.
type Options struct {
	SessionKey     string
	Greeting       string
	HealthInterval time.Duration
	ProbeTimeout   time.Duration
	AskTimeout     time.Duration
	// Sink receives every notice in addition to subscribers.
	Sink   Notifier
	Logger *slog.Logger
}

// Snapshot is the render-ready view of a session.
type Snapshot struct {
	SessionKey string                `json:"session_key,omitempty"`
	Entries    []domain.MessageEntry `json:"entries"`
	Health     domain.HealthStatus   `json:"health"`
	State      State                 `json:"state"`
	Input      string                `json:"input"`
}

// Controller composes the store, health monitor and dispatcher. All methods are
// safe for concurrent use.
type Controller struct {
	opts       Options
	store      *ConversationStore
	monitor    *HealthMonitor
	dispatcher *Dispatcher
	events     *eventHub
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	state   State
	health  domain.HealthStatus
	input   string
	closed  bool
	poll    *PollHandle
	lifeCtx context.Context
	cancel  context.CancelFunc
}

// NewController creates an Idle controller with a seeded conversation and
// optimistic Online health. Call Start to begin health polling.
func NewController(asker backend.Asker, prober backend.Prober, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Greeting == "" {
		opts.Greeting = Greeting
	}
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = DefaultHealthInterval
	}
	if opts.Sink == nil {
		opts.Sink = noopNotifier{}
	}
	logger := opts.Logger
	if opts.SessionKey != "" {
		logger = logger.With("session_key", opts.SessionKey)
	}

	lifeCtx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		opts:    opts,
		monitor: NewHealthMonitor(prober, opts.ProbeTimeout, logger),
		events:  newEventHub(logger),
		logger:  logger,
		now:     time.Now,
		state:   StateIdle,
		health:  domain.HealthOnline,
		lifeCtx: lifeCtx,
		cancel:  cancel,
	}
	c.store = NewConversationStore(domain.NewEntry(domain.AuthorAssistant, opts.Greeting, c.now()))
	c.dispatcher = NewDispatcher(asker, NotifierFunc(c.emitNotice), opts.AskTimeout, logger)
	return c
}

// Start begins health polling. It is a no-op if already started or closed.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.poll != nil {
		return
	}
	c.poll = c.monitor.StartPolling(ctx, c.opts.HealthInterval, c.applyHealth)
}

// Submit sends text as the visitor. It returns the resolved Assistant entry, or
// one of the guard errors without touching any state. The call blocks until the
// exchange resolves; a caller abandoning ctx does not cancel the exchange, only
// Close does.
func (c *Controller) Submit(ctx context.Context, text string) (domain.MessageEntry, error) {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return domain.MessageEntry{}, ErrClosed
	case strings.TrimSpace(text) == "":
		c.mu.Unlock()
		return domain.MessageEntry{}, ErrBlankMessage
	case c.state == StateAwaitingResponse:
		c.mu.Unlock()
		return domain.MessageEntry{}, ErrBusy
	case !c.health.Online():
		c.mu.Unlock()
		return domain.MessageEntry{}, ErrOffline
	}

	c.state = StateAwaitingResponse
	c.input = ""
	userEntry := c.store.Append(domain.NewEntry(domain.AuthorUser, text, c.now()))
	c.events.publish(Event{Type: EventEntry, Entry: &userEntry, State: c.state})
	c.events.publish(Event{Type: EventInput, State: c.state})
	c.events.publish(Event{Type: EventState, State: c.state})
	lifeCtx := c.lifeCtx
	c.mu.Unlock()

	c.logger.Info("Chat message submitted", "message_length", len(text), "seq", userEntry.Seq)

	dispatchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(lifeCtx, cancel)
	reply := c.dispatcher.Send(dispatchCtx, text)
	stop()
	cancel()

	c.mu.Lock()
	reply = c.store.Append(reply)
	c.state = StateIdle
	c.events.publish(Event{Type: EventEntry, Entry: &reply, State: c.state})
	c.events.publish(Event{Type: EventState, State: c.state})
	c.mu.Unlock()

	return reply, nil
}

// SetInput mirrors the presentation layer's input buffer.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.input == text {
		return
	}
	c.input = text
	c.events.publish(Event{Type: EventInput, Input: text, State: c.state})
}

// Snapshot returns the current render-ready view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		SessionKey: c.opts.SessionKey,
		Entries:    c.store.All(),
		Health:     c.health,
		State:      c.state,
		Input:      c.input,
	}
}

// Entries returns the conversation so far.
func (c *Controller) Entries() []domain.MessageEntry {
	return c.store.All()
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Health returns the last known upstream status.
func (c *Controller) Health() domain.HealthStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.health
}

// Subscribe returns a channel of changes and a function that ends the
// subscription. The channel is closed on unsubscribe or Close.
func (c *Controller) Subscribe(buf int) (<-chan Event, func()) {
	return c.events.subscribe(buf)
}

// Close stops polling, cancels any in-flight exchange and ends subscriptions.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	poll := c.poll
	c.mu.Unlock()

	// Stop waits for a running health report, which takes c.mu.
	c.monitor.Stop(poll)
	c.cancel()
	c.events.close()
	c.logger.Debug("Chat session closed")
}

// applyHealth records a probe result. Only an Online to Offline transition
// raises the offline notice; repeated Offline ticks stay quiet.
func (c *Controller) applyHealth(status domain.HealthStatus) {
	c.mu.Lock()
	prev := c.health
	c.health = status
	if prev != status {
		c.events.publish(Event{Type: EventHealth, Health: status, State: c.state})
	}
	wentOffline := prev.Online() && !status.Online()
	c.mu.Unlock()

	if prev != status {
		c.logger.Info("Answering service health changed", "from", prev, "to", status)
	}
	if wentOffline {
		c.emitNotice(c.lifeCtx, domain.Notice{
			Kind:    domain.NoticeOffline,
			Message: OfflineNotice,
			At:      c.now(),
		})
	}
}

func (c *Controller) emitNotice(ctx context.Context, n domain.Notice) {
	n.SessionKey = c.opts.SessionKey
	c.events.publish(Event{Type: EventNotice, Notice: &n, State: c.State()})
	c.opts.Sink.Notify(ctx, n)
}
