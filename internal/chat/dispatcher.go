package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/portfolio-chat/internal/backend"
	"github.com/ashureev/portfolio-chat/internal/domain"
)

// DefaultAskTimeout bounds one ask exchange.
const DefaultAskTimeout = 20 * time.Second

// Notifier receives user-visible notices.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n domain.Notice)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n domain.Notice) {
	f(ctx, n)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, domain.Notice) {}

// Dispatcher performs exactly one ask exchange per call and folds every outcome
// into an Assistant entry.
type Dispatcher struct {
	asker    backend.Asker
	notifier Notifier
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewDispatcher creates a dispatcher. A nil notifier discards notices.
func NewDispatcher(asker backend.Asker, notifier Notifier, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if timeout <= 0 {
		timeout = DefaultAskTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		asker:    asker,
		notifier: notifier,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Send asks the service and never fails: remote-reported failures resolve to the
// service's fallback text, transport failures to Apology. Both raise a notice.
func (d *Dispatcher) Send(ctx context.Context, text string) domain.MessageEntry {
	askCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := d.now()
	result, err := d.asker.Ask(askCtx, text)
	if err != nil {
		d.logger.Error("Ask exchange failed", "error", err, "duration", time.Since(start))
		d.notify(ctx, domain.NoticeTransportFailure, TransportFailureNotice)
		return domain.NewEntry(domain.AuthorAssistant, Apology, d.now())
	}

	if !result.Success {
		d.logger.Warn("Answering service reported failure", "error", result.Error, "duration", time.Since(start))
		d.notify(ctx, domain.NoticeRemoteFailure, RemoteFailureNotice)
		fallback := result.Response
		if strings.TrimSpace(fallback) == "" {
			fallback = Apology
		}
		return domain.NewEntry(domain.AuthorAssistant, fallback, d.now())
	}

	d.logger.Debug("Ask exchange completed", "response_length", len(result.Response), "duration", time.Since(start))
	return domain.NewEntry(domain.AuthorAssistant, result.Response, d.now())
}

func (d *Dispatcher) notify(ctx context.Context, kind domain.NoticeKind, msg string) {
	d.notifier.Notify(ctx, domain.Notice{
		Kind:    kind,
		Message: msg,
		At:      d.now(),
	})
}
