package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashureev/portfolio-chat/internal/backend"
	"github.com/ashureev/portfolio-chat/internal/domain"
)

var errFakeTransport = errors.New("connection refused")

type fakeAsker struct {
	calls atomic.Int32
	fn    func(ctx context.Context, message string) (backend.AskResult, error)
}

func (f *fakeAsker) Ask(ctx context.Context, message string) (backend.AskResult, error) {
	f.calls.Add(1)
	return f.fn(ctx, message)
}

func answer(text string) *fakeAsker {
	return &fakeAsker{fn: func(context.Context, string) (backend.AskResult, error) {
		return backend.AskResult{Success: true, Response: text}, nil
	}}
}

// blockingAsker holds every exchange until release is closed.
func blockingAsker(release <-chan struct{}, text string) *fakeAsker {
	return &fakeAsker{fn: func(ctx context.Context, _ string) (backend.AskResult, error) {
		select {
		case <-release:
			return backend.AskResult{Success: true, Response: text}, nil
		case <-ctx.Done():
			return backend.AskResult{}, ctx.Err()
		}
	}}
}

type fakeProber struct {
	mu      sync.Mutex
	results []error
	calls   int
}

// Probe returns scripted results in order, repeating the last one.
func (f *fakeProber) Probe(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.results) == 0 {
		return nil
	}
	err := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return err
}

type recordingSink struct {
	mu      sync.Mutex
	notices []domain.Notice
}

func (r *recordingSink) Notify(_ context.Context, n domain.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingSink) all() []domain.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

func newTestController(t *testing.T, asker backend.Asker, sink *recordingSink) *Controller {
	t.Helper()
	c := NewController(asker, &fakeProber{}, Options{
		SessionKey: "visitor:tab",
		AskTimeout: 2 * time.Second,
		Sink:       sink,
	})
	t.Cleanup(c.Close)
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
