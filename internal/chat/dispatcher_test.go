package chat

import (
	"context"
	"testing"
	"time"

	"github.com/ashureev/portfolio-chat/internal/backend"
	"github.com/ashureev/portfolio-chat/internal/domain"
)

func TestDispatcherSend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		result     backend.AskResult
		err        error
		wantText   string
		wantNotice domain.NoticeKind
	}{
		{
			name:     "success",
			result:   backend.AskResult{Success: true, Response: "Go and distributed systems."},
			wantText: "Go and distributed systems.",
		},
		{
			name:       "remote failure with fallback",
			result:     backend.AskResult{Success: false, Response: "Model unavailable", Error: "upstream"},
			wantText:   "Model unavailable",
			wantNotice: domain.NoticeRemoteFailure,
		},
		{
			name:       "remote failure without fallback",
			result:     backend.AskResult{Success: false},
			wantText:   Apology,
			wantNotice: domain.NoticeRemoteFailure,
		},
		{
			name:       "transport failure",
			err:        errFakeTransport,
			wantText:   Apology,
			wantNotice: domain.NoticeTransportFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sink := &recordingSink{}
			asker := &fakeAsker{fn: func(context.Context, string) (backend.AskResult, error) {
				return tt.result, tt.err
			}}
			d := NewDispatcher(asker, sink, time.Second, nil)

			entry := d.Send(context.Background(), "question")
			if entry.Author != domain.AuthorAssistant {
				t.Fatalf("expected assistant entry, got %s", entry.Author)
			}
			if entry.Text != tt.wantText {
				t.Fatalf("text = %q, want %q", entry.Text, tt.wantText)
			}
			if entry.ID == "" {
				t.Fatal("entry has no id")
			}

			notices := sink.all()
			if tt.wantNotice == "" {
				if len(notices) != 0 {
					t.Fatalf("expected no notices, got %+v", notices)
				}
				return
			}
			if len(notices) != 1 || notices[0].Kind != tt.wantNotice {
				t.Fatalf("expected one %s notice, got %+v", tt.wantNotice, notices)
			}
		})
	}
}

func TestDispatcherTimeoutBecomesApology(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	asker := &fakeAsker{fn: func(ctx context.Context, _ string) (backend.AskResult, error) {
		<-ctx.Done()
		return backend.AskResult{}, ctx.Err()
	}}
	d := NewDispatcher(asker, sink, 20*time.Millisecond, nil)

	entry := d.Send(context.Background(), "slow question")
	if entry.Text != Apology {
		t.Fatalf("expected apology on timeout, got %q", entry.Text)
	}
	if n := sink.all(); len(n) != 1 || n[0].Kind != domain.NoticeTransportFailure {
		t.Fatalf("expected one transport notice, got %+v", n)
	}
}

func TestDispatcherPassesMessageThrough(t *testing.T) {
	t.Parallel()

	var got string
	asker := &fakeAsker{fn: func(_ context.Context, msg string) (backend.AskResult, error) {
		got = msg
		return backend.AskResult{Success: true, Response: "ok"}, nil
	}}
	d := NewDispatcher(asker, nil, 0, nil)
	d.Send(context.Background(), "  padded question  ")

	if got != "  padded question  " {
		t.Fatalf("message altered: %q", got)
	}
	if asker.calls.Load() != 1 {
		t.Fatalf("expected one call, got %d", asker.calls.Load())
	}
}
