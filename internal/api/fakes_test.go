package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/portfolio-chat/internal/backend"
	"github.com/ashureev/portfolio-chat/internal/chat"
	"github.com/ashureev/portfolio-chat/internal/domain"
	"github.com/ashureev/portfolio-chat/internal/identity"
	"github.com/ashureev/portfolio-chat/internal/session"
)

type fakeRepo struct {
	mu       sync.Mutex
	pingErr  error
	history  []domain.HealthEvent
	messages map[string]int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{messages: make(map[string]int)}
}

func (f *fakeRepo) GetVisitor(context.Context, string) (*domain.Visitor, error) { return nil, nil }
func (f *fakeRepo) UpsertVisitor(context.Context, *domain.Visitor) error        { return nil }
func (f *fakeRepo) TouchVisitor(context.Context, string, time.Time) error       { return nil }

func (f *fakeRepo) IncrementMessages(_ context.Context, visitorID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[visitorID]++
	return nil
}

func (f *fakeRepo) RecordHealth(_ context.Context, status domain.HealthStatus, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append([]domain.HealthEvent{{ID: int64(len(f.history) + 1), Status: status, ObservedAt: at}}, f.history...)
	return nil
}

func (f *fakeRepo) RecentHealth(context.Context, int) ([]domain.HealthEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history, nil
}

func (f *fakeRepo) PruneHealth(context.Context, time.Time) (int64, error) { return 0, nil }
func (f *fakeRepo) Ping(context.Context) error                            { return f.pingErr }
func (f *fakeRepo) Close() error                                          { return nil }

func (f *fakeRepo) count(visitorID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[visitorID]
}

type stubAsker struct {
	release <-chan struct{}
	text    string
}

func (s stubAsker) Ask(ctx context.Context, _ string) (backend.AskResult, error) {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return backend.AskResult{}, ctx.Err()
		}
	}
	return backend.AskResult{Success: true, Response: s.text}, nil
}

type stubProber struct{ err error }

func (s stubProber) Probe(context.Context) error { return s.err }

type staticHealth domain.HealthStatus

func (s staticHealth) Status() domain.HealthStatus { return domain.HealthStatus(s) }

const (
	testVisitor = "v_0123456789abcdef0123456789abcdef"
	testTab     = "tab-1"
)

func withTestIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), testVisitor, testTab)))
	})
}

func newChatRouter(t *testing.T, asker backend.Asker, probeErr error, repo *fakeRepo, limit func(http.Handler) http.Handler) (http.Handler, *session.Registry) {
	t.Helper()
	reg := session.NewRegistry(context.Background(), func(visitorID, tabID string) *chat.Controller {
		return chat.NewController(asker, stubProber{err: probeErr}, chat.Options{
			SessionKey:     session.Key(visitorID, tabID),
			HealthInterval: time.Hour,
			AskTimeout:     2 * time.Second,
		})
	}, nil)
	t.Cleanup(reg.CloseAll)

	r := chi.NewRouter()
	r.Use(withTestIdentity)
	var counter MessageCounter
	if repo != nil {
		counter = repo
	}
	NewChatHandler(reg, counter, limit).RegisterRoutes(r)
	return r, reg
}

var errProbe = errors.New("connection refused")

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

func fstestPage() fstest.MapFS {
	return fstest.MapFS{"index.html": {Data: []byte(`<h1>{{.Profile.Name}}</h1>{{.Bio}}`)}}
}
