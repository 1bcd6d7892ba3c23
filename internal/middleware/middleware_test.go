package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		allowed    []string
		origin     string
		wantOrigin string
		wantCreds  bool
	}{
		{"explicit origin", []string{"https://me.dev"}, "https://me.dev", "https://me.dev", true},
		{"wildcard", []string{"*"}, "https://other.dev", "https://other.dev", false},
		{"disallowed", []string{"https://me.dev"}, "https://evil.dev", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			CORS(tt.allowed)(okHandler()).ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("allow-origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rec.Header().Get("Access-Control-Allow-Credentials") == "true"; got != tt.wantCreds {
				t.Errorf("credentials = %v, want %v", got, tt.wantCreds)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodOptions, "/api/chat/messages", nil)
	req.Header.Set("Origin", "https://me.dev")
	rec := httptest.NewRecorder()
	CORS([]string{"https://me.dev"})(okHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("preflight status = %d", rec.Code)
	}
}

func TestRateLimiterPerKey(t *testing.T) {
	t.Parallel()

	l := NewRateLimiter(60, 2, func(r *http.Request) string { return r.Header.Get("X-Key") })
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	h := l.Handler(okHandler())

	do := func(key string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/chat/messages", nil)
		req.Header.Set("X-Key", key)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if do("a") != http.StatusNoContent || do("a") != http.StatusNoContent {
		t.Fatal("burst requests should pass")
	}
	if code := do("a"); code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", code)
	}
	if code := do("b"); code != http.StatusNoContent {
		t.Fatalf("other key limited: %d", code)
	}

	now = now.Add(time.Second)
	if code := do("a"); code != http.StatusNoContent {
		t.Fatalf("token not refilled after 1s: %d", code)
	}
}

func TestRateLimiterPrune(t *testing.T) {
	t.Parallel()

	l := NewRateLimiter(10, 1, nil)
	now := time.Now()
	l.now = func() time.Time { return now }
	l.Allow("old")
	now = now.Add(time.Hour)
	l.Allow("new")

	if n := l.Prune(30 * time.Minute); n != 1 {
		t.Fatalf("pruned %d, want 1", n)
	}
	if _, ok := l.limiters["new"]; !ok {
		t.Fatal("recent key pruned")
	}
}
