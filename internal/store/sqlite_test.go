package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/portfolio-chat/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "chat.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestVisitorLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestStore(t)

	got, err := repo.GetVisitor(ctx, "missing")
	if err != nil || got != nil {
		t.Fatalf("GetVisitor(missing) = %v, %v; want nil, nil", got, err)
	}

	first := time.Unix(1_700_000_000, 0)
	if err := repo.UpsertVisitor(ctx, &domain.Visitor{VisitorID: "v1", FirstSeenAt: first, LastSeenAt: first}); err != nil {
		t.Fatalf("UpsertVisitor failed: %v", err)
	}
	if err := repo.IncrementMessages(ctx, "v1"); err != nil {
		t.Fatalf("IncrementMessages failed: %v", err)
	}
	if err := repo.IncrementMessages(ctx, "v1"); err != nil {
		t.Fatalf("IncrementMessages failed: %v", err)
	}

	later := first.Add(time.Hour)
	if err := repo.UpsertVisitor(ctx, &domain.Visitor{VisitorID: "v1", FirstSeenAt: later, LastSeenAt: later}); err != nil {
		t.Fatalf("second UpsertVisitor failed: %v", err)
	}

	got, err = repo.GetVisitor(ctx, "v1")
	if err != nil {
		t.Fatalf("GetVisitor failed: %v", err)
	}
	if !got.FirstSeenAt.Equal(first) {
		t.Errorf("first_seen_at overwritten: %v", got.FirstSeenAt)
	}
	if !got.LastSeenAt.Equal(later) {
		t.Errorf("last_seen_at = %v, want %v", got.LastSeenAt, later)
	}
	if got.MessageCount != 2 {
		t.Errorf("message_count = %d, want 2", got.MessageCount)
	}

	touched := later.Add(time.Minute)
	if err := repo.TouchVisitor(ctx, "v1", touched); err != nil {
		t.Fatalf("TouchVisitor failed: %v", err)
	}
	got, _ = repo.GetVisitor(ctx, "v1")
	if !got.LastSeenAt.Equal(touched) {
		t.Errorf("TouchVisitor did not update last_seen_at: %v", got.LastSeenAt)
	}
}

func TestTouchUnknownVisitorIsNotAnError(t *testing.T) {
	t.Parallel()
	if err := newTestStore(t).TouchVisitor(context.Background(), "ghost", time.Now()); err != nil {
		t.Fatalf("TouchVisitor(ghost) = %v", err)
	}
}

func TestHealthHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestStore(t)

	base := time.UnixMilli(1_700_000_000_000)
	statuses := []domain.HealthStatus{domain.HealthOffline, domain.HealthOnline, domain.HealthOffline}
	for i, s := range statuses {
		if err := repo.RecordHealth(ctx, s, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("RecordHealth failed: %v", err)
		}
	}

	events, err := repo.RecentHealth(ctx, 2)
	if err != nil {
		t.Fatalf("RecentHealth failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Status != domain.HealthOffline || !events[0].ObservedAt.Equal(base.Add(2*time.Minute)) {
		t.Errorf("unexpected newest event %+v", events[0])
	}
	if events[1].Status != domain.HealthOnline {
		t.Errorf("unexpected second event %+v", events[1])
	}

	pruned, err := repo.PruneHealth(ctx, base.Add(90*time.Second))
	if err != nil {
		t.Fatalf("PruneHealth failed: %v", err)
	}
	if pruned != 2 {
		t.Fatalf("expected 2 pruned, got %d", pruned)
	}
	events, _ = repo.RecentHealth(ctx, 0)
	if len(events) != 1 {
		t.Fatalf("expected 1 event after prune, got %d", len(events))
	}
}

func TestPing(t *testing.T) {
	t.Parallel()
	if err := newTestStore(t).Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestPragmasApplyToEveryConnection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t).(*SQLiteStore)

	// Hold one connection so the pool must open another.
	held, err := s.db.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn failed: %v", err)
	}
	defer func() { _ = held.Close() }()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		t.Fatalf("second Conn failed: %v", err)
	}
	defer func() { _ = conn.Close() }()

	var mode string
	if err := conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var timeout int
	if err := conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", timeout)
	}
}

func TestConcurrentVisitorWrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestStore(t)

	const workers, rounds = 20, 50
	now := time.Now()
	for i := 0; i < workers; i++ {
		v := &domain.Visitor{VisitorID: fmt.Sprintf("v%d", i), FirstSeenAt: now, LastSeenAt: now}
		if err := repo.UpsertVisitor(ctx, v); err != nil {
			t.Fatalf("UpsertVisitor failed: %v", err)
		}
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				for _, err := range []error{
					repo.TouchVisitor(ctx, id, time.Now()),
					repo.IncrementMessages(ctx, id),
				} {
					if err != nil {
						mu.Lock()
						failed = append(failed, err)
						mu.Unlock()
					}
				}
			}
		}(fmt.Sprintf("v%d", i))
	}
	wg.Wait()

	if len(failed) > 0 {
		t.Fatalf("%d of %d writes failed, first: %v", len(failed), workers*rounds*2, failed[0])
	}
	got, err := repo.GetVisitor(ctx, "v0")
	if err != nil {
		t.Fatalf("GetVisitor failed: %v", err)
	}
	if got.MessageCount != rounds {
		t.Errorf("message_count = %d, want %d", got.MessageCount, rounds)
	}
}

func TestNewSQLiteUnopenablePath(t *testing.T) {
	t.Parallel()

	// A directory cannot be opened as a database file.
	if _, err := NewSQLite(t.TempDir()); err == nil {
		t.Fatal("expected error opening a directory as a database")
	}
}
