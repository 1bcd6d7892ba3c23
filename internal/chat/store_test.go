package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/ashureev/portfolio-chat/internal/domain"
)

func TestConversationStoreAppendOrder(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := NewConversationStore(domain.NewEntry(domain.AuthorAssistant, Greeting, now))
	s.Append(domain.NewEntry(domain.AuthorUser, "one", now))
	last := s.Append(domain.NewEntry(domain.AuthorAssistant, "two", now))

	if last.Seq != 3 {
		t.Fatalf("expected seq 3, got %d", last.Seq)
	}
	all := s.All()
	want := []string{Greeting, "one", "two"}
	if len(all) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(all))
	}
	for i, e := range all {
		if e.Text != want[i] {
			t.Errorf("entry %d = %q, want %q", i, e.Text, want[i])
		}
		if e.Seq != uint64(i+1) {
			t.Errorf("entry %d seq = %d", i, e.Seq)
		}
	}
}

func TestConversationStoreSnapshotIsolation(t *testing.T) {
	t.Parallel()

	s := NewConversationStore()
	s.Append(domain.NewEntry(domain.AuthorUser, "first", time.Now()))
	snap := s.All()
	snap[0].Text = "mutated"
	s.Append(domain.NewEntry(domain.AuthorUser, "second", time.Now()))

	if len(snap) != 1 {
		t.Fatalf("snapshot grew to %d", len(snap))
	}
	if got, _ := s.Last(); got.Text != "second" {
		t.Fatalf("unexpected last entry %q", got.Text)
	}
	if s.All()[0].Text != "first" {
		t.Fatal("snapshot mutation leaked into store")
	}
}

func TestConversationStoreEmpty(t *testing.T) {
	t.Parallel()

	s := NewConversationStore()
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d", s.Len())
	}
	if _, ok := s.Last(); ok {
		t.Fatal("Last on empty store returned ok")
	}
}

func TestConversationStoreConcurrentAppend(t *testing.T) {
	t.Parallel()

	s := NewConversationStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Append(domain.NewEntry(domain.AuthorUser, "x", time.Now()))
		}()
	}
	wg.Wait()

	all := s.All()
	if len(all) != 50 {
		t.Fatalf("expected 50 entries, got %d", len(all))
	}
	for i, e := range all {
		if e.Seq != uint64(i+1) {
			t.Fatalf("entry %d has seq %d", i, e.Seq)
		}
	}
}

func TestSuggestionsReturnsCopy(t *testing.T) {
	t.Parallel()

	got := Suggestions()
	if len(got) != 5 {
		t.Fatalf("expected 5 suggestions, got %d", len(got))
	}
	got[0] = "changed"
	if Suggestions()[0] != "What is your background?" {
		t.Fatal("Suggestions exposed internal slice")
	}
}
