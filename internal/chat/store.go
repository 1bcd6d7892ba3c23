package chat

import (
	"slices"
	"sync"

	"github.com/ashureev/portfolio-chat/internal/domain"
)

// ConversationStore is an ordered, append-only log of entries.
// Insertion order is display order.
type ConversationStore struct {
	mu      sync.RWMutex
	entries []domain.MessageEntry
	seq     uint64
}

// NewConversationStore creates a store holding the given seed entries.
func NewConversationStore(seed ...domain.MessageEntry) *ConversationStore {
	s := &ConversationStore{}
	for _, e := range seed {
		s.Append(e)
	}
	return s
}

// Append adds an entry to the end and returns it with its sequence number set.
func (s *ConversationStore) Append(e domain.MessageEntry) domain.MessageEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	e.Seq = s.seq
	s.entries = append(s.entries, e)
	return e
}

// All returns a snapshot. Later appends are not visible through it.
func (s *ConversationStore) All() []domain.MessageEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries)
}

// Len returns the number of entries.
func (s *ConversationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Last returns the most recent entry.
func (s *ConversationStore) Last() (domain.MessageEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return domain.MessageEntry{}, false
	}
	return s.entries[len(s.entries)-1], true
}
