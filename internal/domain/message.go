package domain

import (
	"time"

	"github.com/google/uuid"
)

// Author identifies who wrote a conversation entry.
type Author string

const (
	// AuthorUser marks text typed by the visitor.
	AuthorUser Author = "user"
	// AuthorAssistant marks text produced by (or on behalf of) the answering service.
	AuthorAssistant Author = "assistant"
)

// MessageEntry is one immutable unit in the conversation log.
type MessageEntry struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	Text      string    `json:"text"`
	Author    Author    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

// IsUser reports whether the entry was authored by the visitor.
func (m MessageEntry) IsUser() bool {
	return m.Author == AuthorUser
}

// NewEntry builds an entry with a time-ordered identifier.
// Seq is assigned by the conversation store on append.
func NewEntry(author Author, text string, now time.Time) MessageEntry {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return MessageEntry{
		ID:        id.String(),
		Text:      text,
		Author:    author,
		Timestamp: now,
	}
}
