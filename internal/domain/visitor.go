// Package domain contains core domain types for the portfolio chat server.
package domain

import (
	"time"
)

// Visitor is an anonymous browser identified by a long-lived cookie.
type Visitor struct {
	VisitorID    string    `json:"visitor_id"`
	FirstSeenAt  time.Time `json:"first_seen_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
	MessageCount int       `json:"message_count"`
}

// IdleFor returns how long the visitor has been inactive.
func (v *Visitor) IdleFor(now time.Time) time.Duration {
	if v.LastSeenAt.IsZero() {
		return 0
	}
	d := now.Sub(v.LastSeenAt)
	if d < 0 {
		return 0
	}
	return d
}
