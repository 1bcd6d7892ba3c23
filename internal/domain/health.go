package domain

import (
	"time"
)

// HealthStatus is the reachability of the answering service.
type HealthStatus string

const (
	// HealthOnline means the last probe succeeded.
	HealthOnline HealthStatus = "online"
	// HealthOffline means the last probe failed, timed out or got a non-success answer.
	HealthOffline HealthStatus = "offline"
)

// Online reports whether the status permits new submissions.
func (s HealthStatus) Online() bool {
	return s == HealthOnline
}

// HealthEvent is a recorded probe outcome.
type HealthEvent struct {
	ID         int64        `json:"id"`
	Status     HealthStatus `json:"status"`
	ObservedAt time.Time    `json:"observed_at"`
}
