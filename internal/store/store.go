// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/portfolio-chat/internal/domain"
)

// Repository persists visitor bookkeeping and answering-service health history.
// Conversation content is never stored.
type Repository interface {
	// GetVisitor retrieves a visitor by ID. It returns nil, nil when unknown.
	GetVisitor(ctx context.Context, visitorID string) (*domain.Visitor, error)

	// UpsertVisitor creates a visitor or refreshes its last_seen_at.
	UpsertVisitor(ctx context.Context, visitor *domain.Visitor) error

	// TouchVisitor updates the last_seen_at timestamp for a visitor.
	TouchVisitor(ctx context.Context, visitorID string, lastSeen time.Time) error

	// IncrementMessages counts one accepted submission for a visitor.
	IncrementMessages(ctx context.Context, visitorID string) error

	// RecordHealth appends a health transition.
	RecordHealth(ctx context.Context, status domain.HealthStatus, observedAt time.Time) error

	// RecentHealth returns up to limit transitions, newest first.
	RecentHealth(ctx context.Context, limit int) ([]domain.HealthEvent, error)

	// PruneHealth deletes transitions older than the cutoff.
	PruneHealth(ctx context.Context, olderThan time.Time) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
