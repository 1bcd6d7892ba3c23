package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ashureev/portfolio-chat/internal/domain"
	"github.com/ashureev/portfolio-chat/internal/shared"
)

const (
	writeAttempts  = 3
	writeBaseDelay = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS visitors (
		visitor_id TEXT PRIMARY KEY,
		first_seen_at INTEGER NOT NULL,
		last_seen_at INTEGER NOT NULL,
		message_count INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_visitors_last_seen ON visitors(last_seen_at);

	CREATE TABLE IF NOT EXISTS health_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		status TEXT NOT NULL,
		observed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_health_events_observed ON health_events(observed_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetVisitor retrieves a visitor by ID.
func (s *SQLiteStore) GetVisitor(ctx context.Context, visitorID string) (*domain.Visitor, error) {
	query := `
		SELECT visitor_id, first_seen_at, last_seen_at, message_count
		FROM visitors WHERE visitor_id = ?`

	var v domain.Visitor
	var firstSeen, lastSeen int64
	err := s.db.QueryRowContext(ctx, query, visitorID).Scan(
		&v.VisitorID, &firstSeen, &lastSeen, &v.MessageCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan visitor row: %w", err)
	}

	v.FirstSeenAt = time.Unix(firstSeen, 0)
	v.LastSeenAt = time.Unix(lastSeen, 0)
	return &v, nil
}

// UpsertVisitor creates or refreshes a visitor record. first_seen_at and
// message_count survive the update.
func (s *SQLiteStore) UpsertVisitor(ctx context.Context, v *domain.Visitor) error {
	query := `
	INSERT INTO visitors (visitor_id, first_seen_at, last_seen_at, message_count)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(visitor_id) DO UPDATE SET
		last_seen_at = excluded.last_seen_at`

	firstSeen := v.FirstSeenAt
	if firstSeen.IsZero() {
		firstSeen = v.LastSeenAt
	}
	return shared.RetryOnConflict(ctx, "upsert visitor", writeAttempts, writeBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx, query,
			v.VisitorID, firstSeen.Unix(), v.LastSeenAt.Unix(), v.MessageCount,
		)
		return err
	})
}

// TouchVisitor updates the last_seen_at timestamp for a visitor.
func (s *SQLiteStore) TouchVisitor(ctx context.Context, visitorID string, lastSeen time.Time) error {
	query := `UPDATE visitors SET last_seen_at = ? WHERE visitor_id = ?`
	return shared.RetryOnConflict(ctx, "touch visitor", writeAttempts, writeBaseDelay, func() error {
		result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), visitorID)
		if err != nil {
			return fmt.Errorf("update last_seen: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rows == 0 {
			slog.Warn("TouchVisitor affected 0 rows", "visitor_id", visitorID)
		}
		return nil
	})
}

// IncrementMessages counts one accepted submission.
func (s *SQLiteStore) IncrementMessages(ctx context.Context, visitorID string) error {
	query := `UPDATE visitors SET message_count = message_count + 1 WHERE visitor_id = ?`
	return shared.RetryOnConflict(ctx, "increment messages", writeAttempts, writeBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx, query, visitorID)
		return err
	})
}

// RecordHealth appends a health transition.
func (s *SQLiteStore) RecordHealth(ctx context.Context, status domain.HealthStatus, observedAt time.Time) error {
	query := `INSERT INTO health_events (status, observed_at) VALUES (?, ?)`
	return shared.RetryOnConflict(ctx, "record health", writeAttempts, writeBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx, query, string(status), observedAt.UnixMilli())
		return err
	})
}

// RecentHealth returns up to limit transitions, newest first.
func (s *SQLiteStore) RecentHealth(ctx context.Context, limit int) ([]domain.HealthEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, status, observed_at FROM health_events
		ORDER BY observed_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query health events: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close health event rows", "error", closeErr)
		}
	}()

	var events []domain.HealthEvent
	for rows.Next() {
		var ev domain.HealthEvent
		var status string
		var observed int64
		if err := rows.Scan(&ev.ID, &status, &observed); err != nil {
			return nil, fmt.Errorf("scan health event row: %w", err)
		}
		ev.Status = domain.HealthStatus(status)
		ev.ObservedAt = time.UnixMilli(observed)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate health events: %w", err)
	}
	return events, nil
}

// PruneHealth deletes transitions observed before olderThan.
func (s *SQLiteStore) PruneHealth(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM health_events WHERE observed_at < ?`, olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune health events: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
