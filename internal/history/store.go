// Package history records delivery events and answers duplicate
// queries. It is an injected collaborator, not ambient process state:
// logging is fire-and-forget (a failed write never fails a resolution)
// and the duplicate cache has an explicit TTL instead of growing
// unbounded for the process lifetime.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tikrelay/tikrelay/internal/config"
)

// Delivery statuses.
const (
	StatusAccepted  = "accepted"
	StatusDuplicate = "duplicate"
)

// SentStatus formats the final status for a successful delivery,
// naming the strategy that produced it.
func SentStatus(strategy string) string {
	return "sent via " + strategy
}

// FailedStatus formats the final status for a failed delivery.
func FailedStatus(reason string) string {
	return "failed: " + reason
}

// Event is one structured usage record. Emitted on request acceptance
// and again on the final outcome.
type Event struct {
	Timestamp time.Time
	ChatID    int64
	UserID    int64
	Username  string
	Link      string
	Platform  string
	MediaType string
	Status    string
}

// Store is the sqlite-backed delivery log. A single *sql.DB serializes
// concurrent appends from the transport's handler goroutines.
type Store struct {
	db     *sql.DB
	ttl    time.Duration
	logger *slog.Logger
}

// Open opens (creating if needed) the delivery log at cfg.Path.
func Open(cfg config.HistoryConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer connection: sqlite locks the whole database on write,
	// so funneling appends through a single connection avoids busy
	// errors under concurrent handlers.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS deliveries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL,
			chat_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			username TEXT,
			link TEXT NOT NULL,
			platform TEXT NOT NULL,
			media_type TEXT NOT NULL,
			status TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_deliveries_chat_link ON deliveries(chat_id, link);
		CREATE INDEX IF NOT EXISTS idx_deliveries_timestamp ON deliveries(timestamp);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &Store{
		db:     db,
		ttl:    cfg.DuplicateTTL,
		logger: logger,
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one event. Best-effort by contract: callers log the
// returned error at most, they never propagate it.
func (s *Store) Record(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deliveries (timestamp, chat_id, user_id, username, link, platform, media_type, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp, e.ChatID, e.UserID, e.Username, e.Link, e.Platform, e.MediaType, e.Status,
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// SeenRecently reports whether the same link was already delivered to
// the same chat within the duplicate TTL. A TTL of zero disables the
// duplicate cache entirely.
func (s *Store) SeenRecently(ctx context.Context, chatID int64, link string) (bool, error) {
	if s.ttl <= 0 {
		return false, nil
	}

	cutoff := time.Now().UTC().Add(-s.ttl)

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM deliveries
		WHERE chat_id = ? AND link = ? AND status LIKE 'sent%' AND timestamp > ?`,
		chatID, link, cutoff,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("duplicate lookup: %w", err)
	}
	return count > 0, nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, chat_id, user_id, username, link, platform, media_type, status
		FROM deliveries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Timestamp, &e.ChatID, &e.UserID, &e.Username, &e.Link, &e.Platform, &e.MediaType, &e.Status); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune removes events older than the retention window. Called
// opportunistically; losing the race with a concurrent prune is fine.
func (s *Store) Prune(ctx context.Context, retention time.Duration) error {
	if retention <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-retention)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM deliveries WHERE timestamp < ?`, cutoff); err != nil {
		return fmt.Errorf("prune events: %w", err)
	}
	return nil
}
