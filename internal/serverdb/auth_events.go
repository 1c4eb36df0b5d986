package serverdb

import (
	"fmt"
	"time"
)

// AuthEvent represents a row in the auth_events table.
type AuthEvent struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	EventType string `json:"event_type"`
	Metadata  string `json:"metadata"`
	CreatedAt string `json:"created_at"`
}

// Auth event type constants.
const (
	AuthEventSignup      = "signup"
	AuthEventLogin       = "login"
	AuthEventLoginFailed = "login_failed"
)

// Limits for list queries.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// NormalizeLimit clamps a requested page size into [1, MaxListLimit].
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// InsertAuthEvent inserts an auth event row.
func (db *ServerDB) InsertAuthEvent(email, eventType, metadata string) error {
	if metadata == "" {
		metadata = "{}"
	}
	_, err := db.conn.Exec(
		`INSERT INTO auth_events (email, event_type, metadata) VALUES (?, ?, ?)`,
		NormalizeEmail(email), eventType, metadata,
	)
	if err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}

// ListAuthEvents returns the most recent auth events, newest first.
// An empty eventType matches every type.
func (db *ServerDB) ListAuthEvents(eventType string, limit int) ([]AuthEvent, error) {
	query := `SELECT id, email, event_type, metadata, created_at FROM auth_events`
	var args []any
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, eventType)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, NormalizeLimit(limit))

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list auth events: %w", err)
	}
	defer rows.Close()

	events := []AuthEvent{}
	for rows.Next() {
		var e AuthEvent
		if err := rows.Scan(&e.ID, &e.Email, &e.EventType, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan auth event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list auth events: iterate: %w", err)
	}
	return events, nil
}

// CleanupAuthEvents deletes auth events older than the given duration.
// Returns the number of rows deleted.
func (db *ServerDB) CleanupAuthEvents(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format("2006-01-02 15:04:05")
	res, err := db.conn.Exec(`DELETE FROM auth_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup auth events: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
