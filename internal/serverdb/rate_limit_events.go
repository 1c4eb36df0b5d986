package serverdb

import (
	"database/sql"
	"fmt"
	"time"
)

// RateLimitEvent represents a rate limit violation event.
type RateLimitEvent struct {
	ID            int64  `json:"id"`
	Subject       string `json:"subject"` // user id or socket id; empty if IP-based
	IP            string `json:"ip"`
	EndpointClass string `json:"endpoint_class"` // auth, devai, exec, other
	CreatedAt     string `json:"created_at"`
}

// InsertRateLimitEvent inserts a rate limit violation event.
// subject may be empty for IP-based rate limiting (stored as NULL).
func (db *ServerDB) InsertRateLimitEvent(subject, ip, endpointClass string) error {
	var subjectParam any
	if subject != "" {
		subjectParam = subject
	}
	_, err := db.conn.Exec(
		`INSERT INTO rate_limit_events (subject, ip, endpoint_class) VALUES (?, ?, ?)`,
		subjectParam, ip, endpointClass,
	)
	if err != nil {
		return fmt.Errorf("insert rate limit event: %w", err)
	}
	return nil
}

// ListRateLimitEvents returns the most recent rate limit events, newest first.
func (db *ServerDB) ListRateLimitEvents(limit int) ([]RateLimitEvent, error) {
	rows, err := db.conn.Query(
		`SELECT id, subject, ip, endpoint_class, created_at FROM rate_limit_events ORDER BY id DESC LIMIT ?`,
		NormalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list rate limit events: %w", err)
	}
	defer rows.Close()

	events := []RateLimitEvent{}
	for rows.Next() {
		var e RateLimitEvent
		var subject sql.NullString
		if err := rows.Scan(&e.ID, &subject, &e.IP, &e.EndpointClass, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rate limit event: %w", err)
		}
		e.Subject = subject.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rate limit events: iterate: %w", err)
	}
	return events, nil
}

// CleanupRateLimitEvents deletes events older than the given duration.
// Returns the number of rows deleted.
func (db *ServerDB) CleanupRateLimitEvents(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format("2006-01-02 15:04:05")
	res, err := db.conn.Exec(
		`DELETE FROM rate_limit_events WHERE created_at < ?`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup rate limit events: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
