package serverdb

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Room is a shared editing session with its current buffer and presence.
type Room struct {
	RoomID      string
	Name        string
	Code        string
	Language    string
	MaxUsers    int
	CreatedBy   string
	ActiveUsers []ActiveUser
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ActiveUser is one connected socket in a room.
type ActiveUser struct {
	Name     string
	Email    string
	SocketID string
	JoinedAt time.Time
}

// Names returns the display names of the room's active users in join order.
func (r *Room) Names() []string {
	names := make([]string, 0, len(r.ActiveUsers))
	for _, u := range r.ActiveUsers {
		names = append(names, u.Name)
	}
	return names
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

const roomColumns = `room_id, name, code, language, max_users, created_by, created_at, updated_at`

func scanRoom(row interface{ Scan(...any) error }) (*Room, error) {
	r := &Room{}
	if err := row.Scan(&r.RoomID, &r.Name, &r.Code, &r.Language, &r.MaxUsers, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return r, nil
}

// CreateRoom inserts an empty room with the default buffer.
// Returns ErrRoomExists if the id is taken.
func (db *ServerDB) CreateRoom(roomID, name, createdBy string) (*Room, error) {
	roomID = strings.TrimSpace(roomID)
	name = strings.TrimSpace(name)
	if roomID == "" || name == "" {
		return nil, fmt.Errorf("room id and name are required")
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := getRoom(tx, roomID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrRoomExists
	}

	room, err := insertRoom(tx, roomID, name, NormalizeEmail(createdBy))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return room, nil
}

func insertRoom(q querier, roomID, name, createdBy string) (*Room, error) {
	now := time.Now().UTC()
	_, err := q.Exec(
		`INSERT INTO rooms (room_id, name, code, language, max_users, created_by, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		roomID, name, DefaultCode, DefaultLanguage, DefaultMaxUsers, createdBy, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}
	return &Room{
		RoomID:    roomID,
		Name:      name,
		Code:      DefaultCode,
		Language:  DefaultLanguage,
		MaxUsers:  DefaultMaxUsers,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetRoom returns the room with its active users, or nil if not found.
func (db *ServerDB) GetRoom(roomID string) (*Room, error) {
	return getRoom(db.conn, roomID)
}

func getRoom(q querier, roomID string) (*Room, error) {
	r, err := scanRoom(q.QueryRow(`SELECT `+roomColumns+` FROM rooms WHERE room_id = ?`, roomID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	users, err := listActiveUsers(q, roomID)
	if err != nil {
		return nil, err
	}
	r.ActiveUsers = users
	return r, nil
}

func listActiveUsers(q querier, roomID string) ([]ActiveUser, error) {
	rows, err := q.Query(
		`SELECT name, email, socket_id, joined_at FROM active_users WHERE room_id = ? ORDER BY joined_at, rowid`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	defer rows.Close()

	users := []ActiveUser{}
	for rows.Next() {
		var u ActiveUser
		if err := rows.Scan(&u.Name, &u.Email, &u.SocketID, &u.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan active user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active users: iterate: %w", err)
	}
	return users, nil
}

// ListRooms returns every room with its active users, oldest first.
func (db *ServerDB) ListRooms() ([]*Room, error) {
	rows, err := db.conn.Query(`SELECT ` + roomColumns + ` FROM rooms ORDER BY created_at, room_id`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	rooms, err := collectRooms(rows)
	if err != nil {
		return nil, err
	}
	return db.withActiveUsers(rooms)
}

func collectRooms(rows *sql.Rows) ([]*Room, error) {
	defer rows.Close()
	var rooms []*Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rooms: iterate: %w", err)
	}
	return rooms, nil
}

func (db *ServerDB) withActiveUsers(rooms []*Room) ([]*Room, error) {
	for _, r := range rooms {
		users, err := listActiveUsers(db.conn, r.RoomID)
		if err != nil {
			return nil, err
		}
		r.ActiveUsers = users
	}
	return rooms, nil
}

// UpdateRoomCode replaces the room's buffer. The last write wins.
func (db *ServerDB) UpdateRoomCode(roomID, code string) error {
	res, err := db.conn.Exec(
		`UPDATE rooms SET code = ?, updated_at = ? WHERE room_id = ?`,
		code, time.Now().UTC(), roomID,
	)
	if err != nil {
		return fmt.Errorf("update room code: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("room not found: %s", roomID)
	}
	return nil
}

// UpdateRoomLanguage records the editor language selected for the room.
func (db *ServerDB) UpdateRoomLanguage(roomID, language string) error {
	res, err := db.conn.Exec(
		`UPDATE rooms SET language = ?, updated_at = ? WHERE room_id = ?`,
		language, time.Now().UTC(), roomID,
	)
	if err != nil {
		return fmt.Errorf("update room language: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("room not found: %s", roomID)
	}
	return nil
}

// DeleteRoom removes a room, its presence rows and every account's reference to it.
func (db *ServerDB) DeleteRoom(roomID string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM rooms WHERE room_id = ?`, roomID)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("room not found: %s", roomID)
	}
	if _, err := tx.Exec(`DELETE FROM active_users WHERE room_id = ?`, roomID); err != nil {
		return fmt.Errorf("delete room presence: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM user_rooms WHERE room_id = ?`, roomID); err != nil {
		return fmt.Errorf("delete room references: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// JoinRoom records a socket's presence in a room, creating the room on first
// join. Earlier presence rows for the same email or socket are replaced.
// Returns the room as seen after the join and whether it was created.
func (db *ServerDB) JoinRoom(roomID string, user ActiveUser) (*Room, bool, error) {
	if roomID == "" {
		return nil, false, fmt.Errorf("room id is required")
	}
	if user.SocketID == "" {
		return nil, false, fmt.Errorf("socket id is required")
	}
	user.Email = NormalizeEmail(user.Email)

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	room, err := getRoom(tx, roomID)
	if err != nil {
		return nil, false, err
	}
	created := false
	if room == nil {
		if room, err = insertRoom(tx, roomID, roomID, user.Email); err != nil {
			return nil, false, err
		}
		created = true
	}

	if user.Email != "" {
		if _, err := tx.Exec(`DELETE FROM active_users WHERE room_id = ? AND email = ?`, roomID, user.Email); err != nil {
			return nil, false, fmt.Errorf("remove previous presence: %w", err)
		}
	}
	if _, err := tx.Exec(`DELETE FROM active_users WHERE room_id = ? AND socket_id = ?`, roomID, user.SocketID); err != nil {
		return nil, false, fmt.Errorf("remove socket presence: %w", err)
	}

	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM active_users WHERE room_id = ?`, roomID).Scan(&count); err != nil {
		return nil, false, fmt.Errorf("count active users: %w", err)
	}
	if room.MaxUsers > 0 && count >= room.MaxUsers {
		return nil, false, ErrRoomFull
	}

	if user.JoinedAt.IsZero() {
		user.JoinedAt = time.Now().UTC()
	}
	_, err = tx.Exec(
		`INSERT INTO active_users (room_id, socket_id, name, email, joined_at) VALUES (?, ?, ?, ?, ?)`,
		roomID, user.SocketID, user.Name, user.Email, user.JoinedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert presence: %w", err)
	}

	if room.ActiveUsers, err = listActiveUsers(tx, roomID); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return room, created, nil
}

// LeaveRoom removes a socket's presence row and returns the room as seen
// afterwards, or nil if the room no longer exists.
func (db *ServerDB) LeaveRoom(roomID, socketID string) (*Room, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM active_users WHERE room_id = ? AND socket_id = ?`, roomID, socketID); err != nil {
		return nil, fmt.Errorf("remove presence: %w", err)
	}
	room, err := getRoom(tx, roomID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return room, nil
}

// ClearPresence drops every presence row. Socket ids do not survive a
// process restart, so rows left from a previous run are stale.
func (db *ServerDB) ClearPresence() (int64, error) {
	res, err := db.conn.Exec(`DELETE FROM active_users`)
	if err != nil {
		return 0, fmt.Errorf("clear presence: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// AddUserRoom remembers a room for an account. Adding twice is a no-op.
func (db *ServerDB) AddUserRoom(userID, roomID string) error {
	if userID == "" || roomID == "" {
		return errors.New("user id and room id are required")
	}
	_, err := db.conn.Exec(
		`INSERT OR IGNORE INTO user_rooms (user_id, room_id, added_at) VALUES (?, ?, ?)`,
		userID, roomID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("add user room: %w", err)
	}
	return nil
}

// ListRoomsForUser returns the rooms remembered for an account in the order
// they were added. References to deleted rooms are skipped.
func (db *ServerDB) ListRoomsForUser(userID string) ([]*Room, error) {
	rows, err := db.conn.Query(`
		SELECT r.room_id, r.name, r.code, r.language, r.max_users, r.created_by, r.created_at, r.updated_at
		FROM user_rooms ur
		JOIN rooms r ON r.room_id = ur.room_id
		WHERE ur.user_id = ?
		ORDER BY ur.added_at, ur.rowid
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list rooms for user: %w", err)
	}
	rooms, err := collectRooms(rows)
	if err != nil {
		return nil, err
	}
	return db.withActiveUsers(rooms)
}
