package serverdb

import "fmt"

// Stats is a point-in-time count of the main tables.
type Stats struct {
	Users         int `json:"users"`
	Rooms         int `json:"rooms"`
	ActiveSockets int `json:"active_sockets"`
	OccupiedRooms int `json:"occupied_rooms"`
}

// AdminStats returns aggregate counts for the admin dashboard.
func (db *ServerDB) AdminStats() (*Stats, error) {
	s := &Stats{}
	err := db.conn.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM rooms),
			(SELECT COUNT(*) FROM active_users),
			(SELECT COUNT(DISTINCT room_id) FROM active_users)
	`).Scan(&s.Users, &s.Rooms, &s.ActiveSockets, &s.OccupiedRooms)
	if err != nil {
		return nil, fmt.Errorf("admin stats: %w", err)
	}
	return s, nil
}
