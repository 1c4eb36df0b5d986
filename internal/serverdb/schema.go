package serverdb

// ServerSchemaVersion is the current server database schema version
const ServerSchemaVersion = 3

// Room defaults applied when a room is created without explicit values.
const (
	DefaultCode     = "// start code here"
	DefaultLanguage = "javascript"
	DefaultMaxUsers = 50
)

const serverSchema = `
-- Users table
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    email TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL DEFAULT '',
    is_admin INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Rooms table
CREATE TABLE IF NOT EXISTS rooms (
    room_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    code TEXT NOT NULL DEFAULT '// start code here',
    max_users INTEGER NOT NULL DEFAULT 50,
    created_by TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Presence: one row per connected socket in a room
CREATE TABLE IF NOT EXISTS active_users (
    room_id TEXT NOT NULL,
    socket_id TEXT NOT NULL,
    name TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (room_id, socket_id),
    FOREIGN KEY (room_id) REFERENCES rooms(room_id) ON DELETE CASCADE
);

-- Rooms remembered per account
CREATE TABLE IF NOT EXISTS user_rooms (
    user_id TEXT NOT NULL,
    room_id TEXT NOT NULL,
    added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (user_id, room_id),
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

-- Schema info table
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_active_users_room ON active_users(room_id, joined_at);
CREATE INDEX IF NOT EXISTS idx_active_users_email ON active_users(room_id, email);
CREATE INDEX IF NOT EXISTS idx_user_rooms_user ON user_rooms(user_id, added_at);
`

// Migration defines a server database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations is the list of all server database migrations in order
var Migrations = []Migration{
	// Version 1 is the initial schema - no migration needed
	{
		Version:     2,
		Description: "Add room language and event tables",
		SQL: `ALTER TABLE rooms ADD COLUMN language TEXT NOT NULL DEFAULT 'javascript';

		CREATE TABLE IF NOT EXISTS auth_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL DEFAULT '',
			event_type TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_auth_events_created ON auth_events(created_at);`,
	},
	{
		Version:     3,
		Description: "Add rate_limit_events table",
		SQL: `CREATE TABLE IF NOT EXISTS rate_limit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			subject TEXT,
			ip TEXT NOT NULL DEFAULT '',
			endpoint_class TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_rate_limit_events_created ON rate_limit_events(created_at);`,
	},
}
