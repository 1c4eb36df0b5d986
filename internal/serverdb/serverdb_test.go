package serverdb

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func newTestDB(t *testing.T) *ServerDB {
	t.Helper()
	db, err := Open("", ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open("postgres", ":memory:"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestOpenFileAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "server.db")
	db, err := Open(DriverModernc, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := db.CreateRoom("r1", "Room One", ""); err != nil {
		t.Fatalf("create room: %v", err)
	}
	db.Close()

	db, err = Open(DriverModernc, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	if v := db.getSchemaVersion(); v != ServerSchemaVersion {
		t.Fatalf("schema version = %d, want %d", v, ServerSchemaVersion)
	}
	r, err := db.GetRoom("r1")
	if err != nil || r == nil {
		t.Fatalf("room lost across reopen: %v", err)
	}
	if r.Language != DefaultLanguage {
		t.Errorf("language = %q, want %q", r.Language, DefaultLanguage)
	}
}

func TestRunMigrationsIdempotent(t *testing.T) {
	db := newTestDB(t)
	n, err := db.RunMigrations()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected no migrations on second run, got %d", n)
	}
}

// --- User tests ---

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)
	u, err := db.CreateUser(" Alice ", "Alice@Example.COM", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email not lowercased: %s", u.Email)
	}
	if u.Name != "Alice" {
		t.Errorf("name not trimmed: %q", u.Name)
	}
	if !strings.HasPrefix(u.ID, "u_") {
		t.Errorf("unexpected id prefix: %s", u.ID)
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.CreateUser("a", "dup@test.com", "h"); err != nil {
		t.Fatal(err)
	}
	_, err := db.CreateUser("b", "DUP@test.com", "h")
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestCreateUserEmptyEmail(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.CreateUser("x", "  ", "h"); err == nil {
		t.Fatal("expected error for empty email")
	}
}

func TestGetUserByEmail(t *testing.T) {
	db := newTestDB(t)
	db.CreateUser("Find", "find@test.com", "h")
	found, err := db.GetUserByEmail("FIND@test.com")
	if err != nil {
		t.Fatal(err)
	}
	if found == nil || found.Email != "find@test.com" {
		t.Fatal("user not found by email")
	}
	if found.PasswordHash != "h" {
		t.Errorf("password hash = %q", found.PasswordHash)
	}
}

func TestGetUserByIDNotFound(t *testing.T) {
	db := newTestDB(t)
	found, err := db.GetUserByID("u_nonexistent")
	if err != nil {
		t.Fatal(err)
	}
	if found != nil {
		t.Fatal("expected nil for missing user")
	}
}

func TestSetUserAdminAndCount(t *testing.T) {
	db := newTestDB(t)
	db.CreateUser("a", "a@test.com", "h")
	db.CreateUser("b", "b@test.com", "h")

	if err := db.SetUserAdmin("A@test.com", true); err != nil {
		t.Fatal(err)
	}
	n, err := db.CountAdmins()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 admin, got %d", n)
	}
	u, _ := db.GetUserByEmail("a@test.com")
	if !u.IsAdmin {
		t.Fatal("expected IsAdmin")
	}

	if err := db.SetUserAdmin("missing@test.com", true); err == nil {
		t.Fatal("expected error for missing user")
	}
}

func TestSetPassword(t *testing.T) {
	db := newTestDB(t)
	u, _ := db.CreateUser("a", "a@test.com", "old")
	if err := db.SetPassword(u.ID, "new"); err != nil {
		t.Fatal(err)
	}
	got, _ := db.GetUserByID(u.ID)
	if got.PasswordHash != "new" {
		t.Fatalf("password hash = %q, want new", got.PasswordHash)
	}
	if err := db.SetPassword("u_missing", "x"); err == nil {
		t.Fatal("expected error for missing user")
	}
}

func TestListUsers(t *testing.T) {
	db := newTestDB(t)
	db.CreateUser("a", "a@test.com", "h")
	db.CreateUser("b", "b@test.com", "h")
	users, err := db.ListUsers()
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
}

func TestAdminStats(t *testing.T) {
	db := newTestDB(t)
	db.CreateUser("a", "a@test.com", "h")
	db.CreateRoom("r1", "One", "")
	db.JoinRoom("r2", ActiveUser{Name: "bob", SocketID: "s1"})
	db.JoinRoom("r2", ActiveUser{Name: "eve", SocketID: "s2"})

	s, err := db.AdminStats()
	if err != nil {
		t.Fatal(err)
	}
	if s.Users != 1 || s.Rooms != 2 || s.ActiveSockets != 2 || s.OccupiedRooms != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}
