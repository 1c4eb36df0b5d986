package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/devroom/devroom/internal/api"
	"github.com/devroom/devroom/internal/auth"
	"github.com/devroom/devroom/internal/piston"
	"github.com/devroom/devroom/internal/serverdb"
)

func testStore(t *testing.T) *serverdb.ServerDB {
	t.Helper()
	store, err := serverdb.Open("", ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// executeCommand runs the root command with args and returns its output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("DEVROOM_TEST_KEY=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DEVROOM_TEST_KEY", "")
	os.Unsetenv("DEVROOM_TEST_KEY")

	if err := loadEnvFile(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("DEVROOM_TEST_KEY"); got != "from-file" {
		t.Fatalf("DEVROOM_TEST_KEY = %q", got)
	}

	if err := loadEnvFile(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
	if err := loadEnvFile(""); err != nil {
		t.Fatalf("empty path should be ignored: %v", err)
	}
}

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	os.WriteFile(path, []byte("DEVROOM_TEST_KEY=from-file\n"), 0o600)
	t.Setenv("DEVROOM_TEST_KEY", "from-env")

	if err := loadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("DEVROOM_TEST_KEY"); got != "from-env" {
		t.Fatalf("existing variable overridden: %q", got)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := api.DefaultConfig()
	cfg.LogLevel = "warn"
	log := newLogger(cfg, &buf)
	log.Info("hidden")
	log.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q", out)
	}
	if entry["msg"] != "shown" || entry["k"] != "v" {
		t.Errorf("unexpected entry %v", entry)
	}

	buf.Reset()
	cfg.LogFormat = "text"
	newLogger(cfg, &buf).Error("boom")
	if !strings.Contains(buf.String(), "msg=boom") {
		t.Errorf("expected text log line, got %q", buf.String())
	}
}

func TestRevokeAdmin(t *testing.T) {
	store := testStore(t)
	store.CreateUser("a", "a@test.com", "h")
	store.CreateUser("b", "b@test.com", "h")
	store.SetUserAdmin("a@test.com", true)

	if err := revokeAdmin(store, "a@test.com"); !errors.Is(err, errLastAdmin) {
		t.Fatalf("expected errLastAdmin, got %v", err)
	}

	store.SetUserAdmin("b@test.com", true)
	if err := revokeAdmin(store, "a@test.com"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	u, _ := store.GetUserByEmail("a@test.com")
	if u.IsAdmin {
		t.Fatal("admin flag should be cleared")
	}

	if err := revokeAdmin(store, "ghost@test.com"); err == nil {
		t.Fatal("expected error for unknown user")
	}
}

func TestCreateAccount(t *testing.T) {
	store := testStore(t)

	user, err := createAccount(store, accountInput{Name: "Ada", Email: "Ada@Test.com", Password: "pw"}, true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !user.IsAdmin || user.Email != "ada@test.com" {
		t.Fatalf("unexpected user %+v", user)
	}
	stored, _ := store.GetUserByEmail("ada@test.com")
	if err := auth.CheckPassword(stored.PasswordHash, "pw"); err != nil {
		t.Fatalf("stored hash does not match: %v", err)
	}

	if _, err := createAccount(store, accountInput{Name: "Ada", Email: "ada@test.com", Password: "pw"}, false); !errors.Is(err, serverdb.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAccountInputValidate(t *testing.T) {
	tests := []struct {
		in       accountInput
		needName bool
		ok       bool
	}{
		{accountInput{Name: "a", Email: "a@test.com", Password: "pw"}, true, true},
		{accountInput{Email: "a@test.com", Password: "pw"}, true, false},
		{accountInput{Email: "a@test.com", Password: "pw"}, false, true},
		{accountInput{Name: "a", Email: "nope", Password: "pw"}, true, false},
		{accountInput{Name: "a", Email: "a@test.com"}, true, false},
	}
	for i, tc := range tests {
		err := tc.in.validate(tc.needName)
		if (err == nil) != tc.ok {
			t.Errorf("case %d: validate() = %v, want ok=%v", i, err, tc.ok)
		}
	}
}

func TestPrintRoomsAndUsers(t *testing.T) {
	var buf bytes.Buffer
	printRooms(&buf, nil)
	printUsers(&buf, nil)
	if buf.String() != "No rooms\nNo users\n" {
		t.Fatalf("unexpected empty output %q", buf.String())
	}

	store := testStore(t)
	store.CreateRoom("r1", "One", "")
	rooms, _ := store.ListRooms()
	buf.Reset()
	printRooms(&buf, rooms)
	if !strings.Contains(buf.String(), "r1") {
		t.Fatalf("room missing from %q", buf.String())
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := map[string]string{
		"main.py":      "python",
		"Main.JAVA":    "java",
		"x/sol.cc":     "c++",
		"script.ts":    "typescript",
		"program.go":   "go",
		"notes.txt":    "",
		"no-extension": "",
	}
	for path, want := range tests {
		got, ok := detectLanguage(path)
		if got != want || ok != (want != "") {
			t.Errorf("detectLanguage(%q) = %q, %v", path, got, ok)
		}
	}
}

func TestReadPrompt(t *testing.T) {
	p, err := readPrompt([]string{"why", "nil?"}, strings.NewReader("ignored"))
	if err != nil || p != "why nil?" {
		t.Fatalf("readPrompt(args) = %q, %v", p, err)
	}
	p, err = readPrompt(nil, strings.NewReader("from stdin"))
	if err != nil || p != "from stdin" {
		t.Fatalf("readPrompt(stdin) = %q, %v", p, err)
	}
	if _, err := readPrompt(nil, strings.NewReader("  \n")); err == nil {
		t.Fatal("expected error for blank prompt")
	}
}

func TestFilterRuntimes(t *testing.T) {
	runtimes := []piston.Runtime{
		{Language: "python", Version: "3.10.0", Aliases: []string{"py", "py3"}},
		{Language: "javascript", Version: "18.15.0", Aliases: []string{"node-javascript", "js"}},
		{Language: "go", Version: "1.16.2", Aliases: []string{"golang"}},
	}
	got := filterRuntimes(runtimes, "PY")
	if len(got) != 1 || got[0].Language != "python" {
		t.Fatalf("filter by language: %+v", got)
	}
	got = filterRuntimes(runtimes, "golang")
	if len(got) != 1 || got[0].Language != "go" {
		t.Fatalf("filter by alias: %+v", got)
	}
}

func TestRunCommand(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		code := 0
		json.NewEncoder(w).Encode(piston.Response{
			Language: "python",
			Version:  "3.10.0",
			Run:      piston.Stage{Output: "42\n", Code: &code},
		})
	}))
	defer ts.Close()

	src := filepath.Join(t.TempDir(), "answer.py")
	os.WriteFile(src, []byte("print(42)"), 0o600)
	t.Setenv("DEVROOM_CONFIG", "")
	t.Setenv("DEVROOM_PISTON_URL", ts.URL)

	out, err := executeCommand(t, "--env-file", "", "run", src)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if got["language"] != "python" || got["version"] != piston.DefaultVersion {
		t.Fatalf("unexpected request %v", got)
	}
	if !strings.Contains(out, "42") || !strings.Contains(out, "exit 0") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestAdminUsersCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "devroom.db")
	store, err := serverdb.Open("", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	store.CreateUser("Ada", "ada@test.com", "h")
	store.Close()
	t.Setenv("DEVROOM_CONFIG", "")

	out, err := executeCommand(t, "--env-file", "", "admin", "users", "--db", dbPath)
	if err != nil {
		t.Fatalf("admin users: %v\n%s", err, out)
	}
	if !strings.Contains(out, "ada@test.com") {
		t.Fatalf("user missing from output:\n%s", out)
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersion("v1.2.3")
	out, err := executeCommand(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "devroom v1.2.3" {
		t.Fatalf("version output = %q", out)
	}
}
