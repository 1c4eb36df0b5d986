package output

import (
	"strings"
	"testing"
	"time"

	"github.com/devroom/devroom/internal/piston"
	"github.com/devroom/devroom/internal/serverdb"
)

func TestFormatTimeAgo(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{0, "just now"},
		{59 * time.Second, "just now"},
		{60 * time.Second, "1m ago"},
		{30 * time.Minute, "30m ago"},
		{60 * time.Minute, "1h ago"},
		{23 * time.Hour, "23h ago"},
		{24 * time.Hour, "1d ago"},
		{6 * 24 * time.Hour, "6d ago"},
	}

	for _, tc := range tests {
		tm := time.Now().Add(-tc.duration)
		result := FormatTimeAgo(tm)
		if result != tc.expected {
			t.Errorf("FormatTimeAgo(-%v) = %q, want %q", tc.duration, result, tc.expected)
		}
	}
}

// TestFormatTimeAgoDate tests times 7+ days ago (returns date)
func TestFormatTimeAgoDate(t *testing.T) {
	tm := time.Now().Add(-8 * 24 * time.Hour)
	result := FormatTimeAgo(tm)
	expected := tm.Format("2006-01-02")
	if result != expected {
		t.Errorf("FormatTimeAgo(-8d) = %q, want %q", result, expected)
	}
}

func testRoom() *serverdb.Room {
	now := time.Now()
	return &serverdb.Room{
		RoomID:    "r1",
		Name:      "Pairing",
		Code:      "print(1)\nprint(2)",
		Language:  "python",
		MaxUsers:  50,
		CreatedBy: "owner@test.com",
		ActiveUsers: []serverdb.ActiveUser{
			{Name: "alice", Email: "alice@test.com", SocketID: "s1"},
			{Name: "bob", SocketID: "s2"},
		},
		CreatedAt: now.Add(-2 * time.Hour),
		UpdatedAt: now,
	}
}

func TestFormatRoomShort(t *testing.T) {
	result := FormatRoomShort(testRoom())
	for _, want := range []string{"r1", "Pairing", "python", "2/50", "just now"} {
		if !strings.Contains(result, want) {
			t.Errorf("FormatRoomShort missing %q: %q", want, result)
		}
	}
}

func TestFormatRoomLong(t *testing.T) {
	result := FormatRoomLong(testRoom())
	for _, want := range []string{
		"r1: Pairing",
		"Created by: owner@test.com",
		"ACTIVE USERS:",
		"- alice",
		"<alice@test.com>",
		"- bob",
		"CODE:",
		"    print(1)\n    print(2)",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("FormatRoomLong missing %q:\n%s", want, result)
		}
	}
}

func TestFormatRoomLongEmpty(t *testing.T) {
	r := testRoom()
	r.ActiveUsers = nil
	r.CreatedBy = ""
	result := FormatRoomLong(r)
	if strings.Contains(result, "ACTIVE USERS") {
		t.Error("empty room should not list active users")
	}
	if strings.Contains(result, "Created by") {
		t.Error("anonymous room should not show a creator")
	}
}

func TestFormatOccupancy(t *testing.T) {
	for _, tc := range []struct{ n, max int }{{0, 50}, {3, 50}, {50, 50}} {
		result := FormatOccupancy(tc.n, tc.max)
		if !strings.Contains(result, "/") {
			t.Errorf("FormatOccupancy(%d, %d) = %q", tc.n, tc.max, result)
		}
	}
}

func TestFormatUser(t *testing.T) {
	u := &serverdb.User{Name: "Alice", Email: "alice@test.com", CreatedAt: time.Now()}
	result := FormatUser(u)
	if !strings.Contains(result, "alice@test.com") || !strings.Contains(result, "Alice") {
		t.Errorf("FormatUser() = %q", result)
	}
	if strings.Contains(result, "[admin]") {
		t.Error("non-admin should not carry the admin badge")
	}

	u.IsAdmin = true
	if !strings.Contains(FormatUser(u), "[admin]") {
		t.Error("admin badge missing")
	}
}

func TestFormatExecution(t *testing.T) {
	code := 1
	resp := &piston.Response{
		Language: "c",
		Version:  "10.2.0",
		Compile:  &piston.Stage{Output: "warning: unused variable\n"},
		Run:      piston.Stage{Output: "hello\n", Code: &code},
	}
	result := FormatExecution(resp)
	for _, want := range []string{"c 10.2.0", "COMPILE:", "warning: unused variable", "OUTPUT:", "hello", "exit 1"} {
		if !strings.Contains(result, want) {
			t.Errorf("FormatExecution missing %q:\n%s", want, result)
		}
	}
}

func TestFormatExitStatus(t *testing.T) {
	zero := 0
	signal := "SIGKILL"
	tests := []struct {
		stage    piston.Stage
		expected string
	}{
		{piston.Stage{Code: &zero}, "exit 0"},
		{piston.Stage{Signal: &signal}, "killed by SIGKILL"},
		{piston.Stage{}, "exit status unknown"},
	}
	for _, tc := range tests {
		if result := FormatExitStatus(tc.stage); !strings.Contains(result, tc.expected) {
			t.Errorf("FormatExitStatus() = %q, want %q", result, tc.expected)
		}
	}
}

func TestSectionHeader(t *testing.T) {
	tests := []struct {
		title    string
		expected string
	}{
		{"code", "\nCODE:\n"},
		{"Active users", "\nACTIVE USERS:\n"},
	}

	for _, tc := range tests {
		result := SectionHeader(tc.title)
		if result != tc.expected {
			t.Errorf("SectionHeader(%q) = %q, want %q", tc.title, result, tc.expected)
		}
	}
}

// TestIndentLines tests line indentation
func TestIndentLines(t *testing.T) {
	lines := []string{"line1", "line2", "line3"}

	result := IndentLines(lines, 2)

	expected := []string{"  line1", "  line2", "  line3"}
	for i, line := range result {
		if line != expected[i] {
			t.Errorf("IndentLines[%d] = %q, want %q", i, line, expected[i])
		}
	}
}

// TestIndentString tests string indentation
func TestIndentString(t *testing.T) {
	input := "line1\nline2\nline3"
	result := IndentString(input, 2)
	expected := "  line1\n  line2\n  line3"

	if result != expected {
		t.Errorf("IndentString() = %q, want %q", result, expected)
	}
	if IndentString("", 4) != "" {
		t.Error("Empty string should return empty string")
	}
}

// TestBulletList tests bullet list formatting
func TestBulletList(t *testing.T) {
	items := []string{"item 1", "item 2", "item 3"}
	result := BulletList(items, 2)

	expected := []string{"  - item 1", "  - item 2", "  - item 3"}
	for i, line := range result {
		if line != expected[i] {
			t.Errorf("BulletList[%d] = %q, want %q", i, line, expected[i])
		}
	}
}

func TestRenderMarkdownEmpty(t *testing.T) {
	out, err := RenderMarkdownWithWidth("   ", 80)
	if err != nil {
		t.Fatal(err)
	}
	if out != "" {
		t.Errorf("expected empty output, got %q", out)
	}
}

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdownWithWidth("# Title\n\nUse `go test`.", 5)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Title") || !strings.Contains(out, "go test") {
		t.Errorf("rendered markdown lost content: %q", out)
	}
}

func TestRenderAnswerFallsBackOnEmpty(t *testing.T) {
	if got := RenderAnswer("  "); got != "  " {
		t.Errorf("RenderAnswer(blank) = %q, want input unchanged", got)
	}
}
