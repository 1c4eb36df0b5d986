// Package output provides styled terminal output helpers (success, error,
// warning, room and execution formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/devroom/devroom/internal/piston"
	"github.com/devroom/devroom/internal/serverdb"
)

var (
	// Styles
	titleStyle    = lipgloss.NewStyle().Bold(true)
	subtleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	languageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	adminStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// FormatOccupancy renders "n/max", highlighted once the room is full.
func FormatOccupancy(n, max int) string {
	s := fmt.Sprintf("%d/%d", n, max)
	switch {
	case max > 0 && n >= max:
		return errorStyle.Render(s)
	case n > 0:
		return successStyle.Render(s)
	default:
		return subtleStyle.Render(s)
	}
}

// FormatRoomShort formats a room on one line.
func FormatRoomShort(r *serverdb.Room) string {
	parts := []string{
		titleStyle.Render(r.RoomID),
		r.Name,
		languageStyle.Render(r.Language),
		FormatOccupancy(len(r.ActiveUsers), r.MaxUsers),
		subtleStyle.Render(FormatTimeAgo(r.UpdatedAt)),
	}
	return strings.Join(parts, "  ")
}

// FormatRoomLong formats a room with its members and current buffer.
func FormatRoomLong(r *serverdb.Room) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s: %s", r.RoomID, r.Name)))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Language: %s | Users: %s\n",
		languageStyle.Render(r.Language), FormatOccupancy(len(r.ActiveUsers), r.MaxUsers)))
	if r.CreatedBy != "" {
		sb.WriteString(fmt.Sprintf("Created by: %s\n", r.CreatedBy))
	}
	sb.WriteString(subtleStyle.Render(fmt.Sprintf("Created %s, updated %s",
		FormatTimeAgo(r.CreatedAt), FormatTimeAgo(r.UpdatedAt))))
	sb.WriteString("\n")

	if len(r.ActiveUsers) > 0 {
		sb.WriteString(SectionHeader("Active users"))
		var users []string
		for _, u := range r.ActiveUsers {
			line := u.Name
			if u.Email != "" {
				line += " " + subtleStyle.Render("<"+u.Email+">")
			}
			users = append(users, line)
		}
		sb.WriteString(strings.Join(BulletList(users, 2), "\n"))
		sb.WriteString("\n")
	}

	sb.WriteString(SectionHeader("Code"))
	sb.WriteString(IndentString(r.Code, 4))
	sb.WriteString("\n")

	return sb.String()
}

// FormatUser formats an account on one line.
func FormatUser(u *serverdb.User) string {
	parts := []string{titleStyle.Render(u.Email), u.Name}
	if u.IsAdmin {
		parts = append(parts, adminStyle.Render("[admin]"))
	}
	parts = append(parts, subtleStyle.Render("joined "+FormatTimeAgo(u.CreatedAt)))
	return strings.Join(parts, "  ")
}

// FormatExecution formats the result of a remote code execution: compiler
// output first, then program output and the exit status.
func FormatExecution(resp *piston.Response) string {
	var sb strings.Builder

	sb.WriteString(subtleStyle.Render(fmt.Sprintf("%s %s", resp.Language, resp.Version)))
	sb.WriteString("\n")

	if c := resp.Compile; c != nil && c.Output != "" {
		sb.WriteString(SectionHeader("Compile"))
		sb.WriteString(strings.TrimRight(c.Output, "\n"))
		sb.WriteString("\n")
	}

	sb.WriteString(SectionHeader("Output"))
	if out := strings.TrimRight(resp.Run.Output, "\n"); out != "" {
		sb.WriteString(out)
		sb.WriteString("\n")
	}
	sb.WriteString(FormatExitStatus(resp.Run))

	return sb.String()
}

// FormatExitStatus describes how a stage ended.
func FormatExitStatus(s piston.Stage) string {
	switch {
	case s.Signal != nil && *s.Signal != "":
		return errorStyle.Render("killed by " + *s.Signal)
	case s.Code == nil:
		return subtleStyle.Render("exit status unknown")
	case *s.Code == 0:
		return successStyle.Render("exit 0")
	default:
		return errorStyle.Render(fmt.Sprintf("exit %d", *s.Code))
	}
}

// FormatTimeAgo returns a human-readable relative time string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("2006-01-02")
	}
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nACTIVE USERS:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}

// IndentLines indents each line by the specified number of spaces
func IndentLines(lines []string, spaces int) []string {
	indent := strings.Repeat(" ", spaces)
	result := make([]string, len(lines))
	for i, line := range lines {
		result[i] = indent + line
	}
	return result
}

// IndentString indents each line in a string by the specified number of spaces
func IndentString(s string, spaces int) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	indented := IndentLines(lines, spaces)
	return strings.Join(indented, "\n")
}

// BulletList formats items as a bulleted list with optional indentation
func BulletList(items []string, indent int) []string {
	prefix := strings.Repeat(" ", indent)
	result := make([]string, len(items))
	for i, item := range items {
		result[i] = prefix + "- " + item
	}
	return result
}
