package output

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const (
	answerWidth    = 100
	minAnswerWidth = 20
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the stdout terminal width, then $COLUMNS, then fallback.
func TerminalWidth(fallback int) int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	if n, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && n > 0 {
		return n
	}
	return fallback
}

// RenderAnswer formats a DevAi answer for the terminal, capped at a
// readable width. The answer is returned unchanged if rendering fails.
func RenderAnswer(answer string) string {
	width := min(TerminalWidth(answerWidth), answerWidth)
	out, err := RenderMarkdownWithWidth(answer, width)
	if err != nil || out == "" {
		return answer
	}
	return out
}

// RenderMarkdownWithWidth renders markdown with glamour, wrapping at width.
func RenderMarkdownWithWidth(text string, width int) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	width = max(width, minAnswerWidth)

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
		glamour.WithPreservedNewLines(),
	)
	if err != nil {
		return "", err
	}
	out, err := r.Render(text)
	if err != nil {
		return "", err
	}
	return strings.Trim(out, "\n"), nil
}
