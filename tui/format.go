package tui

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(time.Local).Format("15:04:05.000") //nolint:gosmopolitan // TUI displays local time
}

var reSpaces = regexp.MustCompile(`\s+`)

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return s[:maxLen]
	}
	return s[:maxLen-1] + "…"
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		us := float64(d.Microseconds())
		return fmt.Sprintf("%.0fµs", us)
	case d < time.Second:
		ms := float64(d.Microseconds()) / 1000
		return fmt.Sprintf("%.1fms", ms)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

func friendlyError(err error, width int) string {
	msg := err.Error()

	var text string
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "EOF"):
		text = "Could not connect to dbproxyd.\n" +
			"Is dbproxyd running with -http set?\n\n" +
			"Error: " + msg
	}
	if text == "" {
		text = "Error: " + msg
	}

	return lipgloss.NewStyle().Width(width).Render(text)
}
