package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/henrypark/dbproxy/highlight"
	"github.com/henrypark/dbproxy/proxy"
)

func eventStatus(ev proxy.Event) string {
	if ev.Error != "" {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render("E")
	}
	if ev.NPlus1 {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Render("N+1")
	}
	if ev.SlowQuery {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Render("SLOW")
	}
	return ""
}

// Column widths.
const (
	colMarker   = 4 // "▶ " or "  " (2) + indent (2)
	colOp       = 9
	colDuration = 10
	colTime     = 12
	colStatus   = 4
)

func (m Model) renderList(maxRows int) string {
	innerWidth := max(m.width-4, 20)
	colQuery := max(innerWidth-colMarker-colOp-colDuration-colTime-colStatus-4, 10)

	title := fmt.Sprintf(" dbproxy (%d queries) ", len(m.events))

	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(innerWidth)

	dataRows := max(maxRows-1, 1) // -1 for header row

	start := 0
	if len(m.events) > dataRows {
		start = max(m.cursor-dataRows/2, 0)
		if start+dataRows > len(m.events) {
			start = len(m.events) - dataRows
		}
	}
	end := min(start+dataRows, len(m.events))

	header := fmt.Sprintf("    %-*s %-*s %*s %*s %-*s",
		colOp, "Op",
		colQuery, "Query",
		colDuration, "Duration",
		colTime, "Time",
		colStatus, "",
	)

	var rows []string
	rows = append(rows, lipgloss.NewStyle().Bold(true).Render(header))
	for i := start; i < end; i++ {
		rows = append(rows, m.renderEventRow(m.events[i], i == m.cursor, colQuery))
	}

	borderColor := lipgloss.Color("240")
	border = border.BorderForeground(borderColor)
	content := strings.Join(rows, "\n")

	box := border.Render(content)
	lines := strings.Split(box, "\n")
	if len(lines) > 0 {
		borderFg := lipgloss.NewStyle().Foreground(borderColor)
		titleStyle := lipgloss.NewStyle().Bold(true)
		dashes := max(innerWidth-len([]rune(title)), 0)
		lines[0] = borderFg.Render("╭") +
			titleStyle.Render(title) +
			borderFg.Render(strings.Repeat("─", dashes)+"╮")
		box = strings.Join(lines, "\n")
	}

	return box
}

func (m Model) renderEventRow(ev proxy.Event, isCursor bool, colQuery int) string {
	marker := "  "
	if isCursor {
		marker = "▶ "
	}

	op := ev.Op.String()
	dur := formatDuration(ev.Duration)
	t := formatTime(ev.StartTime)

	q := truncate(ev.Query, colQuery)
	if q == "" {
		q = "-"
	}

	status := eventStatus(ev)

	row := fmt.Sprintf("%s  %-*s %-*s %*s %*s",
		marker,
		colOp, op,
		colQuery, q,
		colDuration, dur,
		colTime, t,
	) + " " + status
	if isCursor {
		row = lipgloss.NewStyle().Bold(true).Render(row)
	}
	return row
}

func (m Model) renderPreview() string {
	innerWidth := max(m.width-4, 20)

	if m.cursor < 0 || m.cursor >= len(m.events) {
		return ""
	}
	ev := m.events[m.cursor]

	var lines []string
	lines = append(lines, "Op:       "+ev.Op.String())

	if ev.Query != "" {
		maxQueryLen := max(innerWidth-10, 20) // 10 = len("Query:    ")
		lines = append(lines, "Query:    "+highlight.SQL(truncate(ev.Query, maxQueryLen)))
	}

	if len(ev.Args) > 0 {
		lines = append(lines, fmt.Sprintf("Args:     [%s]", strings.Join(ev.Args, ", ")))
	}

	lines = append(lines, "Duration: "+formatDuration(ev.Duration))

	if ev.Error != "" {
		lines = append(lines, "Error:    "+ev.Error)
	}
	if ev.TxID != "" {
		lines = append(lines, "Tx:       "+ev.TxID)
	}
	if ev.ConnID != "" {
		lines = append(lines, "Conn:     "+ev.ConnID)
	}

	content := strings.Join(lines, "\n")

	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(innerWidth).
		BorderForeground(lipgloss.Color("240"))

	return border.Render(content)
}
