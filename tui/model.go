package tui

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/henrypark/dbproxy/clipboard"
	"github.com/henrypark/dbproxy/explain"
	"github.com/henrypark/dbproxy/proxy"
	"github.com/henrypark/dbproxy/query"
)

type viewMode int

const (
	viewList viewMode = iota
	viewExplain
)

// Model is the Bubble Tea model for the dbproxy TUI. It connects to a
// running dbproxyd's web dashboard over SSE and renders captured events
// as they arrive.
type Model struct {
	target string
	client *http.Client

	scanner *bufio.Scanner
	body    io.ReadCloser

	events []proxy.Event
	cursor int
	follow bool
	width  int
	height int
	err    error
	view   viewMode

	explainPlan    string
	explainErr     error
	explainScroll  int
	explainHScroll int
	explainMode    explain.Mode
	explainQuery   string
	explainArgs    []string
}

// eventMsg carries one decoded event read off the SSE stream.
type eventMsg struct{ Event proxy.Event }

// errMsg carries a stream or connection error.
type errMsg struct{ Err error }

// streamMsg carries the opened SSE body and a scanner to keep reading from.
type streamMsg struct {
	scanner *bufio.Scanner
	body    io.ReadCloser
}

type explainResultMsg struct {
	plan string
	err  error
}

// New creates a new Model targeting the given dbproxyd web dashboard address,
// e.g. "http://localhost:8080".
func New(target string) Model {
	return Model{
		target: strings.TrimRight(target, "/"),
		client: &http.Client{},
		follow: true,
	}
}

// Init opens the SSE connection to the dashboard.
func (m Model) Init() tea.Cmd {
	return connect(m.client, m.target)
}

func connect(client *http.Client, target string) tea.Cmd {
	return func() tea.Msg {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, target+"/api/events", nil)
		if err != nil {
			return errMsg{Err: err}
		}
		resp, err := client.Do(req)
		if err != nil {
			return errMsg{Err: fmt.Errorf("connect %s: %w", target, err)}
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return errMsg{Err: fmt.Errorf("connect %s: status %s", target, resp.Status)}
		}
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		return streamMsg{scanner: scanner, body: resp.Body}
	}
}

// recvEvent reads the next "data: ..." line off the SSE stream, skipping
// blank lines and comments, and decodes it into a proxy.Event.
func recvEvent(scanner *bufio.Scanner, body io.Closer) tea.Cmd {
	return func() tea.Msg {
		for scanner.Scan() {
			line := scanner.Text()
			data, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				continue
			}
			var ev eventJSON
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				continue
			}
			return eventMsg{Event: ev.toEvent()}
		}
		_ = body.Close()
		if err := scanner.Err(); err != nil {
			return errMsg{Err: err}
		}
		return errMsg{Err: fmt.Errorf("event stream closed")}
	}
}

// eventJSON mirrors web.eventJSON for decoding events off the wire.
type eventJSON struct {
	ID              string   `json:"id"`
	ConnID          string   `json:"conn_id"`
	Op              string   `json:"op"`
	Query           string   `json:"query"`
	Args            []string `json:"args"`
	StartTime       string   `json:"start_time"`
	DurationMs      float64  `json:"duration_ms"`
	RowsAffected    int64    `json:"rows_affected"`
	Error           string   `json:"error"`
	TxID            string   `json:"tx_id"`
	NPlus1          bool     `json:"n_plus_1"`
	SlowQuery       bool     `json:"slow_query"`
	NormalizedQuery string   `json:"normalized_query"`
}

func (e eventJSON) toEvent() proxy.Event {
	t, _ := time.Parse(time.RFC3339Nano, e.StartTime)
	return proxy.Event{
		ID:              e.ID,
		ConnID:          e.ConnID,
		Op:              proxy.OpFromString(e.Op),
		Query:           e.Query,
		Args:            e.Args,
		StartTime:       t,
		Duration:        time.Duration(e.DurationMs * float64(time.Millisecond)),
		RowsAffected:    e.RowsAffected,
		Error:           e.Error,
		TxID:            e.TxID,
		NPlus1:          e.NPlus1,
		SlowQuery:       e.SlowQuery,
		NormalizedQuery: e.NormalizedQuery,
	}
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case streamMsg:
		m.scanner = msg.scanner
		m.body = msg.body
		return m, recvEvent(msg.scanner, msg.body)

	case eventMsg:
		m.events = append(m.events, msg.Event)
		if m.view == viewList && m.follow {
			m.cursor = max(len(m.events)-1, 0)
		}
		return m, recvEvent(m.scanner, m.body)

	case errMsg:
		m.err = msg.Err
		return m, nil

	case explainResultMsg:
		m.explainPlan = msg.plan
		m.explainErr = msg.err
		return m, nil

	case editorResultMsg:
		if msg.err != nil || msg.query == "" {
			return m, nil
		}
		m.view = viewExplain
		m.explainPlan = ""
		m.explainErr = nil
		m.explainScroll = 0
		m.explainHScroll = 0
		m.explainMode = msg.mode
		m.explainQuery = msg.query
		m.explainArgs = msg.args
		return m, runExplain(m.client, m.target, msg.mode, msg.query, msg.args)

	case tea.KeyMsg:
		switch m.view {
		case viewExplain:
			return m.updateExplain(msg)
		case viewList:
			return m.updateList(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}
	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	if m.err != nil {
		return friendlyError(m.err, m.width)
	}

	if len(m.events) == 0 {
		return "Waiting for queries..."
	}

	switch m.view {
	case viewExplain:
		return m.renderExplain()
	case viewList:
	}

	footer := "q: quit  j/k: navigate  c/C: copy  x/X: explain/analyze"

	footerLines := strings.Count(footer, "\n") + 1
	listHeight := m.listHeight(footerLines)

	return strings.Join([]string{
		m.renderList(listHeight),
		m.renderPreview(),
		footer,
	}, "\n")
}

func (m Model) listHeight(footerLines int) int {
	extra := max(footerLines-1, 0)
	return max(m.height-12-extra, 3)
}

func (m Model) cursorEvent() *proxy.Event {
	if m.cursor < 0 || m.cursor >= len(m.events) {
		return nil
	}
	return &m.events[m.cursor]
}

func isLifecycleOp(ev proxy.Event) bool {
	switch ev.Op {
	case proxy.OpBegin, proxy.OpCommit, proxy.OpRollback:
		return true
	}
	return false
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "x", "X":
		return m.startExplain(explainModeFromKey(msg.String()))
	case "e", "E":
		return m.startEditExplain(explainModeFromKey(msg.String()))
	case "c", "C":
		return m.copyQuery(msg.String() == "C"), nil
	case "j", "down":
		return m.navigateCursor(msg.String()), nil
	case "k", "up":
		return m.navigateCursor(msg.String()), nil
	case "ctrl+d", "pgdown":
		return m.pageScroll(msg.String()), nil
	case "ctrl+u", "pgup":
		return m.pageScroll(msg.String()), nil
	}
	return m, nil
}

func (m Model) pageScroll(key string) Model {
	half := max(m.listHeight(1)/2, 1)
	switch key {
	case "ctrl+d", "pgdown":
		m.cursor = min(m.cursor+half, max(len(m.events)-1, 0))
		if len(m.events) > 0 && m.cursor == len(m.events)-1 {
			m.follow = true
		}
	case "ctrl+u", "pgup":
		m.cursor = max(m.cursor-half, 0)
		m.follow = false
	}
	return m
}

func (m Model) navigateCursor(key string) Model {
	switch key {
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
			m.follow = false
		}
	case "j", "down":
		if len(m.events) > 0 && m.cursor < len(m.events)-1 {
			m.cursor++
		}
		if len(m.events) > 0 && m.cursor == len(m.events)-1 {
			m.follow = true
		}
	}
	return m
}

func (m Model) copyQuery(withArgs bool) Model {
	ev := m.cursorEvent()
	if ev == nil || ev.Query == "" {
		return m
	}
	text := ev.Query
	if withArgs {
		text = query.Bind(text, ev.Args)
	}
	_ = clipboard.Copy(context.Background(), text)
	return m
}

func explainModeFromKey(key string) explain.Mode {
	switch key {
	case "X", "E":
		return explain.Analyze
	}
	return explain.Explain
}

func (m Model) startEditExplain(mode explain.Mode) (tea.Model, tea.Cmd) {
	ev := m.cursorEvent()
	if ev == nil || ev.Query == "" || isLifecycleOp(*ev) {
		return m, nil
	}
	return m, openEditor(ev.Query, ev.Args, mode)
}

func (m Model) startExplain(mode explain.Mode) (tea.Model, tea.Cmd) {
	ev := m.cursorEvent()
	if ev == nil || ev.Query == "" || isLifecycleOp(*ev) {
		return m, nil
	}

	m.view = viewExplain
	m.explainPlan = ""
	m.explainErr = nil
	m.explainScroll = 0
	m.explainHScroll = 0
	m.explainMode = mode
	m.explainQuery = ev.Query
	m.explainArgs = ev.Args
	return m, runExplain(m.client, m.target, mode, ev.Query, ev.Args)
}
