// Package capture implements a Handler that decodes query traffic into
// proxy.Event values and publishes them to a broker.Broker, without
// altering a single byte that crosses the wire. It understands both the
// MariaDB command stream and the PostgreSQL extended-query sub-protocol.
package capture

import (
	"context"
	"encoding/binary"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/henrypark/dbproxy/broker"
	"github.com/henrypark/dbproxy/detect"
	"github.com/henrypark/dbproxy/handler"
	"github.com/henrypark/dbproxy/packet"
	"github.com/henrypark/dbproxy/proxy"
	"github.com/henrypark/dbproxy/query"
)

// MariaDB response packet type indicators (first byte of payload).
const (
	iOK  byte = 0x00
	iERR byte = 0xFF
	iEOF byte = 0xFE
)

// responseState tracks where a MariaDB connection is in a response sequence.
type responseState int

const (
	stateIdle responseState = iota
	stateFirstResp
	stateColumnDefs
	stateRowData
	stateSkipPrepare
)

type mariaPreparedStmt struct {
	query     string
	numParams int
}

// connState is the per-connection capture state a shared Handler keys by
// handler.ConnID. It is evicted by Handler.Forget, which server.Server
// calls when the connection's pipes have shut down.
type connState struct {
	mariaStmts  map[uint32]mariaPreparedStmt
	lastCommand byte
	lastQuery   string
	state       responseState
	skip        int

	pgStmts      map[string]string
	lastParse    string
	lastBindArgs []string
	lastBindStmt string

	activeTxID string
	nextID     uint64
	pending    *proxy.Event
}

func newConnState() *connState {
	return &connState{
		mariaStmts: make(map[uint32]mariaPreparedStmt),
		pgStmts:    make(map[string]string),
	}
}

func (c *connState) generateID(connID string) string {
	c.nextID++
	return connID + "-" + strconv.FormatUint(c.nextID, 10)
}

// Handler captures query events from both directions of every connection it
// is attached to. One Handler may be shared across many connections; it
// keys its mutable state by the connection id threaded through context by
// server.Server.
type Handler struct {
	broker      *broker.Broker
	detector    *detect.Detector
	slowQueryAt time.Duration

	mu    sync.Mutex
	conns map[string]*connState
}

// New returns a Handler that publishes captured events to b, detecting
// N+1 patterns with the given threshold/window/cooldown and flagging any
// query whose duration reaches slowQueryAt. A zero slowQueryAt disables
// slow-query flagging.
func New(b *broker.Broker, threshold int, window, cooldown, slowQueryAt time.Duration) *Handler {
	return &Handler{
		broker:      b,
		detector:    detect.New(threshold, window, cooldown),
		slowQueryAt: slowQueryAt,
		conns:       make(map[string]*connState),
	}
}

// Forget drops capture state for a connection id. server.Server calls it on
// connection teardown, which bounds memory for long-lived servers.
func (h *Handler) Forget(connID string) {
	h.mu.Lock()
	delete(h.conns, connID)
	h.mu.Unlock()
}

func (h *Handler) stateFor(connID string) *connState {
	h.mu.Lock()
	defer h.mu.Unlock()
	cs, ok := h.conns[connID]
	if !ok {
		cs = newConnState()
		h.conns[connID] = cs
	}
	return cs
}

func (h *Handler) HandleRequest(ctx context.Context, p *packet.Packet) (*packet.Packet, error) {
	connID, _ := handler.ConnID(ctx)
	cs := h.stateFor(connID)

	switch p.Dialect() {
	case packet.MariaDB:
		h.captureMariaDBRequest(cs, connID, p.Bytes())
	case packet.PostgreSQL:
		h.capturePostgresRequest(cs, connID, p.Bytes())
	}
	return p, nil
}

func (h *Handler) HandleResponse(ctx context.Context, p *packet.Packet) (*packet.Packet, error) {
	connID, _ := handler.ConnID(ctx)
	cs := h.stateFor(connID)

	switch p.Dialect() {
	case packet.MariaDB:
		h.captureMariaDBResponse(cs, p.Bytes())
	case packet.PostgreSQL:
		h.capturePostgresResponse(cs, p.Bytes())
	}
	return p, nil
}

// ---------------- MariaDB ----------------

func mariaPayloadByte(pkt []byte) byte {
	if len(pkt) <= 4 {
		return 0
	}
	return pkt[4]
}

func mariaPayloadLen(pkt []byte) int {
	if len(pkt) < 3 {
		return 0
	}
	return int(pkt[0]) | int(pkt[1])<<8 | int(pkt[2])<<16
}

func (h *Handler) captureMariaDBRequest(cs *connState, connID string, pkt []byte) {
	if mariaPayloadLen(pkt) < 1 {
		return
	}
	cmd := mariaPayloadByte(pkt)
	payload := pkt[4:]

	switch cmd {
	case 0x03: // COM_QUERY
		q := string(payload[1:])
		cs.lastCommand = cmd
		cs.lastQuery = q
		cs.state = stateFirstResp

		r := cs.detectTx(q, proxy.OpQuery)
		ev := proxy.Event{
			ID:        cs.generateID(connID),
			ConnID:    connID,
			Op:        r.op,
			Query:     q,
			StartTime: time.Now(),
			TxID:      r.txID,
		}
		cs.pending = &ev

	case 0x16: // COM_STMT_PREPARE
		cs.lastCommand = cmd
		cs.lastQuery = string(payload[1:])
		cs.state = stateFirstResp

	case 0x17: // COM_STMT_EXECUTE
		cs.lastCommand = cmd
		cs.state = stateFirstResp
		if len(payload) >= 5 {
			stmtID := binary.LittleEndian.Uint32(payload[1:5])
			stmt := cs.mariaStmts[stmtID]
			cs.lastQuery = stmt.query

			r := cs.detectTx(stmt.query, proxy.OpExecute)
			ev := proxy.Event{
				ID:        cs.generateID(connID),
				ConnID:    connID,
				Op:        r.op,
				Query:     stmt.query,
				StartTime: time.Now(),
				TxID:      r.txID,
			}
			cs.pending = &ev
		}

	case 0x19: // COM_STMT_CLOSE
		if len(payload) >= 5 {
			delete(cs.mariaStmts, binary.LittleEndian.Uint32(payload[1:5]))
		}
	}
}

func (h *Handler) captureMariaDBResponse(cs *connState, pkt []byte) {
	switch cs.state {
	case stateIdle:
		return
	case stateFirstResp:
		h.mariaFirstResponse(cs, pkt)
	case stateColumnDefs:
		if isMariaEOF(pkt) {
			cs.state = stateRowData
		}
	case stateRowData:
		if isMariaEOF(pkt) {
			h.finalize(cs, nil)
			cs.state = stateIdle
		} else if mariaPayloadByte(pkt) == iERR {
			h.finalize(cs, mariaErrMessage(pkt))
			cs.state = stateIdle
		}
	case stateSkipPrepare:
		cs.skip--
		if cs.skip <= 0 {
			cs.state = stateIdle
		}
	}
}

func (h *Handler) mariaFirstResponse(cs *connState, pkt []byte) {
	first := mariaPayloadByte(pkt)
	switch {
	case first == iOK && cs.lastCommand != 0x16:
		h.finalize(cs, nil)
		cs.state = stateIdle
	case first == iERR:
		h.finalize(cs, mariaErrMessage(pkt))
		cs.state = stateIdle
	case first == iOK && cs.lastCommand == 0x16:
		h.mariaStmtPrepareOK(cs, pkt)
	default:
		cs.state = stateColumnDefs
	}
}

func (h *Handler) mariaStmtPrepareOK(cs *connState, pkt []byte) {
	payload := pkt[4:]
	if len(payload) < 9 {
		cs.state = stateIdle
		return
	}
	stmtID := binary.LittleEndian.Uint32(payload[1:5])
	numColumns := binary.LittleEndian.Uint16(payload[5:7])
	numParams := binary.LittleEndian.Uint16(payload[7:9])
	cs.mariaStmts[stmtID] = mariaPreparedStmt{query: cs.lastQuery, numParams: int(numParams)}

	skip := 0
	if numParams > 0 {
		skip += int(numParams) + 1
	}
	if numColumns > 0 {
		skip += int(numColumns) + 1
	}
	cs.skip = skip
	if skip > 0 {
		cs.state = stateSkipPrepare
	} else {
		cs.state = stateIdle
	}
}

func isMariaEOF(pkt []byte) bool {
	return mariaPayloadByte(pkt) == iEOF && mariaPayloadLen(pkt) < 9
}

func mariaErrMessage(pkt []byte) string {
	payload := pkt[4:]
	if len(payload) > 9 && payload[3] == '#' {
		return string(payload[9:])
	}
	if len(payload) > 3 {
		return string(payload[3:])
	}
	return ""
}

// ---------------- PostgreSQL ----------------

func (h *Handler) capturePostgresRequest(cs *connState, connID string, pkt []byte) {
	if len(pkt) < 5 {
		return
	}
	tag := pkt[0]
	body := pkt[5:]

	switch tag {
	case 'Q': // simple query
		q := string(body[:max(0, len(body)-1)]) // strip trailing NUL
		r := cs.detectTx(q, proxy.OpQuery)
		ev := proxy.Event{
			ID:        cs.generateID(connID),
			ConnID:    connID,
			Op:        r.op,
			Query:     q,
			StartTime: time.Now(),
			TxID:      r.txID,
		}
		h.publish(cs, ev)

	case 'P': // Parse
		name, rest := readCString(body)
		q, _ := readCString(rest)
		cs.lastParse = q
		if name != "" {
			cs.pgStmts[name] = q
		}

	case 'B': // Bind
		_, rest := readCString(body)    // portal name
		stmt, rest2 := readCString(rest) // prepared statement name
		cs.lastBindStmt = stmt
		cs.lastBindArgs = parseBindParams(rest2)

	case 'E': // Execute
		q := cs.lastParse
		if cs.lastBindStmt != "" {
			if stored, ok := cs.pgStmts[cs.lastBindStmt]; ok {
				q = stored
			}
		}
		r := cs.detectTx(q, proxy.OpExecute)
		ev := proxy.Event{
			ID:        cs.generateID(connID),
			ConnID:    connID,
			Op:        r.op,
			Query:     q,
			Args:      cs.lastBindArgs,
			StartTime: time.Now(),
			TxID:      r.txID,
		}
		cs.pending = &ev

	case 'C': // Close
		if len(body) > 0 && body[0] == 'S' {
			name, _ := readCString(body[1:])
			delete(cs.pgStmts, name)
		}
	}
}

func (h *Handler) capturePostgresResponse(cs *connState, pkt []byte) {
	if len(pkt) < 1 {
		return
	}
	switch pkt[0] {
	case 'Z': // ReadyForQuery: a simple-query event publishes immediately on
		// request, so nothing to finalize here unless an Execute is pending.
		if cs.pending != nil {
			h.finalize(cs, "")
		}
	case 'E': // ErrorResponse
		if cs.pending != nil {
			h.finalize(cs, "error")
		}
	}
}

// readCString reads a NUL-terminated string from b, returning it (without
// the terminator) and the remainder of b.
func readCString(b []byte) (string, []byte) {
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), b[i+1:]
		}
	}
	return string(b), nil
}

// parseBindParams extracts the parameter values from a Bind message body.
// Text-format params are returned as their text; binary-format params are
// rendered as "?".
func parseBindParams(b []byte) []string {
	if len(b) < 2 {
		return nil
	}
	numFormats := int(binary.BigEndian.Uint16(b[0:2]))
	off := 2 + numFormats*2
	if off+2 > len(b) {
		return nil
	}
	// Zero format codes means all text; one code applies to every param.
	isBinary := func(i int) bool {
		switch {
		case numFormats == 1:
			return binary.BigEndian.Uint16(b[2:4]) == 1
		case i < numFormats:
			return binary.BigEndian.Uint16(b[2+i*2:4+i*2]) == 1
		}
		return false
	}
	numParams := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2

	args := make([]string, numParams)
	for i := 0; i < numParams; i++ {
		if off+4 > len(b) {
			return args
		}
		length := int32(binary.BigEndian.Uint32(b[off : off+4]))
		off += 4
		if length < 0 {
			args[i] = "NULL"
			continue
		}
		end := off + int(length)
		if end > len(b) {
			args[i] = "?"
			break
		}
		if isBinary(i) {
			args[i] = "?"
		} else {
			args[i] = string(b[off:end])
		}
		off = end
	}
	return args
}

// ---------------- shared finalize/tx detection ----------------

type txDetectResult struct {
	txID string
	op   proxy.Op
}

func (c *connState) detectTx(sql string, defaultOp proxy.Op) txDetectResult {
	upper := strings.ToUpper(strings.TrimSpace(sql))
	switch {
	case strings.HasPrefix(upper, "BEGIN"), strings.HasPrefix(upper, "START TRANSACTION"):
		c.activeTxID = uuid.New().String()
		return txDetectResult{txID: c.activeTxID, op: proxy.OpBegin}
	case strings.HasPrefix(upper, "COMMIT"):
		prev := c.activeTxID
		c.activeTxID = ""
		return txDetectResult{txID: prev, op: proxy.OpCommit}
	case strings.HasPrefix(upper, "ROLLBACK"):
		prev := c.activeTxID
		c.activeTxID = ""
		return txDetectResult{txID: prev, op: proxy.OpRollback}
	}
	return txDetectResult{txID: c.activeTxID, op: defaultOp}
}

func (h *Handler) finalize(cs *connState, errMsg string) {
	ev := cs.pending
	cs.pending = nil
	if ev == nil {
		return
	}
	ev.Error = errMsg
	h.publish(cs, *ev)
}

func (h *Handler) publish(cs *connState, ev proxy.Event) {
	ev.Duration = time.Since(ev.StartTime)
	ev.NormalizedQuery = query.Normalize(query.Bind(ev.Query, ev.Args))
	if h.slowQueryAt > 0 && ev.Duration >= h.slowQueryAt {
		ev.SlowQuery = true
	}

	if ev.NormalizedQuery != "" {
		result := h.detector.Record(ev.NormalizedQuery, time.Now())
		ev.NPlus1 = result.Matched
		if result.Alert != nil {
			log.Printf("capture: possible N+1: %q seen %d times", result.Alert.Query, result.Alert.Count)
		}
	}

	h.broker.Publish(ev)
}
