// Package proxy holds the captured-event model shared by handlers/capture,
// the web dashboard, and the TUI. The listener and connection orchestration
// that used to live here now belongs to server.Server and handler.Handler;
// this package keeps only the domain event those collaborators exchange.
package proxy

import (
	"fmt"
	"time"
)

// Op represents the type of database operation captured.
type Op int32

const (
	OpQuery    Op = iota // Simple (text-protocol) query
	OpExec               // Non-query execution
	OpPrepare            // Prepared statement parse
	OpBind               // Parameter binding
	OpExecute            // Extended-protocol execute
	OpBegin              // Transaction begin
	OpCommit             // Transaction commit
	OpRollback           // Transaction rollback
)

func (o Op) String() string {
	switch o {
	case OpQuery:
		return "Query"
	case OpExec:
		return "Exec"
	case OpPrepare:
		return "Prepare"
	case OpBind:
		return "Bind"
	case OpExecute:
		return "Execute"
	case OpBegin:
		return "Begin"
	case OpCommit:
		return "Commit"
	case OpRollback:
		return "Rollback"
	}
	return fmt.Sprintf("UnknownOp(%d)", o)
}

// OpFromString parses the string produced by Op.String, for decoding events
// carried over the wire as JSON. Unrecognized names decode to OpQuery.
func OpFromString(s string) Op {
	switch s {
	case "Exec":
		return OpExec
	case "Prepare":
		return OpPrepare
	case "Bind":
		return OpBind
	case "Execute":
		return OpExecute
	case "Begin":
		return OpBegin
	case "Commit":
		return OpCommit
	case "Rollback":
		return OpRollback
	}
	return OpQuery
}

// Event represents a captured database query event.
type Event struct {
	ID              string
	ConnID          string
	Op              Op
	Query           string
	Args            []string
	StartTime       time.Time
	Duration        time.Duration
	RowsAffected    int64
	Error           string
	TxID            string
	NPlus1          bool
	SlowQuery       bool
	NormalizedQuery string
}
