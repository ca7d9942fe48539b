// Package handler defines the contract the pipe invokes on every
// reassembled packet. Implementations are external collaborators of the
// core; handlers/ holds the reference implementations.
package handler

import (
	"context"

	"github.com/henrypark/dbproxy/packet"
)

// Direction identifies which of a connection's two pipes a packet was
// reassembled on.
type Direction int

const (
	// Forward is client-to-upstream traffic; Handler.HandleRequest is called.
	Forward Direction = iota
	// Backward is upstream-to-client traffic; Handler.HandleResponse is called.
	Backward
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// Handler is the pluggable packet handler contract. Both methods may block
// on external I/O; the owning pipe does not read its next batch of bytes
// until the current call returns. Returning a packet whose Size() == 0
// drops the message. Any non-empty packet returned must be a complete,
// well-framed frame in the same dialect as the input — the pipe does not
// renumber MariaDB sequence ids or recompute PostgreSQL lengths after a
// handler transforms a packet.
type Handler interface {
	HandleRequest(ctx context.Context, p *packet.Packet) (*packet.Packet, error)
	HandleResponse(ctx context.Context, p *packet.Packet) (*packet.Packet, error)
}
