package packet

import "errors"

// Errors returned by Packet accessors. These are local/benign misuses,
// not connection-fatal — callers decide how to react.
var (
	// ErrNotAQuery is returned by Query when the packet is not a
	// ComQuery (MariaDB) or Query (PostgreSQL) message.
	ErrNotAQuery = errors.New("packet: not a query packet")
	// ErrNotApplicable is returned by SequenceID for non-MariaDB packets.
	ErrNotApplicable = errors.New("packet: not applicable to this dialect")
	// ErrInvalidPacketType is returned by Type when the packet's leading
	// byte(s) do not match any entry in the classification tables.
	ErrInvalidPacketType = errors.New("packet: invalid packet type")
	// ErrInvalidUTF8 is returned by Query when a query payload is not
	// valid UTF-8.
	ErrInvalidUTF8 = errors.New("packet: query payload is not valid utf-8")
)
