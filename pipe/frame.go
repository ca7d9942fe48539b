package pipe

import (
	"encoding/binary"

	"github.com/henrypark/dbproxy/packet"
)

// tryFrame looks for one complete frame at the head of buf and returns its
// total length. ok is false when buf does not yet hold a complete frame,
// but total is still the frame's declared length whenever enough of the
// header has been buffered to compute it, so callers can reject an
// oversized frame before its body has fully arrived.
func tryFrame(dialect packet.Dialect, buf []byte) (total int, ok bool) {
	if dialect == packet.MariaDB {
		return tryFrameMariaDB(buf)
	}
	return tryFramePostgreSQL(buf)
}

// tryFrameMariaDB requires at least 4 buffered bytes: a 3-byte
// little-endian payload length followed by the sequence id. When the
// header is parsed but the full frame has not yet arrived, it still
// returns the computed total so the caller can apply a size cap before
// buffering the rest of the frame.
func tryFrameMariaDB(buf []byte) (int, bool) {
	if len(buf) < 4 {
		return 0, false
	}
	l := int(buf[0]) | int(buf[1])<<8 | int(buf[2])<<16
	total := 4 + l
	if len(buf) < total {
		return total, false
	}
	return total, true
}

// tryFramePostgreSQL requires at least 5 buffered bytes. A recognized tag
// byte is followed by a 4-byte big-endian length that includes itself; an
// unrecognized leading byte means an untagged startup-phase message whose
// first 4 bytes are the total frame length. When the header is parsed but
// the full frame has not yet arrived, it still returns the computed total
// so the caller can apply a size cap before buffering the rest of the
// frame.
func tryFramePostgreSQL(buf []byte) (int, bool) {
	if len(buf) < 5 {
		return 0, false
	}
	var total int
	if packet.IsPostgresTag(buf[0]) {
		l := binary.BigEndian.Uint32(buf[1:5])
		total = 1 + int(l)
	} else {
		l := binary.BigEndian.Uint32(buf[0:4])
		total = int(l)
	}
	if len(buf) < total {
		return total, false
	}
	return total, true
}
