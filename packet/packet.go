package packet

import "unicode/utf8"

// Packet is a framed protocol message. It exclusively owns its bytes: once
// constructed, a Packet's frame is never partial, and bytes.len() always
// equals the frame length implied by its dialect's header.
type Packet struct {
	dialect Dialect
	bytes   []byte
}

// New constructs a Packet from a complete, already-framed byte slice. There
// is no validation beyond the caller having just framed the bytes; Pipe
// calls this once a full frame is in hand.
func New(dialect Dialect, bytes []byte) *Packet {
	return &Packet{dialect: dialect, bytes: bytes}
}

// Dialect returns the packet's wire dialect.
func (p *Packet) Dialect() Dialect {
	return p.dialect
}

// Bytes returns the packet's complete on-the-wire frame.
func (p *Packet) Bytes() []byte {
	return p.bytes
}

// Size returns the length of the frame in bytes.
func (p *Packet) Size() int {
	return len(p.bytes)
}

// SequenceID returns the MariaDB sequence id carried at frame byte 3. It
// returns ErrNotApplicable for PostgreSQL packets.
func (p *Packet) SequenceID() (byte, error) {
	if p.dialect != MariaDB {
		return 0, ErrNotApplicable
	}
	if len(p.bytes) < 4 {
		return 0, ErrInvalidPacketType
	}
	return p.bytes[3], nil
}

// Type classifies the packet using the dialect's classification table. Any
// byte or combination outside the table returns ErrInvalidPacketType.
func (p *Packet) Type() (Type, error) {
	switch p.dialect {
	case MariaDB:
		return classifyMariaDB(p.bytes)
	case PostgreSQL:
		return classifyPostgreSQL(p.bytes)
	default:
		return 0, ErrInvalidPacketType
	}
}

// Query returns the query text carried by a MariaDB ComQuery or PostgreSQL
// Query packet. Any other packet type returns ErrNotAQuery. A payload that
// is not valid UTF-8 is reported, not silently replaced.
func (p *Packet) Query() (string, error) {
	t, err := p.Type()
	if err != nil {
		return "", ErrNotAQuery
	}
	isQuery := (p.dialect == MariaDB && t == ComQuery) || (p.dialect == PostgreSQL && t == Query)
	if !isQuery {
		return "", ErrNotAQuery
	}
	if len(p.bytes) < 5 {
		return "", ErrNotAQuery
	}
	payload := p.bytes[5:]
	if !utf8.Valid(payload) {
		return "", ErrInvalidUTF8
	}
	return string(payload), nil
}

// MariaDBError constructs a well-formed MariaDB ERR packet. Payload layout
// is 0xff, code (2 bytes LE), '#', state (5 bytes), msg bytes. Header
// layout is a 3-byte LE payload length followed by sequence id 1.
func MariaDBError(code uint16, state [5]byte, msg string) *Packet {
	payload := make([]byte, 0, 9+len(msg))
	payload = append(payload, 0xff)
	payload = append(payload, byte(code), byte(code>>8))
	payload = append(payload, '#')
	payload = append(payload, state[:]...)
	payload = append(payload, msg...)

	frame := make([]byte, 4+len(payload))
	l := len(payload)
	frame[0] = byte(l)
	frame[1] = byte(l >> 8)
	frame[2] = byte(l >> 16)
	frame[3] = 1
	copy(frame[4:], payload)

	return New(MariaDB, frame)
}
