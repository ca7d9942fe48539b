package packet

import "testing"

func TestMariaDBComQueryIdentity(t *testing.T) {
	frame := []byte{0x13, 0x00, 0x00, 0x00, 0x03}
	frame = append(frame, "SELECT 1 FROM DUAL"...)

	p := New(MariaDB, frame)

	if got := p.Size(); got != 4+0x13 {
		t.Fatalf("Size() = %d, want %d", got, 4+0x13)
	}
	typ, err := p.Type()
	if err != nil {
		t.Fatalf("Type() error: %v", err)
	}
	if typ != ComQuery {
		t.Fatalf("Type() = %v, want ComQuery", typ)
	}
	q, err := p.Query()
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if q != "SELECT 1 FROM DUAL" {
		t.Fatalf("Query() = %q, want %q", q, "SELECT 1 FROM DUAL")
	}
}

func TestPostgreSQLSyncVsParameterStatus(t *testing.T) {
	sync := []byte{'S', 0, 0, 0, 4}
	if typ, err := New(PostgreSQL, sync).Type(); err != nil || typ != Sync {
		t.Fatalf("Type() = %v, %v, want Sync, nil", typ, err)
	}

	paramStatus := []byte{'S', 0, 0, 0, 11, 'k', 0, 'v', 0, 0, 0}
	if typ, err := New(PostgreSQL, paramStatus).Type(); err != nil || typ != ParameterStatus {
		t.Fatalf("Type() = %v, %v, want ParameterStatus, nil", typ, err)
	}
}

func TestPostgreSQLStartupMessage(t *testing.T) {
	frame := []byte{0, 0, 0, 8, 0, 3, 0, 0}
	typ, err := New(PostgreSQL, frame).Type()
	if err != nil {
		t.Fatalf("Type() error: %v", err)
	}
	if typ != StartupMessage {
		t.Fatalf("Type() = %v, want StartupMessage", typ)
	}
}

func TestMariaDBErrorPacketConstruction(t *testing.T) {
	state := [5]byte{'4', '2', '0', '0', '0'}
	p := MariaDBError(1064, state, "Must be valid sql!")

	if p.bytes[3] != 1 {
		t.Fatalf("sequence id = %d, want 1", p.bytes[3])
	}
	if p.bytes[4] != 0xff {
		t.Fatalf("byte 4 = %#x, want 0xff", p.bytes[4])
	}
	if p.bytes[5] != 0x28 || p.bytes[6] != 0x04 {
		t.Fatalf("code bytes = %#x %#x, want 0x28 0x04", p.bytes[5], p.bytes[6])
	}
	if p.bytes[7] != '#' {
		t.Fatalf("byte 7 = %q, want '#'", p.bytes[7])
	}
	gotState := string(p.bytes[8:13])
	if gotState != "42000" {
		t.Fatalf("state = %q, want %q", gotState, "42000")
	}
	gotMsg := string(p.bytes[13:])
	if gotMsg != "Must be valid sql!" {
		t.Fatalf("msg = %q, want %q", gotMsg, "Must be valid sql!")
	}

	wantLen := len(p.bytes) - 4
	gotLen := int(p.bytes[0]) | int(p.bytes[1])<<8 | int(p.bytes[2])<<16
	if gotLen != wantLen {
		t.Fatalf("declared length = %d, want %d", gotLen, wantLen)
	}
}

func TestInvalidPacketType(t *testing.T) {
	if _, err := New(MariaDB, []byte{0, 0, 0, 0, 0x1b}).Type(); err != ErrInvalidPacketType {
		t.Fatalf("Type() error = %v, want ErrInvalidPacketType", err)
	}
	if _, err := New(PostgreSQL, []byte{'?', 0, 0, 0, 4}).Type(); err != ErrInvalidPacketType {
		t.Fatalf("Type() error = %v, want ErrInvalidPacketType", err)
	}
}

func TestQueryOnNonQueryPacket(t *testing.T) {
	p := New(MariaDB, []byte{0x01, 0x00, 0x00, 0x00, 0x01})
	if _, err := p.Query(); err != ErrNotAQuery {
		t.Fatalf("Query() error = %v, want ErrNotAQuery", err)
	}
}

func TestSequenceIDNotApplicableForPostgreSQL(t *testing.T) {
	p := New(PostgreSQL, []byte{'Q', 0, 0, 0, 5, 0})
	if _, err := p.SequenceID(); err != ErrNotApplicable {
		t.Fatalf("SequenceID() error = %v, want ErrNotApplicable", err)
	}
}
