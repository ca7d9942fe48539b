package packet

import "encoding/binary"

// postgresSingleTag maps tag bytes that are not overloaded to a single Type.
var postgresSingleTag = map[byte]Type{
	'K': BackendKeyData,
	'B': Bind,
	'2': BindComplete,
	'3': CloseComplete,
	'd': CopyData,
	'c': CopyDone,
	'f': CopyFail,
	'G': CopyInResponse,
	'W': CopyBothResponse,
	'I': EmptyQueryResponse,
	'F': FunctionCall,
	'V': FunctionCallResponse,
	'p': AuthenticationResponse,
	'v': NegotiateProtocolVersion,
	'n': NoData,
	'N': NoticeResponse,
	'A': NotificationResponse,
	't': ParameterDescription,
	'P': Parse,
	'1': ParseComplete,
	's': PortalSuspended,
	'Q': Query,
	'Z': ReadyForQuery,
	'T': RowDescription,
	'X': Terminate,
}

// postgresAuthSubtypes maps the u32 subtype carried by an AuthenticationXXX
// message (tag 'R') to its Type.
var postgresAuthSubtypes = map[uint32]Type{
	0:  AuthenticationOk,
	2:  AuthenticationKerberosV5,
	3:  AuthenticationCleartextPassword,
	5:  AuthenticationMD5Password,
	6:  AuthenticationSCMCredential,
	7:  AuthenticationGSS,
	8:  AuthenticationGSSContinue,
	9:  AuthenticationSSPI,
	10: AuthenticationSASL,
	11: AuthenticationSASLContinue,
	12: AuthenticationSASLFinal,
}

// postgresErrorFields is the set of first-payload-byte values that identify
// an ErrorResponse (as opposed to an Execute message, both tagged 'E').
var postgresErrorFields = map[byte]bool{
	'S': true, 'V': true, 'C': true, 'M': true, 'D': true, 'H': true,
	'P': true, 'p': true, 'q': true, 'W': true, 's': true, 't': true,
	'c': true, 'd': true, 'n': true, 'F': true, 'L': true, 'R': true,
}

// postgresTagChars is the set of recognized leading tag bytes. A leading
// byte outside this set means the frame is an untagged startup-phase
// message, not that classification failed.
var postgresTagChars = buildPostgresTagChars()

func buildPostgresTagChars() map[byte]bool {
	set := make(map[byte]bool, len(postgresSingleTag)+6)
	for tag := range postgresSingleTag {
		set[tag] = true
	}
	set['R'] = true
	set['C'] = true
	set['D'] = true
	set['E'] = true
	set['H'] = true
	set['S'] = true
	return set
}

// IsPostgresTag reports whether b is a recognized PostgreSQL message tag
// byte, used by the pipe to decide which framing rule applies.
func IsPostgresTag(b byte) bool {
	return postgresTagChars[b]
}

// classifyPostgreSQL classifies a complete PostgreSQL frame (tagged or
// untagged startup-phase message).
func classifyPostgreSQL(bytes []byte) (Type, error) {
	if len(bytes) < 5 {
		return classifyPostgreSQLUntagged(bytes)
	}
	tag := bytes[0]
	switch tag {
	case 'R':
		if len(bytes) < 9 {
			return 0, ErrInvalidPacketType
		}
		subtype := binary.BigEndian.Uint32(bytes[5:9])
		t, ok := postgresAuthSubtypes[subtype]
		if !ok {
			return 0, ErrInvalidPacketType
		}
		return t, nil
	case 'C':
		if isCloseOrDescribe(bytes) {
			return CloseMessage, nil
		}
		return CommandComplete, nil
	case 'D':
		if isCloseOrDescribe(bytes) {
			return DescribeMessage, nil
		}
		return DataRow, nil
	case 'E':
		if len(bytes) < 6 {
			return 0, ErrInvalidPacketType
		}
		if postgresErrorFields[bytes[5]] {
			return ErrorResponse, nil
		}
		return Execute, nil
	case 'H':
		if postgresLength(bytes) == 4 {
			return Flush, nil
		}
		return CopyOutResponse, nil
	case 'S':
		if postgresLength(bytes) == 4 {
			return Sync, nil
		}
		return ParameterStatus, nil
	}
	if t, ok := postgresSingleTag[tag]; ok {
		return t, nil
	}
	return classifyPostgreSQLUntagged(bytes)
}

// isCloseOrDescribe applies the shared 'C'/'D' discriminator: the first
// payload byte (frame byte 5) is 'S' (statement) or 'P' (portal).
func isCloseOrDescribe(bytes []byte) bool {
	if len(bytes) < 6 {
		return false
	}
	return bytes[5] == 'S' || bytes[5] == 'P'
}

// postgresLength reads the tagged frame's 4-byte big-endian length field.
func postgresLength(bytes []byte) uint32 {
	return binary.BigEndian.Uint32(bytes[1:5])
}

// classifyPostgreSQLUntagged handles the startup-phase family of messages,
// which carry no leading tag byte: the first 4 bytes are the total frame
// length, followed directly by a 4-byte payload discriminator.
func classifyPostgreSQLUntagged(bytes []byte) (Type, error) {
	if len(bytes) < 8 {
		return 0, ErrInvalidPacketType
	}
	length := binary.BigEndian.Uint32(bytes[0:4])
	payload := binary.BigEndian.Uint32(bytes[4:8])
	switch {
	case payload == 196608:
		return StartupMessage, nil
	case length == 16 && payload == 80877102:
		return CancelRequest, nil
	case length == 8 && payload == 80877103:
		return SSLRequest, nil
	case length == 8 && payload == 80877104:
		return GSSENCRequest, nil
	default:
		return 0, ErrInvalidPacketType
	}
}
