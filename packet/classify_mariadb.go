package packet

// mariaDBCommands maps the command byte at payload offset 0 (frame byte 4)
// to its Type. The range 0x1b-0x1d has no entry: those command bytes are
// unassigned and classify as ErrInvalidPacketType.
var mariaDBCommands = map[byte]Type{
	0x00: ComSleep,
	0x01: ComQuit,
	0x02: ComInitDB,
	0x03: ComQuery,
	0x04: ComFieldList,
	0x05: ComCreateDB,
	0x06: ComDropDB,
	0x07: ComRefresh,
	0x08: ComShutdown,
	0x09: ComStatistics,
	0x0a: ComProcessInfo,
	0x0b: ComConnect,
	0x0c: ComProcessKill,
	0x0d: ComDebug,
	0x0e: ComPing,
	0x0f: ComTime,
	0x10: ComDelayedInsert,
	0x11: ComChangeUser,
	0x12: ComBinlogDump,
	0x13: ComTableDump,
	0x14: ComConnectOut,
	0x15: ComRegisterSlave,
	0x16: ComStmtPrepare,
	0x17: ComStmtExecute,
	0x18: ComStmtSendLongData,
	0x19: ComStmtClose,
	0x1a: ComStmtReset,
	0x1e: ComBinlogDumpGTID,
	0x1f: ComResetConnection,
}

// classifyMariaDB classifies a complete MariaDB frame (header + payload).
func classifyMariaDB(bytes []byte) (Type, error) {
	if len(bytes) < 5 {
		return 0, ErrInvalidPacketType
	}
	t, ok := mariaDBCommands[bytes[4]]
	if !ok {
		return 0, ErrInvalidPacketType
	}
	return t, nil
}
