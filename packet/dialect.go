// Package packet implements the wire-format framing and classification
// for the two database dialects this proxy understands.
package packet

// Dialect identifies which wire protocol a Packet or Pipe speaks.
type Dialect int

const (
	// MariaDB is the MySQL/MariaDB client/server binary protocol.
	MariaDB Dialect = iota
	// PostgreSQL is the PostgreSQL frontend/backend protocol, version 3.
	PostgreSQL
)

func (d Dialect) String() string {
	switch d {
	case MariaDB:
		return "mariadb"
	case PostgreSQL:
		return "postgresql"
	default:
		return "unknown"
	}
}
