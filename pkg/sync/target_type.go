package sync

import "github.com/block/keysync/pkg/dbconn"

// TargetType represents the type of a source or destination database.
type TargetType int

const (
	TargetTypeUnknown TargetType = iota
	TargetTypeMySQL
	TargetTypePostgreSQL
	TargetTypeSQLite
	TargetTypeDuckDB
)

// String returns the string representation of the target type.
// It is also the name dbconn, query and table use for the engine.
func (t TargetType) String() string {
	switch t {
	case TargetTypeMySQL:
		return dbconn.FlavorMySQL
	case TargetTypePostgreSQL:
		return dbconn.FlavorPostgreSQL
	case TargetTypeSQLite:
		return dbconn.FlavorSQLite
	case TargetTypeDuckDB:
		return dbconn.FlavorDuckDB
	default:
		return "unknown"
	}
}

// ParseTargetType parses a string into a TargetType
func ParseTargetType(s string) TargetType {
	switch s {
	case "mysql":
		return TargetTypeMySQL
	case "postgresql", "postgres":
		return TargetTypePostgreSQL
	case "sqlite":
		return TargetTypeSQLite
	case "duckdb":
		return TargetTypeDuckDB
	default:
		return TargetTypeUnknown
	}
}
