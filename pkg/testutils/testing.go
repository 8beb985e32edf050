// Package testutils contains some common utilities used exclusively
// by the test suite.
package testutils

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// MySQLDSN returns the DSN of a live MySQL server, or skips the test when
// MYSQL_DSN is unset.
func MySQLDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		t.Skip("MYSQL_DSN not set")
	}
	return dsn
}

// PostgresDSN returns the DSN of a live PostgreSQL server, or skips the
// test when POSTGRES_DSN is unset.
func PostgresDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	return dsn
}

// OpenSQLite opens a private in-memory SQLite database that is closed
// when the test ends. A single connection is used so every statement
// sees the same database.
func OpenSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// SQLiteFile returns a DSN for a file-backed SQLite database in a
// temporary directory, for tests that need more than one handle.
func SQLiteFile(t *testing.T) string {
	t.Helper()
	name := strings.ReplaceAll(strings.ToLower(t.Name()), "/", "_")
	return filepath.Join(t.TempDir(), name+".db")
}

// RunSQL executes stmt, failing the test on error.
func RunSQL(t *testing.T, db *sql.DB, stmt string, args ...any) {
	t.Helper()
	_, err := db.ExecContext(t.Context(), stmt, args...)
	assert.NoError(t, err, stmt)
}

// Keys returns the first column of every row of query as strings,
// in the order the query returns them.
func Keys(t *testing.T, db *sql.DB, query string) []string {
	t.Helper()
	rows, err := db.QueryContext(t.Context(), query)
	require.NoError(t, err)
	defer func() {
		_ = rows.Close()
	}()
	var keys []string
	for rows.Next() {
		var v any
		require.NoError(t, rows.Scan(&v))
		keys = append(keys, stringify(v))
	}
	require.NoError(t, rows.Err())
	return keys
}

// Count returns the result of a single-value integer query.
func Count(t *testing.T, db *sql.DB, query string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(t.Context(), query).Scan(&n))
	return n
}

func stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
