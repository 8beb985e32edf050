package query

import (
	"strconv"

	"github.com/lib/pq"
)

// PostgreSQL renders for PostgreSQL 12 and later, where a CTE is inlined
// unless it is marked MATERIALIZED. This matters most when the source is a
// foreign table: without the pin the planner pushes the key filter into a
// join that fetches every column of every remote row.
type PostgreSQL struct{}

var _ Dialect = (*PostgreSQL)(nil)

func (d *PostgreSQL) Name() string {
	return "postgresql"
}

func (d *PostgreSQL) QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

func (d *PostgreSQL) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (d *PostgreSQL) Materialization() MaterializeStyle {
	return MaterializeKeyword
}

func (d *PostgreSQL) MaterializeHint(string) string {
	return ""
}

func (d *PostgreSQL) UpdateStyle() UpdateStyle {
	return UpdateFrom
}

func (d *PostgreSQL) InsertWithPlacement() WithPlacement {
	return WithBeforeInsert
}

// The extended query protocol counts parameters in 16 bits.
func (d *PostgreSQL) MaxParams() int {
	return 65535
}
