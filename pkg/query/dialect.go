package query

import (
	"fmt"
	"strings"
)

// MaterializeStyle is how a dialect expresses a pinned CTE.
type MaterializeStyle int

const (
	// MaterializeNone renders the CTE unhinted. The result is the same,
	// only the plan may be worse.
	MaterializeNone MaterializeStyle = iota
	// MaterializeKeyword renders WITH name AS MATERIALIZED (...).
	MaterializeKeyword
	// MaterializeHint renders an optimizer hint on every query block that
	// reads the CTE.
	MaterializeHint
)

// UpdateStyle is how a dialect joins a second table into an UPDATE.
type UpdateStyle int

const (
	// UpdateFrom is UPDATE t SET c = s.c FROM s WHERE ...
	UpdateFrom UpdateStyle = iota
	// UpdateMultiTable is UPDATE t, s SET t.c = s.c WHERE ...
	UpdateMultiTable
)

// WithPlacement is where the WITH clause of an INSERT ... SELECT goes.
type WithPlacement int

const (
	// WithBeforeInsert is WITH ... INSERT INTO t SELECT ...
	WithBeforeInsert WithPlacement = iota
	// WithInsideSelect is INSERT INTO t WITH ... SELECT ...
	WithInsideSelect
)

// Dialect is a strategy for compiling the statement tree to one engine's SQL.
type Dialect interface {
	Name() string
	QuoteIdentifier(name string) string
	// Placeholder returns the bind parameter marker for the n-th argument (1-based).
	Placeholder(n int) string
	Materialization() MaterializeStyle
	// MaterializeHint returns the optimizer hint pinning the named CTE.
	// Only called for MaterializeHint dialects.
	MaterializeHint(quotedName string) string
	UpdateStyle() UpdateStyle
	InsertWithPlacement() WithPlacement
	// MaxParams is the most bind parameters one statement may carry.
	MaxParams() int
}

// RowsPerBatch caps want so that a multi-row insert of width columns
// stays within the parameter limit of d. It never returns less than one.
func RowsPerBatch(d Dialect, width, want int) int {
	if width <= 0 {
		return max(want, 1)
	}
	return max(1, min(want, d.MaxParams()/width))
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case "postgresql", "postgres":
		return &PostgreSQL{}, nil
	case "mysql":
		return &MySQL{}, nil
	case "sqlite":
		return &SQLite{}, nil
	case "duckdb":
		return &DuckDB{}, nil
	case "ansi":
		return &ANSI{}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", name)
	}
}

// Compiled is a statement in a dialect's text with its bound arguments.
type Compiled struct {
	SQL  string
	Args []any
}

func (c Compiled) String() string {
	return c.SQL
}

func quoteWith(name string, quote string) string {
	return quote + strings.ReplaceAll(name, quote, quote+quote) + quote
}

// ANSI renders standard SQL with no materialization hint. It is the
// fallback for engines that cannot be told to pin a CTE.
type ANSI struct{}

var _ Dialect = (*ANSI)(nil)

func (d *ANSI) Name() string {
	return "ansi"
}

func (d *ANSI) QuoteIdentifier(name string) string {
	return quoteWith(name, `"`)
}

func (d *ANSI) Placeholder(int) string {
	return "?"
}

func (d *ANSI) Materialization() MaterializeStyle {
	return MaterializeNone
}

func (d *ANSI) MaterializeHint(string) string {
	return ""
}

func (d *ANSI) UpdateStyle() UpdateStyle {
	return UpdateFrom
}

func (d *ANSI) InsertWithPlacement() WithPlacement {
	return WithBeforeInsert
}

// MaxParams is the SQLite default before 3.32, the lowest common limit.
func (d *ANSI) MaxParams() int {
	return 999
}
