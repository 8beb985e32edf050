package revision

import (
	"errors"
	"fmt"
	"strings"

	"github.com/block/keysync/pkg/query"
)

var ErrUnsupportedOp = errors.New("operation is not supported by dialect")

// Op is one schema change of a revision.
type Op interface {
	// Statements renders the change for dialect d.
	Statements(d query.Dialect) ([]string, error)
}

// SQL is a raw statement, run as written.
type SQL struct {
	Statement string `yaml:"statement"`
}

var _ Op = (*SQL)(nil)

func (o *SQL) Statements(query.Dialect) ([]string, error) {
	if strings.TrimSpace(o.Statement) == "" {
		return nil, errors.New("sql: statement is empty")
	}
	return []string{o.Statement}, nil
}

// AddColumn adds a column to a table.
type AddColumn struct {
	Schema   string `yaml:"schema,omitempty"`
	Table    string `yaml:"table"`
	Column   string `yaml:"column"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable"`
	Default  string `yaml:"default,omitempty"` // SQL expression
}

var _ Op = (*AddColumn)(nil)

func (o *AddColumn) Statements(d query.Dialect) ([]string, error) {
	if o.Table == "" || o.Column == "" || o.Type == "" {
		return nil, errors.New("add_column: table, column and type are required")
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "ALTER TABLE %s ADD COLUMN %s %s", qualify(d, o.Schema, o.Table), d.QuoteIdentifier(o.Column), o.Type)
	if !o.Nullable {
		sb.WriteString(" NOT NULL")
	}
	if o.Default != "" {
		sb.WriteString(" DEFAULT " + o.Default)
	}
	return []string{sb.String()}, nil
}

// AddUniqueConstraint adds a named unique constraint. NullsNotDistinct
// makes NULLs compare equal, which only PostgreSQL supports.
//
// SQLite and DuckDB cannot add constraints to an existing table, so the
// constraint becomes a unique index of the same name.
type AddUniqueConstraint struct {
	Name             string   `yaml:"name"`
	Schema           string   `yaml:"schema,omitempty"`
	Table            string   `yaml:"table"`
	Columns          []string `yaml:"columns"`
	NullsNotDistinct bool     `yaml:"nulls_not_distinct"`
}

var _ Op = (*AddUniqueConstraint)(nil)

func (o *AddUniqueConstraint) Statements(d query.Dialect) ([]string, error) {
	if o.Name == "" || o.Table == "" || len(o.Columns) == 0 {
		return nil, errors.New("add_unique_constraint: name, table and columns are required")
	}
	if o.NullsNotDistinct && d.Name() != "postgresql" {
		return nil, fmt.Errorf("%w: NULLS NOT DISTINCT on %s", ErrUnsupportedOp, d.Name())
	}
	cols := make([]string, len(o.Columns))
	for i, c := range o.Columns {
		cols[i] = d.QuoteIdentifier(c)
	}
	columnList := "(" + strings.Join(cols, ", ") + ")"
	switch d.Name() {
	case "sqlite", "duckdb":
		return []string{fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s %s",
			qualify(d, o.Schema, o.Name), qualify(d, o.Schema, o.Table), columnList)}, nil
	}
	unique := "UNIQUE"
	if o.NullsNotDistinct {
		unique += " NULLS NOT DISTINCT"
	}
	return []string{fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s %s",
		qualify(d, o.Schema, o.Table), d.QuoteIdentifier(o.Name), unique, columnList)}, nil
}

// DropConstraint drops a named constraint, or the unique index standing
// in for it.
type DropConstraint struct {
	Name   string `yaml:"name"`
	Schema string `yaml:"schema,omitempty"`
	Table  string `yaml:"table"`
}

var _ Op = (*DropConstraint)(nil)

func (o *DropConstraint) Statements(d query.Dialect) ([]string, error) {
	if o.Name == "" || o.Table == "" {
		return nil, errors.New("drop_constraint: name and table are required")
	}
	switch d.Name() {
	case "sqlite", "duckdb":
		return []string{"DROP INDEX " + qualify(d, o.Schema, o.Name)}, nil
	case "mysql":
		// Unique constraints are indexes in MySQL.
		return []string{fmt.Sprintf("ALTER TABLE %s DROP INDEX %s", qualify(d, o.Schema, o.Table), d.QuoteIdentifier(o.Name))}, nil
	}
	return []string{fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", qualify(d, o.Schema, o.Table), d.QuoteIdentifier(o.Name))}, nil
}

func qualify(d query.Dialect, schema, name string) string {
	if schema == "" {
		return d.QuoteIdentifier(name)
	}
	return d.QuoteIdentifier(schema) + "." + d.QuoteIdentifier(name)
}
