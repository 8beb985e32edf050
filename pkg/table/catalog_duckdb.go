package table

import (
	"context"
	"database/sql"
	"fmt"
)

// DuckDBCatalog reads metadata from DuckDB. Columns come from
// information_schema, the key from duckdb_constraints(). Tables of an
// attached postgres database are visible under the attached catalog name.
type DuckDBCatalog struct{}

var _ Catalog = (*DuckDBCatalog)(nil)

func (c *DuckDBCatalog) Name() string {
	return "duckdb"
}

func (c *DuckDBCatalog) Describe(ctx context.Context, db *sql.DB, schema, tableName string) ([]Column, []string, error) {
	if schema == "" {
		schema = "main"
	}
	rows, err := db.QueryContext(ctx, `SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`, schema, tableName)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read columns of %s: %w", tableName, err)
	}
	columns, err := scanColumns(rows)
	if err != nil {
		return nil, nil, err
	}
	rows, err = db.QueryContext(ctx, `SELECT UNNEST(constraint_column_names)
		FROM duckdb_constraints()
		WHERE schema_name = ? AND table_name = ? AND constraint_type = 'PRIMARY KEY'`, schema, tableName)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read primary key of %s: %w", tableName, err)
	}
	keys, err := scanNames(rows)
	if err != nil {
		return nil, nil, err
	}
	return columns, keys, nil
}
