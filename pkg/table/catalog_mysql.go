package table

import (
	"context"
	"database/sql"
	"fmt"
)

// MySQLCatalog reads metadata from a MySQL information_schema.
// An empty schema means the connection's default database.
type MySQLCatalog struct{}

var _ Catalog = (*MySQLCatalog)(nil)

func (c *MySQLCatalog) Name() string {
	return "mysql"
}

func (c *MySQLCatalog) Describe(ctx context.Context, db *sql.DB, schema, tableName string) ([]Column, []string, error) {
	rows, err := db.QueryContext(ctx, `SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, schema, tableName)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read columns of %s: %w", tableName, err)
	}
	columns, err := scanColumns(rows)
	if err != nil {
		return nil, nil, err
	}
	rows, err = db.QueryContext(ctx, `SELECT COLUMN_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_NAME = ?
		AND CONSTRAINT_NAME = 'PRIMARY'
		ORDER BY ORDINAL_POSITION`, schema, tableName)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read primary key of %s: %w", tableName, err)
	}
	keys, err := scanNames(rows)
	if err != nil {
		return nil, nil, err
	}
	return columns, keys, nil
}
