package table

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgreSQLCatalog reads metadata from the PostgreSQL information_schema.
// Foreign tables (for example oracle_fdw or postgres_fdw sources) have
// columns but no constraints, so their key has to come from configuration.
type PostgreSQLCatalog struct{}

var _ Catalog = (*PostgreSQLCatalog)(nil)

func (c *PostgreSQLCatalog) Name() string {
	return "postgresql"
}

func (c *PostgreSQLCatalog) Describe(ctx context.Context, db *sql.DB, schema, tableName string) ([]Column, []string, error) {
	rows, err := db.QueryContext(ctx, `SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema()) AND table_name = $2
		ORDER BY ordinal_position`, schema, tableName)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read columns of %s: %w", tableName, err)
	}
	columns, err := scanColumns(rows)
	if err != nil {
		return nil, nil, err
	}
	rows, err = db.QueryContext(ctx, `SELECT kcu.column_name
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		 AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema = COALESCE(NULLIF($1, ''), current_schema())
		  AND tc.table_name = $2
		ORDER BY kcu.ordinal_position`, schema, tableName)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read primary key of %s: %w", tableName, err)
	}
	keys, err := scanNames(rows)
	if err != nil {
		return nil, nil, err
	}
	return columns, keys, nil
}
