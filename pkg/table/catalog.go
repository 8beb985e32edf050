package table

import (
	"context"
	"database/sql"
	"fmt"
)

// Catalog is a strategy for reading table metadata from one database engine.
type Catalog interface {
	// Describe returns the columns in ordinal order and the primary key
	// columns in key order. An unknown table returns no columns.
	Describe(ctx context.Context, db *sql.DB, schema, tableName string) ([]Column, []string, error)
	// Name is the engine name, as used in configuration.
	Name() string
}

// CatalogFor returns the catalog for an engine name.
func CatalogFor(engine string) (Catalog, error) {
	switch engine {
	case "mysql":
		return &MySQLCatalog{}, nil
	case "postgresql":
		return &PostgreSQLCatalog{}, nil
	case "sqlite":
		return &SQLiteCatalog{}, nil
	case "duckdb":
		return &DuckDBCatalog{}, nil
	default:
		return nil, fmt.Errorf("unsupported catalog type: %s", engine)
	}
}

// scanColumns reads (name, type, is_nullable) rows where is_nullable is
// the information_schema YES/NO string.
func scanColumns(rows *sql.Rows) ([]Column, error) {
	defer rows.Close()
	var columns []Column
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable); err != nil {
			return nil, err
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func scanNames(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
