package table

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// SQLiteCatalog reads metadata with the pragma_table_info table-valued
// function. An empty schema means "main".
type SQLiteCatalog struct{}

var _ Catalog = (*SQLiteCatalog)(nil)

func (c *SQLiteCatalog) Name() string {
	return "sqlite"
}

func (c *SQLiteCatalog) Describe(ctx context.Context, db *sql.DB, schema, tableName string) ([]Column, []string, error) {
	if schema == "" {
		schema = "main"
	}
	rows, err := db.QueryContext(ctx,
		`SELECT name, type, "notnull", pk FROM pragma_table_info(?, ?) ORDER BY cid`, tableName, schema)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read columns of %s: %w", tableName, err)
	}
	defer rows.Close()
	type keyPart struct {
		name string
		pos  int
	}
	var (
		columns []Column
		parts   []keyPart
	)
	for rows.Next() {
		var (
			col     Column
			notNull int
			pk      int
		)
		if err := rows.Scan(&col.Name, &col.Type, &notNull, &pk); err != nil {
			return nil, nil, err
		}
		col.Nullable = notNull == 0
		if pk > 0 {
			parts = append(parts, keyPart{name: col.Name, pos: pk})
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].pos < parts[j].pos })
	keys := make([]string, len(parts))
	for i, p := range parts {
		keys[i] = p.name
	}
	// A lone INTEGER PRIMARY KEY is the rowid and can never hold NULL,
	// even though the pragma reports it as nullable.
	if len(keys) == 1 {
		for i := range columns {
			if columns[i].Name == keys[0] && strings.EqualFold(columns[i].Type, "INTEGER") {
				columns[i].Nullable = false
			}
		}
	}
	return columns, keys, nil
}
