package statement

import (
	"fmt"

	"github.com/block/keysync/pkg/table"
	"github.com/pingcap/tidb/pkg/parser/ast"
)

// ParseCreateTable builds a table descriptor from a MySQL CREATE TABLE
// statement, without a database. Columns keep their declared order and
// the key keeps the order of the PRIMARY KEY clause.
//
// PRIMARY KEY columns are NOT NULL even when the DDL does not say so,
// matching what MySQL does when it creates the table.
func ParseCreateTable(sql string) (*table.TableInfo, error) {
	node, err := parseOne(sql)
	if err != nil {
		return nil, err
	}
	createStmt, ok := node.(*ast.CreateTableStmt)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotCreateTable, node)
	}
	var (
		columns []table.Column
		keys    []string
	)
	for _, col := range createStmt.Cols {
		column := table.Column{
			Name:     col.Name.Name.String(),
			Type:     col.Tp.String(),
			Nullable: true,
		}
		for _, opt := range col.Options {
			switch opt.Tp { //nolint:exhaustive
			case ast.ColumnOptionNotNull:
				column.Nullable = false
			case ast.ColumnOptionPrimaryKey:
				column.Nullable = false
				keys = append(keys, column.Name)
			}
		}
		columns = append(columns, column)
	}
	for _, constraint := range createStmt.Constraints {
		if constraint.Tp != ast.ConstraintPrimaryKey {
			continue
		}
		if len(keys) > 0 {
			return nil, fmt.Errorf("multiple primary keys defined on %s", createStmt.Table.Name.String())
		}
		for _, key := range constraint.Keys {
			if key.Column == nil {
				return nil, fmt.Errorf("primary key of %s uses an expression", createStmt.Table.Name.String())
			}
			keys = append(keys, key.Column.Name.String())
		}
	}
	for i := range columns {
		for _, key := range keys {
			if columns[i].Name == key {
				columns[i].Nullable = false
			}
		}
	}
	return table.New(createStmt.Table.Schema.String(), createStmt.Table.Name.String(), columns, keys), nil
}
