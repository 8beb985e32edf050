// Package table contains the table descriptor consumed by the statement builders
// and the catalog strategies that load it from a live database.
package table

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrSchemaMismatch is the parent of every descriptor compatibility failure.
	// Callers match it with errors.Is.
	ErrSchemaMismatch   = errors.New("schema mismatch")
	ErrKeyArityMismatch = fmt.Errorf("%w: primary key arity differs", ErrSchemaMismatch)
	ErrColumnMismatch   = fmt.Errorf("%w: column sets are incompatible", ErrSchemaMismatch)
	ErrMissingColumn    = fmt.Errorf("%w: required column is missing", ErrSchemaMismatch)
	ErrNullableKey      = fmt.Errorf("%w: primary key column is nullable", ErrSchemaMismatch)
	ErrNoPrimaryKey     = fmt.Errorf("%w: table has no primary key", ErrSchemaMismatch)
	ErrTableNotFound    = errors.New("table not found")
)

// Column is a single column of a table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// TableInfo describes a table: its ordered columns and its ordered primary key.
// The key order is significant because keys are compared as tuples.
type TableInfo struct {
	db         *sql.DB
	SchemaName string
	TableName  string
	Columns    []Column
	KeyColumns []string
}

// NewTableInfo returns a descriptor bound to db. Call SetInfo to load
// its columns and primary key.
func NewTableInfo(db *sql.DB, schema, tableName string) *TableInfo {
	return &TableInfo{
		db:         db,
		SchemaName: schema,
		TableName:  tableName,
	}
}

// New builds a descriptor from already known metadata. The slices are copied.
func New(schema, tableName string, columns []Column, keyColumns []string) *TableInfo {
	return &TableInfo{
		SchemaName: schema,
		TableName:  tableName,
		Columns:    slices.Clone(columns),
		KeyColumns: slices.Clone(keyColumns),
	}
}

// SetInfo loads the columns and primary key using the catalog for the
// database engine. If KeyColumns is already set (for example from configuration,
// because foreign tables carry no constraints) it is kept.
func (t *TableInfo) SetInfo(ctx context.Context, catalog Catalog) error {
	if t.db == nil {
		return errors.New("table info is not bound to a database")
	}
	columns, keyColumns, err := catalog.Describe(ctx, t.db, t.SchemaName, t.TableName)
	if err != nil {
		return err
	}
	if len(columns) == 0 {
		return fmt.Errorf("%w: %s", ErrTableNotFound, t)
	}
	t.Columns = columns
	if len(t.KeyColumns) == 0 {
		t.KeyColumns = keyColumns
	}
	return nil
}

// String returns the dotted name of the table.
func (t *TableInfo) String() string {
	if t.SchemaName == "" {
		return t.TableName
	}
	return t.SchemaName + "." + t.TableName
}

// ColumnNames returns the column names in table order.
func (t *TableInfo) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// Column returns the named column.
func (t *TableInfo) Column(name string) (Column, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

func (t *TableInfo) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// validateKey checks that the table has a primary key, that every key
// column exists and that none of them accepts NULL.
func (t *TableInfo) validateKey() error {
	if len(t.KeyColumns) == 0 {
		return fmt.Errorf("%w: %s", ErrNoPrimaryKey, t)
	}
	for _, name := range t.KeyColumns {
		col, ok := t.Column(name)
		if !ok {
			return fmt.Errorf("%w: key column %q not found on %s", ErrMissingColumn, name, t)
		}
		if col.Nullable {
			return fmt.Errorf("%w: %s.%s", ErrNullableKey, t, name)
		}
	}
	return nil
}

// Requirements names the bookkeeping columns a compatible pair must carry.
type Requirements struct {
	TimestampColumn string
	DeletedColumn   string
}

// CheckCompatible is the validation step shared by every statement builder.
// The destination must carry every source column, a key of the same arity
// and the deleted flag; both sides must carry the timestamp.
func CheckCompatible(src, dst *TableInfo, req Requirements) error {
	if src == nil || dst == nil {
		return fmt.Errorf("%w: missing table descriptor", ErrSchemaMismatch)
	}
	if err := src.validateKey(); err != nil {
		return err
	}
	if err := dst.validateKey(); err != nil {
		return err
	}
	if len(src.KeyColumns) != len(dst.KeyColumns) {
		return fmt.Errorf("%w: %s has %d key columns, %s has %d",
			ErrKeyArityMismatch, src, len(src.KeyColumns), dst, len(dst.KeyColumns))
	}
	var missing []string
	for _, name := range src.ColumnNames() {
		if !dst.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s lacks %s", ErrColumnMismatch, dst, strings.Join(missing, ", "))
	}
	if req.TimestampColumn != "" {
		if !src.HasColumn(req.TimestampColumn) {
			return fmt.Errorf("%w: %s.%s", ErrMissingColumn, src, req.TimestampColumn)
		}
		if !dst.HasColumn(req.TimestampColumn) {
			return fmt.Errorf("%w: %s.%s", ErrMissingColumn, dst, req.TimestampColumn)
		}
	}
	if req.DeletedColumn != "" {
		if !dst.HasColumn(req.DeletedColumn) {
			return fmt.Errorf("%w: %s.%s", ErrMissingColumn, dst, req.DeletedColumn)
		}
		if src.HasColumn(req.DeletedColumn) {
			return fmt.Errorf("%w: %s must not carry %s", ErrColumnMismatch, src, req.DeletedColumn)
		}
	}
	return nil
}
