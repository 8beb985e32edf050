// Package query is a small abstract statement tree for the data-manipulation
// statements used by a sync cycle, and the dialects that compile it to SQL.
//
// The tree is deliberately narrow: it only has the nodes the sync statements
// need. The materialization pin is an attribute of the CTE node, so each
// dialect decides how (or whether) to express it.
package query

// Statement is a compilable root node.
type Statement interface {
	statement()
}

// Relation is anything a column can be qualified by.
type Relation interface {
	relation()
	// Ref is the name used to qualify columns of the relation.
	ref() []string
}

// Expr is a scalar or row expression.
type Expr interface {
	expr()
}

// Table is a base table, optionally schema qualified. When Alias is set
// the table is introduced as "name AS alias" and its columns are qualified
// by the alias, so two tables with the same name can meet in one statement.
// INSERT targets are never aliased.
type Table struct {
	Schema string
	Name   string
	Alias  string
}

func (*Table) relation() {}

func (t *Table) ref() []string {
	if t.Alias != "" {
		return []string{t.Alias}
	}
	return t.name()
}

func (t *Table) name() []string {
	if t.Schema == "" {
		return []string{t.Name}
	}
	return []string{t.Schema, t.Name}
}

// Col returns a column reference qualified by the table.
func (t *Table) Col(name string) *ColumnRef {
	return &ColumnRef{Relation: t, Name: name}
}

// CTE is a named subquery in a WITH clause. Materialized pins it: the
// engine must evaluate it once and probe the held result, instead of
// inlining it into the statement that reads it.
type CTE struct {
	Name         string
	Query        *Select
	Materialized bool
}

func (*CTE) relation() {}

func (c *CTE) ref() []string {
	return []string{c.Name}
}

// Col returns a column reference qualified by the CTE name.
func (c *CTE) Col(name string) *ColumnRef {
	return &ColumnRef{Relation: c, Name: name}
}

// ColumnRef is a column, qualified by its relation when Relation is set.
type ColumnRef struct {
	Relation Relation
	Name     string
}

func (*ColumnRef) expr() {}

// Tuple is a row value: (a, b, ...). Comparisons against tuples compare
// the whole row, never component-wise.
type Tuple []Expr

func (Tuple) expr() {}

// CompareOp is a binary comparison operator.
type CompareOp string

const (
	OpEq CompareOp = "="
	OpLt CompareOp = "<"
)

// Compare is Left Op Right.
type Compare struct {
	Left  Expr
	Op    CompareOp
	Right Expr
}

func (*Compare) expr() {}

// In is Left [NOT] IN (Query).
type In struct {
	Left  Expr
	Not   bool
	Query *Select
}

func (*In) expr() {}

// IsNull is Expr IS NULL.
type IsNull struct {
	Expr Expr
}

func (*IsNull) expr() {}

// And is the conjunction of its terms.
type And []Expr

func (And) expr() {}

// Or is the disjunction of its terms.
type Or []Expr

func (Or) expr() {}

// Bool is a boolean literal.
type Bool bool

func (Bool) expr() {}

// CountAll is COUNT(*).
type CountAll struct{}

func (CountAll) expr() {}

// As labels a select item.
type As struct {
	Expr  Expr
	Alias string
}

func (*As) expr() {}

// Join is an inner join.
type Join struct {
	Table *Table
	On    Expr
}

// Select is SELECT Columns FROM From [JOIN ...] [WHERE ...], optionally
// preceded by a WITH clause.
type Select struct {
	With    []*CTE
	Columns []Expr
	From    Relation
	Joins   []Join
	Where   Expr
}

func (*Select) statement() {}

// Insert is INSERT INTO Table (Columns) Query. The WITH clause of the
// query is placed where the dialect requires it.
type Insert struct {
	Table   *Table
	Columns []string
	Query   *Select
}

func (*Insert) statement() {}

// InsertValues is a multi-row INSERT with bound parameters, used when
// rows are fetched client-side and written back in batches.
type InsertValues struct {
	Table   *Table
	Columns []string
	Rows    [][]any
}

func (*InsertValues) statement() {}

// Assignment is Column = Value in an UPDATE.
type Assignment struct {
	Column string
	Value  Expr
}

// Update is UPDATE Table SET ... [FROM From] [WHERE ...].
type Update struct {
	With  []*CTE
	Table *Table
	Set   []Assignment
	From  *Table
	Where Expr
}

func (*Update) statement() {}
