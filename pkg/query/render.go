package query

import (
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyStatement = errors.New("statement has nothing to render")

// Render compiles stmt to the SQL of dialect d.
func Render(d Dialect, stmt Statement) (Compiled, error) {
	r := &renderer{d: d}
	switch s := stmt.(type) {
	case *Select:
		r.selectStmt(s)
	case *Insert:
		r.insert(s)
	case *InsertValues:
		r.insertValues(s)
	case *Update:
		r.update(s)
	case nil:
		return Compiled{}, ErrEmptyStatement
	default:
		return Compiled{}, fmt.Errorf("unsupported statement type %T", stmt)
	}
	if r.err != nil {
		return Compiled{}, r.err
	}
	return Compiled{SQL: r.sb.String(), Args: r.args}, nil
}

// MustRender is like Render but panics on error.
// It is used by tests.
func MustRender(d Dialect, stmt Statement) Compiled {
	c, err := Render(d, stmt)
	if err != nil {
		panic(err)
	}
	return c
}

type renderer struct {
	d    Dialect
	sb   strings.Builder
	args []any
	err  error
}

func (r *renderer) write(parts ...string) {
	for _, p := range parts {
		r.sb.WriteString(p)
	}
}

func (r *renderer) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *renderer) ident(name string) string {
	return r.d.QuoteIdentifier(name)
}

func (r *renderer) qualified(parts []string) string {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = r.ident(p)
	}
	return strings.Join(quoted, ".")
}

// table renders t where it introduces a relation: FROM, JOIN and the
// UPDATE target.
func (r *renderer) table(t *Table) {
	if t == nil {
		r.fail(errors.New("missing table"))
		return
	}
	r.write(r.qualified(t.name()))
	if t.Alias != "" {
		r.write(" AS ", r.ident(t.Alias))
	}
}

// target renders the unaliased name of an INSERT target.
func (r *renderer) target(t *Table) {
	if t == nil {
		r.fail(errors.New("missing table"))
		return
	}
	r.write(r.qualified(t.name()))
}

func (r *renderer) relation(rel Relation) {
	switch rel := rel.(type) {
	case *Table:
		r.table(rel)
	default:
		r.write(r.qualified(rel.ref()))
	}
}

func (r *renderer) with(ctes []*CTE) {
	if len(ctes) == 0 {
		return
	}
	r.write("WITH ")
	for i, cte := range ctes {
		if i > 0 {
			r.write(", ")
		}
		r.write(r.ident(cte.Name), " AS ")
		if cte.Materialized && r.d.Materialization() == MaterializeKeyword {
			r.write("MATERIALIZED ")
		}
		r.write("(")
		r.selectStmt(cte.Query)
		r.write(")")
	}
	r.write(" ")
}

func (r *renderer) selectStmt(s *Select) {
	if s == nil {
		r.fail(errors.New("missing select"))
		return
	}
	r.with(s.With)
	r.selectBody(s)
}

// selectBody renders everything after the WITH clause.
func (r *renderer) selectBody(s *Select) {
	if len(s.Columns) == 0 {
		r.fail(ErrEmptyStatement)
		return
	}
	r.write("SELECT ")
	if cte, ok := s.From.(*CTE); ok && cte.Materialized && r.d.Materialization() == MaterializeHint {
		r.write(r.d.MaterializeHint(r.ident(cte.Name)), " ")
	}
	r.exprList(s.Columns)
	if s.From == nil {
		r.fail(errors.New("select has no FROM"))
		return
	}
	r.write(" FROM ")
	r.relation(s.From)
	for _, j := range s.Joins {
		r.write(" JOIN ")
		r.table(j.Table)
		r.write(" ON ")
		r.expr(j.On)
	}
	if s.Where != nil {
		r.write(" WHERE ")
		r.expr(s.Where)
	}
}

func (r *renderer) insert(s *Insert) {
	if s.Query == nil || len(s.Columns) == 0 {
		r.fail(ErrEmptyStatement)
		return
	}
	if r.d.InsertWithPlacement() == WithBeforeInsert {
		r.with(s.Query.With)
	}
	r.write("INSERT INTO ")
	r.target(s.Table)
	r.write(" ")
	r.columnList(s.Columns)
	r.write(" ")
	if r.d.InsertWithPlacement() == WithInsideSelect {
		r.with(s.Query.With)
	}
	r.selectBody(s.Query)
}

func (r *renderer) insertValues(s *InsertValues) {
	if len(s.Rows) == 0 || len(s.Columns) == 0 {
		r.fail(ErrEmptyStatement)
		return
	}
	r.write("INSERT INTO ")
	r.target(s.Table)
	r.write(" ")
	r.columnList(s.Columns)
	r.write(" VALUES ")
	for i, row := range s.Rows {
		if len(row) != len(s.Columns) {
			r.fail(fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(s.Columns)))
			return
		}
		if i > 0 {
			r.write(", ")
		}
		r.write("(")
		for j, v := range row {
			if j > 0 {
				r.write(", ")
			}
			r.args = append(r.args, v)
			r.write(r.d.Placeholder(len(r.args)))
		}
		r.write(")")
	}
}

func (r *renderer) update(s *Update) {
	if len(s.Set) == 0 {
		r.fail(ErrEmptyStatement)
		return
	}
	r.with(s.With)
	r.write("UPDATE ")
	r.table(s.Table)
	multi := r.d.UpdateStyle() == UpdateMultiTable
	if multi && s.From != nil {
		r.write(", ")
		r.table(s.From)
	}
	r.write(" SET ")
	for i, a := range s.Set {
		if i > 0 {
			r.write(", ")
		}
		if multi {
			r.write(r.qualified(append(s.Table.ref(), a.Column)))
		} else {
			r.write(r.ident(a.Column))
		}
		r.write(" = ")
		r.expr(a.Value)
	}
	if !multi && s.From != nil {
		r.write(" FROM ")
		r.table(s.From)
	}
	if s.Where != nil {
		r.write(" WHERE ")
		r.expr(s.Where)
	}
}

func (r *renderer) columnList(cols []string) {
	r.write("(")
	for i, c := range cols {
		if i > 0 {
			r.write(", ")
		}
		r.write(r.ident(c))
	}
	r.write(")")
}

func (r *renderer) exprList(exprs []Expr) {
	for i, e := range exprs {
		if i > 0 {
			r.write(", ")
		}
		r.expr(e)
	}
}

func (r *renderer) expr(e Expr) {
	switch e := e.(type) {
	case *ColumnRef:
		if e.Relation == nil {
			r.write(r.ident(e.Name))
			return
		}
		r.write(r.qualified(append(e.Relation.ref(), e.Name)))
	case Tuple:
		if len(e) == 0 {
			r.fail(errors.New("empty tuple"))
			return
		}
		r.write("(")
		r.exprList(e)
		r.write(")")
	case *Compare:
		r.expr(e.Left)
		r.write(" ", string(e.Op), " ")
		r.expr(e.Right)
	case *In:
		r.expr(e.Left)
		if e.Not {
			r.write(" NOT")
		}
		r.write(" IN (")
		r.selectStmt(e.Query)
		r.write(")")
	case *IsNull:
		r.expr(e.Expr)
		r.write(" IS NULL")
	case And:
		r.junction(e, " AND ")
	case Or:
		r.write("(")
		r.junction(e, " OR ")
		r.write(")")
	case Bool:
		if e {
			r.write("TRUE")
		} else {
			r.write("FALSE")
		}
	case CountAll:
		r.write("COUNT(*)")
	case *As:
		r.expr(e.Expr)
		r.write(" AS ", r.ident(e.Alias))
	case nil:
		r.fail(errors.New("missing expression"))
	default:
		r.fail(fmt.Errorf("unsupported expression type %T", e))
	}
}

func (r *renderer) junction(terms []Expr, sep string) {
	if len(terms) == 0 {
		r.fail(errors.New("empty boolean junction"))
		return
	}
	for i, t := range terms {
		if i > 0 {
			r.write(sep)
		}
		r.expr(t)
	}
}
