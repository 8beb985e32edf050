package reconcile

import (
	"github.com/block/keysync/pkg/query"
	"github.com/block/keysync/pkg/table"
)

// BuildInsertSelect builds the statement copying rows that exist in src but
// not in dst, and the row selection it inserts from. The selection is
// returned on its own for executors that fetch rows and insert them
// client-side.
//
//	WITH insert_pks AS MATERIALIZED (
//	  SELECT src.k FROM src WHERE (src.k) NOT IN (SELECT dst.k FROM dst))
//	INSERT INTO dst (c..., is_deleted)
//	SELECT src.c..., FALSE AS is_deleted FROM src
//	WHERE (src.k) IN (SELECT insert_pks.k FROM insert_pks)
func BuildInsertSelect(src, dst *table.TableInfo, opts ...Option) (*query.Insert, *query.Select, error) {
	o := newOptions(opts)
	if err := table.CheckCompatible(src, dst, o.requirements()); err != nil {
		return nil, nil, err
	}
	pks, err := absentKeySet(InsertKeySet, src, dst, SourceAlias, DestinationAlias)
	if err != nil {
		return nil, nil, err
	}
	srcRel := sourceOf(src)
	columns := columnRefs(srcRel, src.ColumnNames())
	columns = append(columns, &query.As{Expr: query.Bool(false), Alias: o.DeletedColumn})
	selection := &query.Select{
		With:    []*query.CTE{pks},
		Columns: columns,
		From:    srcRel,
		Where: &query.In{
			Left:  keyTuple(srcRel, src.KeyColumns),
			Query: readKeySet(pks, src.KeyColumns),
		},
	}
	insert := &query.Insert{
		Table:   relationOf(dst, ""),
		Columns: append(src.ColumnNames(), o.DeletedColumn),
		Query:   selection,
	}
	return insert, selection, nil
}
