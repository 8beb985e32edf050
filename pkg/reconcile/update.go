package reconcile

import (
	"github.com/block/keysync/pkg/query"
	"github.com/block/keysync/pkg/table"
)

// BuildUpdate builds the statement overwriting destination rows whose
// source row has a strictly newer timestamp. Rows with equal or older
// source timestamps are not touched, so running it twice changes nothing
// the second time.
//
//	WITH update_pks AS MATERIALIZED (
//	  SELECT dst.k FROM dst JOIN src ON (dst.k) = (src.k)
//	  WHERE dst.last_upd_date < src.last_upd_date)
//	UPDATE dst SET c = src.c, ... FROM src
//	WHERE (dst.k) = (src.k) AND (dst.k) IN (SELECT update_pks.k FROM update_pks)
func BuildUpdate(src, dst *table.TableInfo, opts ...Option) (*query.Update, error) {
	o := newOptions(opts)
	if err := table.CheckCompatible(src, dst, o.requirements()); err != nil {
		return nil, err
	}
	pks, err := staleKeySet(UpdateKeySet, src, dst, o.TimestampColumn)
	if err != nil {
		return nil, err
	}
	return overwrite(src, dst, pks, nil), nil
}

// overwrite assigns every source column (keys included) from the source row
// with the same identity, limited to the identities in pks.
func overwrite(src, dst *table.TableInfo, pks *query.CTE, extra []query.Assignment) *query.Update {
	srcRel, dstRel := sourceOf(src), destinationOf(dst)
	set := make([]query.Assignment, 0, len(src.Columns)+len(extra))
	for _, name := range src.ColumnNames() {
		set = append(set, query.Assignment{Column: name, Value: srcRel.Col(name)})
	}
	set = append(set, extra...)
	return &query.Update{
		With:  []*query.CTE{pks},
		Table: dstRel,
		Set:   set,
		From:  srcRel,
		Where: query.And{
			&query.Compare{
				Left:  keyTuple(dstRel, dst.KeyColumns),
				Op:    query.OpEq,
				Right: keyTuple(srcRel, src.KeyColumns),
			},
			&query.In{
				Left:  keyTuple(dstRel, dst.KeyColumns),
				Query: readKeySet(pks, dst.KeyColumns),
			},
		},
	}
}
