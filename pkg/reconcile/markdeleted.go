package reconcile

import (
	"github.com/block/keysync/pkg/query"
	"github.com/block/keysync/pkg/table"
)

// BuildMarkDeleted builds the statement flagging destination rows whose
// identity no longer exists in the source. Rows are never removed, and
// rows already flagged are excluded so a second run touches nothing.
//
//	UPDATE dst SET is_deleted = TRUE
//	WHERE dst.is_deleted = FALSE AND (dst.k) NOT IN (SELECT src.k FROM src)
func BuildMarkDeleted(src, dst *table.TableInfo, opts ...Option) (*query.Update, error) {
	o := newOptions(opts)
	if err := table.CheckCompatible(src, dst, o.requirements()); err != nil {
		return nil, err
	}
	srcRel, dstRel := sourceOf(src), destinationOf(dst)
	return &query.Update{
		Table: dstRel,
		Set:   []query.Assignment{{Column: o.DeletedColumn, Value: query.Bool(true)}},
		Where: query.And{
			&query.Compare{
				Left:  dstRel.Col(o.DeletedColumn),
				Op:    query.OpEq,
				Right: query.Bool(false),
			},
			&query.In{
				Left: keyTuple(dstRel, dst.KeyColumns),
				Not:  true,
				Query: &query.Select{
					Columns: columnRefs(srcRel, src.KeyColumns),
					From:    srcRel,
				},
			},
		},
	}, nil
}
