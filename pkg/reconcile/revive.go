package reconcile

import (
	"errors"
	"fmt"

	"github.com/block/keysync/pkg/query"
	"github.com/block/keysync/pkg/table"
)

var ErrNullKeys = errors.New("primary key columns contain NULL values")

// BuildRevive builds the statement for identities that were flagged deleted
// and have reappeared in the source: the row is overwritten from the source
// and the flag cleared. It runs after the insert and before the update.
//
//	WITH revive_pks AS MATERIALIZED (
//	  SELECT dst.k FROM dst JOIN src ON (dst.k) = (src.k) WHERE dst.is_deleted = TRUE)
//	UPDATE dst SET c = src.c, ..., is_deleted = FALSE FROM src
//	WHERE (dst.k) = (src.k) AND (dst.k) IN (SELECT revive_pks.k FROM revive_pks)
func BuildRevive(src, dst *table.TableInfo, opts ...Option) (*query.Update, error) {
	o := newOptions(opts)
	if err := table.CheckCompatible(src, dst, o.requirements()); err != nil {
		return nil, err
	}
	pks, err := deletedKeySet(ReviveKeySet, src, dst, o.DeletedColumn)
	if err != nil {
		return nil, err
	}
	unflag := query.Assignment{Column: o.DeletedColumn, Value: query.Bool(false)}
	return overwrite(src, dst, pks, []query.Assignment{unflag}), nil
}

// BuildNullKeyProbe counts the rows of t with a NULL in any key column.
// The sync statements assume the count is zero.
//
//	SELECT COUNT(*) FROM t WHERE (t.k1 IS NULL OR t.k2 IS NULL ...)
func BuildNullKeyProbe(t *table.TableInfo) (*query.Select, error) {
	if len(t.KeyColumns) == 0 {
		return nil, fmt.Errorf("%w: %s", table.ErrNoPrimaryKey, t)
	}
	rel := relationOf(t, "")
	checks := make(query.Or, len(t.KeyColumns))
	for i, name := range t.KeyColumns {
		checks[i] = &query.IsNull{Expr: rel.Col(name)}
	}
	return &query.Select{
		Columns: []query.Expr{query.CountAll{}},
		From:    rel,
		Where:   checks,
	}, nil
}
