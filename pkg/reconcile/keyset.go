package reconcile

import (
	"fmt"

	"github.com/block/keysync/pkg/query"
	"github.com/block/keysync/pkg/table"
)

// Names of the pinned key sets.
const (
	InsertKeySet = "insert_pks"
	UpdateKeySet = "update_pks"
	ReviveKeySet = "revive_pks"
)

// Aliases the source and destination are introduced under. Both tables
// may share a name (in different schemas or attached databases), so
// columns are always qualified by these instead of the table name.
const (
	SourceAlias      = "src"
	DestinationAlias = "dst"
)

func relationOf(t *table.TableInfo, alias string) *query.Table {
	return &query.Table{Schema: t.SchemaName, Name: t.TableName, Alias: alias}
}

func sourceOf(t *table.TableInfo) *query.Table {
	return relationOf(t, SourceAlias)
}

func destinationOf(t *table.TableInfo) *query.Table {
	return relationOf(t, DestinationAlias)
}

func columnRefs(rel query.Relation, names []string) []query.Expr {
	refs := make([]query.Expr, len(names))
	for i, name := range names {
		refs[i] = &query.ColumnRef{Relation: rel, Name: name}
	}
	return refs
}

// keyTuple is the row identity of rel: (k1, k2, ...).
func keyTuple(rel query.Relation, keyColumns []string) query.Tuple {
	return query.Tuple(columnRefs(rel, keyColumns))
}

func checkArity(a, b *table.TableInfo) error {
	if len(a.KeyColumns) == 0 || len(a.KeyColumns) != len(b.KeyColumns) {
		return fmt.Errorf("%w: %s has %d key columns, %s has %d",
			table.ErrKeyArityMismatch, a, len(a.KeyColumns), b, len(b.KeyColumns))
	}
	return nil
}

// absentKeySet pins the identities of from that do not exist in other:
//
//	SELECT from.k... FROM from WHERE (from.k...) NOT IN (SELECT other.k... FROM other)
//
// A NULL key component makes NOT IN unknown for that row, which is why
// nullable key columns are rejected before any statement is built.
func absentKeySet(name string, from, other *table.TableInfo, fromAlias, otherAlias string) (*query.CTE, error) {
	if err := checkArity(from, other); err != nil {
		return nil, err
	}
	fromRel, otherRel := relationOf(from, fromAlias), relationOf(other, otherAlias)
	return &query.CTE{
		Name:         name,
		Materialized: true,
		Query: &query.Select{
			Columns: columnRefs(fromRel, from.KeyColumns),
			From:    fromRel,
			Where: &query.In{
				Left: keyTuple(fromRel, from.KeyColumns),
				Not:  true,
				Query: &query.Select{
					Columns: columnRefs(otherRel, other.KeyColumns),
					From:    otherRel,
				},
			},
		},
	}, nil
}

// joinedKeySet pins the destination identities that also exist in the
// source and satisfy filter. Only key columns and whatever filter touches
// are read from the source.
func joinedKeySet(name string, src, dst *table.TableInfo, filter func(srcRel, dstRel *query.Table) query.Expr) (*query.CTE, error) {
	if err := checkArity(src, dst); err != nil {
		return nil, err
	}
	srcRel, dstRel := sourceOf(src), destinationOf(dst)
	return &query.CTE{
		Name:         name,
		Materialized: true,
		Query: &query.Select{
			Columns: columnRefs(dstRel, dst.KeyColumns),
			From:    dstRel,
			Joins: []query.Join{{
				Table: srcRel,
				On: &query.Compare{
					Left:  keyTuple(dstRel, dst.KeyColumns),
					Op:    query.OpEq,
					Right: keyTuple(srcRel, src.KeyColumns),
				},
			}},
			Where: filter(srcRel, dstRel),
		},
	}, nil
}

// staleKeySet pins the destination identities whose source row is strictly newer.
func staleKeySet(name string, src, dst *table.TableInfo, timestampColumn string) (*query.CTE, error) {
	return joinedKeySet(name, src, dst, func(srcRel, dstRel *query.Table) query.Expr {
		return &query.Compare{
			Left:  dstRel.Col(timestampColumn),
			Op:    query.OpLt,
			Right: srcRel.Col(timestampColumn),
		}
	})
}

// deletedKeySet pins the flagged destination identities that exist in the source again.
func deletedKeySet(name string, src, dst *table.TableInfo, deletedColumn string) (*query.CTE, error) {
	return joinedKeySet(name, src, dst, func(_, dstRel *query.Table) query.Expr {
		return &query.Compare{
			Left:  dstRel.Col(deletedColumn),
			Op:    query.OpEq,
			Right: query.Bool(true),
		}
	})
}

// readKeySet is SELECT cte.k... FROM cte, the probe side of a membership test.
func readKeySet(cte *query.CTE, keyColumns []string) *query.Select {
	return &query.Select{
		Columns: columnRefs(cte, keyColumns),
		From:    cte,
	}
}
