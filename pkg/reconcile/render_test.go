package reconcile

import (
	"testing"

	"github.com/block/keysync/pkg/query"
	"github.com/block/keysync/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opportunity(schema string, deletedFlag bool) *table.TableInfo {
	cols := []table.Column{
		{Name: "opportunity_id", Type: "bigint"},
		{Name: "title", Type: "text", Nullable: true},
		{Name: "last_upd_date", Type: "timestamp"},
	}
	if deletedFlag {
		cols = append(cols, table.Column{Name: "is_deleted", Type: "boolean"})
	}
	return table.New(schema, "opportunity", cols, []string{"opportunity_id"})
}

func TestRenderPostgres(t *testing.T) {
	plan, err := BuildPlan(opportunity("legacy", false), opportunity("api", true))
	require.NoError(t, err)
	out, err := plan.Render(&query.PostgreSQL{})
	require.NoError(t, err)

	assert.Equal(t, `WITH "insert_pks" AS MATERIALIZED (SELECT "src"."opportunity_id" FROM "legacy"."opportunity" AS "src" WHERE ("src"."opportunity_id") NOT IN (SELECT "dst"."opportunity_id" FROM "api"."opportunity" AS "dst")) `+
		`INSERT INTO "api"."opportunity" ("opportunity_id", "title", "last_upd_date", "is_deleted") `+
		`SELECT "src"."opportunity_id", "src"."title", "src"."last_upd_date", FALSE AS "is_deleted" FROM "legacy"."opportunity" AS "src" `+
		`WHERE ("src"."opportunity_id") IN (SELECT "insert_pks"."opportunity_id" FROM "insert_pks")`,
		out[StepInsert].SQL)

	assert.Equal(t, `WITH "update_pks" AS MATERIALIZED (SELECT "dst"."opportunity_id" FROM "api"."opportunity" AS "dst" JOIN "legacy"."opportunity" AS "src" ON ("dst"."opportunity_id") = ("src"."opportunity_id") WHERE "dst"."last_upd_date" < "src"."last_upd_date") `+
		`UPDATE "api"."opportunity" AS "dst" SET "opportunity_id" = "src"."opportunity_id", "title" = "src"."title", "last_upd_date" = "src"."last_upd_date" `+
		`FROM "legacy"."opportunity" AS "src" WHERE ("dst"."opportunity_id") = ("src"."opportunity_id") AND ("dst"."opportunity_id") IN (SELECT "update_pks"."opportunity_id" FROM "update_pks")`,
		out[StepUpdate].SQL)

	assert.Equal(t, `UPDATE "api"."opportunity" AS "dst" SET "is_deleted" = TRUE WHERE "dst"."is_deleted" = FALSE AND ("dst"."opportunity_id") NOT IN (SELECT "src"."opportunity_id" FROM "legacy"."opportunity" AS "src")`,
		out[StepMarkDeleted].SQL)

	_, ok := out[StepRevive]
	assert.False(t, ok)
}

func TestRenderMySQL(t *testing.T) {
	src := table.New("legacy", "items", []table.Column{{Name: "id"}, {Name: "name", Nullable: true}, {Name: "last_upd_date"}}, []string{"id"})
	dst := table.New("app", "items", append(src.Columns, table.Column{Name: "is_deleted"}), []string{"id"})
	plan, err := BuildPlan(src, dst)
	require.NoError(t, err)
	out, err := plan.Render(&query.MySQL{})
	require.NoError(t, err)

	assert.Equal(t, "INSERT INTO `app`.`items` (`id`, `name`, `last_upd_date`, `is_deleted`) "+
		"WITH `insert_pks` AS (SELECT `src`.`id` FROM `legacy`.`items` AS `src` WHERE (`src`.`id`) NOT IN (SELECT `dst`.`id` FROM `app`.`items` AS `dst`)) "+
		"SELECT `src`.`id`, `src`.`name`, `src`.`last_upd_date`, FALSE AS `is_deleted` FROM `legacy`.`items` AS `src` "+
		"WHERE (`src`.`id`) IN (SELECT /*+ NO_MERGE(`insert_pks`) */ `insert_pks`.`id` FROM `insert_pks`)",
		out[StepInsert].SQL)

	assert.Equal(t, "WITH `update_pks` AS (SELECT `dst`.`id` FROM `app`.`items` AS `dst` JOIN `legacy`.`items` AS `src` ON (`dst`.`id`) = (`src`.`id`) WHERE `dst`.`last_upd_date` < `src`.`last_upd_date`) "+
		"UPDATE `app`.`items` AS `dst`, `legacy`.`items` AS `src` SET `dst`.`id` = `src`.`id`, `dst`.`name` = `src`.`name`, `dst`.`last_upd_date` = `src`.`last_upd_date` "+
		"WHERE (`dst`.`id`) = (`src`.`id`) AND (`dst`.`id`) IN (SELECT /*+ NO_MERGE(`update_pks`) */ `update_pks`.`id` FROM `update_pks`)",
		out[StepUpdate].SQL)

	assert.Equal(t, "UPDATE `app`.`items` AS `dst` SET `dst`.`is_deleted` = TRUE WHERE `dst`.`is_deleted` = FALSE AND (`dst`.`id`) NOT IN (SELECT `src`.`id` FROM `legacy`.`items` AS `src`)",
		out[StepMarkDeleted].SQL)
}

func TestRenderWithoutMaterialization(t *testing.T) {
	plan, err := BuildPlan(opportunity("", false), table.New("", "mirror", opportunity("", true).Columns, []string{"opportunity_id"}))
	require.NoError(t, err)
	out, err := plan.Render(&query.ANSI{})
	require.NoError(t, err)
	for name, c := range out {
		assert.NotContains(t, c.SQL, "MATERIALIZED", name)
		assert.NotContains(t, c.SQL, "/*+", name)
	}
	assert.Contains(t, out[StepInsert].SQL, `WITH "insert_pks" AS (SELECT`)
}

func TestBuildersRejectIncompatibleTables(t *testing.T) {
	src := opportunity("", false)
	composite := table.New("", "regional", []table.Column{
		{Name: "region"}, {Name: "opportunity_id"}, {Name: "title", Nullable: true}, {Name: "last_upd_date"}, {Name: "is_deleted"},
	}, []string{"region", "opportunity_id"})
	nullableKey := table.New("", "loose", []table.Column{
		{Name: "opportunity_id", Nullable: true}, {Name: "title"}, {Name: "last_upd_date"}, {Name: "is_deleted"},
	}, []string{"opportunity_id"})
	narrow := table.New("", "narrow", []table.Column{
		{Name: "opportunity_id"}, {Name: "last_upd_date"}, {Name: "is_deleted"},
	}, []string{"opportunity_id"})

	tests := []struct {
		name string
		dst  *table.TableInfo
		err  error
	}{
		{"arity", composite, table.ErrKeyArityMismatch},
		{"nullable key", nullableKey, table.ErrNullableKey},
		{"missing source column", narrow, table.ErrColumnMismatch},
		{"no deleted flag", opportunity("", false), table.ErrMissingColumn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := BuildInsertSelect(src, tt.dst)
			assert.ErrorIs(t, err, tt.err)
			assert.ErrorIs(t, err, table.ErrSchemaMismatch)
			_, err = BuildUpdate(src, tt.dst)
			assert.ErrorIs(t, err, tt.err)
			_, err = BuildMarkDeleted(src, tt.dst)
			assert.ErrorIs(t, err, tt.err)
			_, err = BuildRevive(src, tt.dst)
			assert.ErrorIs(t, err, tt.err)
			_, err = BuildPlan(src, tt.dst)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
