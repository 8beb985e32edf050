package statement

import (
	"os"
	"testing"

	"github.com/block/keysync/pkg/query"
	"github.com/block/keysync/pkg/reconcile"
	"github.com/block/keysync/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
	os.Exit(m.Run())
}

func TestParseCreateTable(t *testing.T) {
	ti, err := ParseCreateTable(`CREATE TABLE crm.opportunity (
		region CHAR(2),
		opportunity_id BIGINT NOT NULL,
		title VARCHAR(255),
		last_upd_date DATETIME NOT NULL,
		PRIMARY KEY (region, opportunity_id)
	)`)
	require.NoError(t, err)
	assert.Equal(t, "crm", ti.SchemaName)
	assert.Equal(t, "opportunity", ti.TableName)
	assert.Equal(t, []string{"region", "opportunity_id", "title", "last_upd_date"}, ti.ColumnNames())
	assert.Equal(t, []string{"region", "opportunity_id"}, ti.KeyColumns)
	// A primary key column is NOT NULL even when not declared so.
	assert.False(t, ti.Columns[0].Nullable)
	assert.True(t, ti.Columns[2].Nullable)
	assert.Contains(t, ti.Columns[2].Type, "varchar")

	ti, err = ParseCreateTable(`CREATE TABLE account (id INT PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)
	assert.Empty(t, ti.SchemaName)
	assert.Equal(t, []string{"id"}, ti.KeyColumns)
	assert.False(t, ti.Columns[0].Nullable)
}

func TestParseCreateTableErrors(t *testing.T) {
	_, err := ParseCreateTable(`ALTER TABLE t1 ADD COLUMN c INT`)
	assert.ErrorIs(t, err, ErrNotCreateTable)

	_, err = ParseCreateTable(`CREATE TABLE a (id INT); CREATE TABLE b (id INT)`)
	assert.ErrorIs(t, err, ErrNotSingle)

	_, err = ParseCreateTable(`CREATE TABLE a (id INT PRIMARY KEY, b INT, PRIMARY KEY (b))`)
	assert.ErrorContains(t, err, "multiple primary keys")

	_, err = ParseCreateTable(`CREATE TABLE (`)
	assert.Error(t, err)
}

func TestParsedTablesPlan(t *testing.T) {
	src, err := ParseCreateTable(`CREATE TABLE src (id BIGINT NOT NULL PRIMARY KEY, name TEXT, last_upd_date DATETIME NOT NULL)`)
	require.NoError(t, err)
	dst, err := ParseCreateTable(`CREATE TABLE dst (id BIGINT NOT NULL PRIMARY KEY, name TEXT, last_upd_date DATETIME NOT NULL, is_deleted BOOLEAN NOT NULL DEFAULT FALSE)`)
	require.NoError(t, err)

	plan, err := reconcile.BuildPlan(src, dst)
	require.NoError(t, err)
	mysql := &query.MySQL{}
	for _, stmt := range []query.Statement{plan.InsertSelect, plan.Update, plan.MarkDeleted} {
		c, err := query.Render(mysql, stmt)
		require.NoError(t, err)
		assert.NoError(t, CheckMySQL(c.SQL), c.SQL)
	}

	nullable, err := ParseCreateTable(`CREATE TABLE loose (id BIGINT, name TEXT, last_upd_date DATETIME, is_deleted BOOLEAN, UNIQUE KEY (id))`)
	require.NoError(t, err)
	_, err = reconcile.BuildPlan(src, nullable)
	assert.ErrorIs(t, err, table.ErrNoPrimaryKey)
}

func TestCheckMySQL(t *testing.T) {
	assert.NoError(t, CheckMySQL("UPDATE `t` SET `t`.`a` = TRUE WHERE (`t`.`a`, `t`.`b`) NOT IN (SELECT `u`.`a`, `u`.`b` FROM `u`)"))
	assert.Error(t, CheckMySQL("UPDATE SET"))
	assert.ErrorIs(t, CheckMySQL("SELECT 1; SELECT 2"), ErrNotSingle)
}
