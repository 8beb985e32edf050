package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/block/keysync/pkg/query"
	"github.com/block/keysync/pkg/revision"
	"github.com/block/keysync/pkg/sync"
	"github.com/block/keysync/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keysync.log")
	logger, closer, err := newLogger(sync.LoggingConfig{Level: "warn", Format: "json", Output: path})
	require.NoError(t, err)
	logger.Info("dropped")
	logger.Warn("kept", "table", "accounts")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), `"msg":"kept","table":"accounts"`)

	_, closer, err = newLogger(sync.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	require.NoError(t, closer.Close())

	_, _, err = newLogger(sync.LoggingConfig{Level: "loud", Format: "json"})
	require.ErrorContains(t, err, "invalid log level")
	_, _, err = newLogger(sync.LoggingConfig{Level: "info", Format: "xml"})
	require.ErrorContains(t, err, "invalid log format")
}

func TestPlanFromDDL(t *testing.T) {
	src := `CREATE TABLE src (
		id BIGINT NOT NULL PRIMARY KEY,
		name VARCHAR(64),
		last_upd_date DATETIME NOT NULL
	)`
	dst := `CREATE TABLE dst (
		id BIGINT NOT NULL,
		name VARCHAR(64),
		last_upd_date DATETIME NOT NULL,
		is_deleted TINYINT(1) NOT NULL DEFAULT 0,
		PRIMARY KEY (id)
	)`
	cmd := &PlanCmd{Dialect: "mysql", TimestampColumn: "last_upd_date", DeletedColumn: "is_deleted", Revive: true}
	var buf bytes.Buffer
	require.NoError(t, cmd.planFromDDL(&buf, src, dst))
	out := buf.String()
	for _, step := range []string{"insert", "revive", "update", "mark_deleted"} {
		assert.Contains(t, out, "-- dst: "+step+"\n")
	}
	assert.Contains(t, out, "INSERT INTO `dst`")
	assert.Equal(t, 4, strings.Count(out, ";\n"))

	cmd.Dialect = "postgresql"
	buf.Reset()
	require.NoError(t, cmd.planFromDDL(&buf, src, dst))
	assert.Contains(t, buf.String(), "AS MATERIALIZED")

	err := cmd.planFromDDL(&buf, src, `CREATE TABLE dst (id BIGINT NOT NULL PRIMARY KEY)`)
	require.Error(t, err)
	err = cmd.planFromDDL(&buf, "SELECT 1", dst)
	assert.ErrorContains(t, err, "source")
}

func TestPrintCurrent(t *testing.T) {
	db := testutils.OpenSQLite(t)
	chain, err := revision.NewChain([]*revision.Revision{
		{ID: "a1", Upgrade: []revision.Op{&revision.SQL{Statement: "CREATE TABLE t (id INTEGER)"}}},
	})
	require.NoError(t, err)
	mg := revision.NewMigrator(db, &query.SQLite{}, chain)

	var buf bytes.Buffer
	require.NoError(t, printCurrent(context.Background(), &buf, mg))
	assert.Equal(t, "base\n", buf.String())

	require.NoError(t, mg.Upgrade(t.Context(), revision.Head))
	buf.Reset()
	require.NoError(t, printCurrent(t.Context(), &buf, mg))
	assert.Equal(t, "a1\n", buf.String())
}
