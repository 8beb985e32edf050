package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/block/keysync/pkg/query"
)

// historyTimeLayout is fixed width so that timestamps sort as text on
// every engine.
const historyTimeLayout = "2006-01-02T15:04:05.000000000Z"

// Cycle is the outcome of one sync cycle for one table pair.
type Cycle struct {
	RunID         string
	SyncName      string
	TableName     string
	Inserted      int64
	Revived       int64
	Updated       int64
	MarkedDeleted int64
	StartedAt     time.Time
	FinishedAt    time.Time
	Error         string
}

// Duration is how long the cycle took.
func (c *Cycle) Duration() time.Duration {
	return c.FinishedAt.Sub(c.StartedAt)
}

var historyColumns = []string{
	"run_id",
	"sync_name",
	"table_name",
	"rows_inserted",
	"rows_revived",
	"rows_updated",
	"rows_marked_deleted",
	"started_at",
	"finished_at",
	"error_message",
}

// CreateHistoryTable creates the history table on the destination.
func CreateHistoryTable(ctx context.Context, db *sql.DB, d query.Dialect, tableName string) error {
	stmt := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			run_id VARCHAR(36) NOT NULL,
			sync_name VARCHAR(255) NOT NULL,
			table_name VARCHAR(255) NOT NULL,
			rows_inserted BIGINT NOT NULL,
			rows_revived BIGINT NOT NULL,
			rows_updated BIGINT NOT NULL,
			rows_marked_deleted BIGINT NOT NULL,
			started_at VARCHAR(32) NOT NULL,
			finished_at VARCHAR(32) NOT NULL,
			error_message TEXT,
			PRIMARY KEY (run_id, table_name)
		)
	`, d.QuoteIdentifier(tableName))
	_, err := db.ExecContext(ctx, stmt)
	return err
}

// RecordCycle appends one cycle to the history table.
func RecordCycle(ctx context.Context, db *sql.DB, d query.Dialect, tableName string, cycle *Cycle) error {
	var errMsg any
	if cycle.Error != "" {
		errMsg = cycle.Error
	}
	c, err := query.Render(d, &query.InsertValues{
		Table:   &query.Table{Name: tableName},
		Columns: historyColumns,
		Rows: [][]any{{
			cycle.RunID,
			cycle.SyncName,
			cycle.TableName,
			cycle.Inserted,
			cycle.Revived,
			cycle.Updated,
			cycle.MarkedDeleted,
			cycle.StartedAt.UTC().Format(historyTimeLayout),
			cycle.FinishedAt.UTC().Format(historyTimeLayout),
			errMsg,
		}},
	})
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, c.SQL, c.Args...)
	return err
}

// LastCycle loads the most recent cycle of a table pair. It returns
// (nil, nil) when the pair has never run.
func LastCycle(ctx context.Context, db *sql.DB, d query.Dialect, tableName, syncName, pairName string) (*Cycle, error) {
	stmt := fmt.Sprintf(`
		SELECT
			run_id,
			sync_name,
			table_name,
			rows_inserted,
			rows_revived,
			rows_updated,
			rows_marked_deleted,
			started_at,
			finished_at,
			error_message
		FROM %s
		WHERE sync_name = %s AND table_name = %s
		ORDER BY finished_at DESC
		LIMIT 1
	`, d.QuoteIdentifier(tableName), d.Placeholder(1), d.Placeholder(2))

	var (
		cycle                 Cycle
		startedAt, finishedAt string
		errMsg                sql.NullString
	)
	err := db.QueryRowContext(ctx, stmt, syncName, pairName).Scan(
		&cycle.RunID,
		&cycle.SyncName,
		&cycle.TableName,
		&cycle.Inserted,
		&cycle.Revived,
		&cycle.Updated,
		&cycle.MarkedDeleted,
		&startedAt,
		&finishedAt,
		&errMsg,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if cycle.StartedAt, err = time.Parse(historyTimeLayout, startedAt); err != nil {
		return nil, fmt.Errorf("invalid started_at %q: %w", startedAt, err)
	}
	if cycle.FinishedAt, err = time.Parse(historyTimeLayout, finishedAt); err != nil {
		return nil, fmt.Errorf("invalid finished_at %q: %w", finishedAt, err)
	}
	cycle.Error = errMsg.String
	return &cycle, nil
}
