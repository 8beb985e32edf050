// Package dbconn opens database handles for every supported engine and
// executes statements in retryable transactions.
package dbconn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/block/keysync/pkg/query"
	"github.com/duckdb/duckdb-go/v2"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
	errCannotConnect   = 2003
	errConnLost        = 2013
	errReadOnly        = 1290
	errQueryKilled     = 1836
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
	sqlStateAdminShutdown        = "57P01"
)

type DBConfig struct {
	LockWaitTimeout       int
	InnodbLockWaitTimeout int
	MaxRetries            int
	MaxOpenConnections    int
	// InitStatements run once after the handle is opened, for example
	// to ATTACH the source database to a DuckDB or SQLite destination.
	InitStatements []string
}

func NewDBConfig() *DBConfig {
	return &DBConfig{
		LockWaitTimeout:       30,
		InnodbLockWaitTimeout: 3,
		MaxRetries:            3,
		MaxOpenConnections:    8,
	}
}

// canRetryError decides if err is a transient failure of the engine.
// A retryable error means rollback the transaction and start it again;
// the statements are never resumed part way.
func canRetryError(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errLockWaitTimeout, errDeadlock, errCannotConnect,
			errConnLost, errReadOnly, errQueryKilled:
			return true
		}
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected,
			sqlStateLockNotAvailable, sqlStateAdminShutdown:
			return true
		}
		return false
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	var duckErr *duckdb.Error
	if errors.As(err, &duckErr) {
		return duckErr.Type == duckdb.ErrorTypeTransaction
	}
	return errors.Is(err, mysql.ErrInvalidConn)
}

// RetryableTx runs fn inside a transaction, retrying the whole transaction
// up to MaxRetries times when fn or the commit fails with a retryable
// error. fn must be safe to run again from the start.
func RetryableTx(ctx context.Context, db *sql.DB, config *DBConfig, fn func(context.Context, *sql.Tx) error) error {
	var err error
	attempts := max(config.MaxRetries, 1)
	for i := range attempts {
		var isFatal bool
		err = func() error {
			trx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return err
			}
			if err := fn(ctx, trx); err != nil {
				_ = trx.Rollback()
				isFatal = !canRetryError(err)
				return err
			}
			if err := trx.Commit(); err != nil {
				isFatal = !canRetryError(err)
				return err
			}
			return nil
		}()
		if err == nil || isFatal || ctx.Err() != nil {
			return err
		}
		if i < attempts-1 {
			if berr := backoff(ctx, i); berr != nil {
				return err
			}
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", attempts, err)
}

// RetryableTransaction executes stmts in order in one transaction and
// returns the rows affected by each. Empty statements are skipped and
// count as zero.
func RetryableTransaction(ctx context.Context, db *sql.DB, config *DBConfig, stmts ...query.Compiled) ([]int64, error) {
	var counts []int64
	err := RetryableTx(ctx, db, config, func(ctx context.Context, trx *sql.Tx) error {
		counts = make([]int64, len(stmts))
		for i, stmt := range stmts {
			if stmt.SQL == "" {
				continue
			}
			res, err := trx.ExecContext(ctx, stmt.SQL, stmt.Args...)
			if err != nil {
				return err
			}
			// Some statements do not support affected rows, which is fine.
			if n, errC := res.RowsAffected(); errC == nil {
				counts[i] = n
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// Exec is like db.Exec but only returns an error.
func Exec(ctx context.Context, db *sql.DB, stmt string, args ...any) error {
	_, err := db.ExecContext(ctx, stmt, args...)
	return err
}

// ApplyInit runs init statements in order, stopping at the first failure.
func ApplyInit(ctx context.Context, db *sql.DB, stmts []string) error {
	for _, stmt := range stmts {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if err := Exec(ctx, db, stmt); err != nil {
			return fmt.Errorf("init statement %q failed: %w", stmt, err)
		}
	}
	return nil
}

// backoff sleeps a few milliseconds before retrying.
func backoff(ctx context.Context, i int) error {
	randFactor := (i + 1) * rand.Intn(10) * int(time.Millisecond)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(randFactor)):
		return nil
	}
}
