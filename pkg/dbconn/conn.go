package dbconn

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/block/keysync/pkg/utils"
	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const maxConnLifetime = time.Minute * 3

// Supported engine names. They match the type names used in configuration.
const (
	FlavorMySQL      = "mysql"
	FlavorPostgreSQL = "postgresql"
	FlavorSQLite     = "sqlite"
	FlavorDuckDB     = "duckdb"
)

// driverName maps an engine to its registered database/sql driver.
func driverName(flavor string) (string, error) {
	switch flavor {
	case FlavorMySQL:
		return "mysql", nil
	case FlavorPostgreSQL:
		return "pgx", nil
	case FlavorSQLite:
		return "sqlite", nil
	case FlavorDuckDB:
		return "duckdb", nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", flavor)
	}
}

// newMySQLDSN appends the session settings every MySQL connection uses.
func newMySQLDSN(dsn string, config *DBConfig) (string, error) {
	if _, err := mysql.ParseDSN(dsn); err != nil {
		return "", err
	}
	ops := []string{
		fmt.Sprintf("%s=%s", "time_zone", url.QueryEscape(`"+00:00"`)),
		fmt.Sprintf("%s=%s", "innodb_lock_wait_timeout", url.QueryEscape(strconv.Itoa(config.InnodbLockWaitTimeout))),
		fmt.Sprintf("%s=%s", "lock_wait_timeout", url.QueryEscape(strconv.Itoa(config.LockWaitTimeout))),
		fmt.Sprintf("%s=%s", "transaction_isolation", url.QueryEscape(`"read-committed"`)),
		// Timestamps scan as time.Time.
		fmt.Sprintf("%s=%s", "parseTime", "true"),
		// Recycle the connection if we inadvertently connect to an old
		// primary which is now a read only replica.
		fmt.Sprintf("%s=%s", "rejectReadOnly", "true"),
		fmt.Sprintf("%s=%s", "allowNativePasswords", "true"),
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + strings.Join(ops, "&"), nil
}

// New is similar to sql.Open except it picks the driver for flavor,
// standardizes MySQL sessions, pings the handle and runs the configured
// init statements.
func New(ctx context.Context, flavor, inputDSN string, config *DBConfig) (*sql.DB, error) {
	driver, err := driverName(flavor)
	if err != nil {
		return nil, err
	}
	dsn := inputDSN
	if flavor == FlavorMySQL {
		if dsn, err = newMySQLDSN(inputDSN, config); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		utils.ErrInErr(db.Close())
		return nil, err
	}
	switch flavor {
	case FlavorSQLite, FlavorDuckDB:
		// In-process engines: ATTACH and pragmas are per connection.
		db.SetMaxOpenConns(1)
	default:
		db.SetMaxOpenConns(config.MaxOpenConnections)
		db.SetConnMaxLifetime(maxConnLifetime)
	}
	if err := ApplyInit(ctx, db, config.InitStatements); err != nil {
		utils.ErrInErr(db.Close())
		return nil, err
	}
	return db, nil
}
