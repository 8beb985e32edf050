package revision

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/block/keysync/pkg/dbconn"
	"github.com/block/keysync/pkg/query"
)

const (
	// DefaultVersionTable holds the id of the applied head.
	DefaultVersionTable = "keysync_revision"
	// Head and Base are the symbolic targets for Upgrade and Downgrade.
	Head = "head"
	Base = "base"
)

// Migrator moves a database along a chain of revisions.
type Migrator struct {
	db           *sql.DB
	dialect      query.Dialect
	chain        *Chain
	versionTable string
	dbConfig     *dbconn.DBConfig
	logger       *slog.Logger
}

// NewMigrator returns a migrator for db. Each revision is applied in its
// own transaction together with the version row.
func NewMigrator(db *sql.DB, d query.Dialect, chain *Chain) *Migrator {
	return &Migrator{
		db:           db,
		dialect:      d,
		chain:        chain,
		versionTable: DefaultVersionTable,
		dbConfig:     dbconn.NewDBConfig(),
		logger:       slog.Default(),
	}
}

func (m *Migrator) SetLogger(logger *slog.Logger) {
	m.logger = logger
}

// SetVersionTable overrides the table the head is stored in.
func (m *Migrator) SetVersionTable(name string) {
	m.versionTable = name
}

func (m *Migrator) ensureVersionTable(ctx context.Context) error {
	return dbconn.Exec(ctx, m.db, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (version_num VARCHAR(64) NOT NULL PRIMARY KEY)",
		m.dialect.QuoteIdentifier(m.versionTable)))
}

// Current returns the id of the applied head, or "" when nothing is applied.
func (m *Migrator) Current(ctx context.Context) (string, error) {
	if err := m.ensureVersionTable(ctx); err != nil {
		return "", err
	}
	var id string
	err := m.db.QueryRowContext(ctx, fmt.Sprintf("SELECT version_num FROM %s",
		m.dialect.QuoteIdentifier(m.versionTable))).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

// Upgrade applies revisions after the current head up to and including
// target. Head or an empty target means the newest revision.
func (m *Migrator) Upgrade(ctx context.Context, target string) error {
	if target == "" || target == Head {
		target = m.chain.Head()
	}
	current, err := m.Current(ctx)
	if err != nil {
		return err
	}
	from, err := m.chain.position(current)
	if err != nil {
		return fmt.Errorf("database is at %w", err)
	}
	to, err := m.chain.position(target)
	if err != nil {
		return err
	}
	if to < from {
		return fmt.Errorf("revision %s is older than the current %s, use downgrade", target, current)
	}
	for _, rev := range m.chain.revisions[from:to] {
		m.logger.Info("upgrading", "revision", rev.ID, "description", rev.Description)
		if err := m.apply(ctx, rev.Upgrade, rev.ID); err != nil {
			return fmt.Errorf("upgrade to %s failed: %w", rev.ID, err)
		}
	}
	return nil
}

// Downgrade reverts revisions down to target, which stays applied.
// Base reverts everything.
func (m *Migrator) Downgrade(ctx context.Context, target string) error {
	switch target {
	case "":
		return fmt.Errorf("%w, use %q to revert everything", ErrNoTarget, Base)
	case Base:
		target = ""
	}
	current, err := m.Current(ctx)
	if err != nil {
		return err
	}
	from, err := m.chain.position(current)
	if err != nil {
		return fmt.Errorf("database is at %w", err)
	}
	to, err := m.chain.position(target)
	if err != nil {
		return err
	}
	if to > from {
		return fmt.Errorf("revision %s is newer than the current %s, use upgrade", target, current)
	}
	for i := from - 1; i >= to; i-- {
		rev := m.chain.revisions[i]
		m.logger.Info("downgrading", "revision", rev.ID, "to", rev.Parent)
		if err := m.apply(ctx, rev.Downgrade, rev.Parent); err != nil {
			return fmt.Errorf("downgrade of %s failed: %w", rev.ID, err)
		}
	}
	return nil
}

// apply runs ops and records version as the new head in one transaction.
func (m *Migrator) apply(ctx context.Context, ops []Op, version string) error {
	var stmts []query.Compiled
	for _, op := range ops {
		rendered, err := op.Statements(m.dialect)
		if err != nil {
			return err
		}
		for _, s := range rendered {
			stmts = append(stmts, query.Compiled{SQL: s})
		}
	}
	stmts = append(stmts, query.Compiled{SQL: "DELETE FROM " + m.dialect.QuoteIdentifier(m.versionTable)})
	if version != "" {
		c, err := query.Render(m.dialect, &query.InsertValues{
			Table:   &query.Table{Name: m.versionTable},
			Columns: []string{"version_num"},
			Rows:    [][]any{{version}},
		})
		if err != nil {
			return err
		}
		stmts = append(stmts, c)
	}
	_, err := dbconn.RetryableTransaction(ctx, m.db, m.dbConfig, stmts...)
	return err
}
