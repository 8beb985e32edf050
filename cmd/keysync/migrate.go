package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/block/keysync/pkg/dbconn"
	"github.com/block/keysync/pkg/query"
	"github.com/block/keysync/pkg/revision"
	"github.com/block/keysync/pkg/sync"
	"github.com/block/keysync/pkg/utils"
)

// MigrateCmd moves the destination schema along the revision chain.
type MigrateCmd struct {
	Upgrade   UpgradeCmd   `cmd:"" help:"Apply revisions up to a target (default head)."`
	Downgrade DowngradeCmd `cmd:"" help:"Roll back revisions down to a target, or base."`
	Current   CurrentCmd   `cmd:"" help:"Print the applied revision."`
}

// MigrateFlags are shared by every migrate subcommand.
type MigrateFlags struct {
	Config string `help:"Path to YAML configuration file naming the destination." type:"existingfile" required:""`
	Dir    string `help:"Directory of revision files." type:"existingdir" default:"revisions"`
	Table  string `help:"Table storing the applied revision." default:"keysync_revision"`
}

type UpgradeCmd struct {
	Flags  MigrateFlags `embed:""`
	Target string       `arg:"" optional:"" help:"Revision id, or head." default:"head"`
}

type DowngradeCmd struct {
	Flags  MigrateFlags `embed:""`
	Target string       `arg:"" help:"Revision id to keep, or base to roll back everything."`
}

type CurrentCmd struct {
	Flags MigrateFlags `embed:""`
}

func (c *UpgradeCmd) Run() error {
	return c.Flags.with(func(ctx context.Context, mg *revision.Migrator) error {
		return mg.Upgrade(ctx, c.Target)
	})
}

func (c *DowngradeCmd) Run() error {
	return c.Flags.with(func(ctx context.Context, mg *revision.Migrator) error {
		return mg.Downgrade(ctx, c.Target)
	})
}

func (c *CurrentCmd) Run() error {
	return c.Flags.with(func(ctx context.Context, mg *revision.Migrator) error {
		return printCurrent(ctx, os.Stdout, mg)
	})
}

func printCurrent(ctx context.Context, w io.Writer, mg *revision.Migrator) error {
	current, err := mg.Current(ctx)
	if err != nil {
		return err
	}
	if current == "" {
		current = revision.Base
	}
	_, err = fmt.Fprintln(w, current)
	return err
}

// with opens the destination and builds a migrator for fn.
func (m *MigrateFlags) with(fn func(context.Context, *revision.Migrator) error) error {
	config, err := sync.LoadConfig(m.Config)
	if err != nil {
		return err
	}
	logger, logCloser, err := newLogger(config.Sync.Logging)
	if err != nil {
		return err
	}
	defer utils.CloseAndLog(logCloser)

	chain, err := revision.LoadDir(m.Dir)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dest := config.Sync.Destination
	engine := sync.ParseTargetType(dest.Type).String()
	d, err := query.DialectFor(engine)
	if err != nil {
		return err
	}
	dbConfig := dbconn.NewDBConfig()
	dbConfig.InitStatements = dest.Init
	db, err := dbconn.New(ctx, engine, dest.DSN, dbConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to destination: %w", err)
	}
	defer utils.CloseAndLog(db)

	mg := revision.NewMigrator(db, d, chain)
	mg.SetLogger(logger)
	mg.SetVersionTable(m.Table)
	return fn(ctx, mg)
}
