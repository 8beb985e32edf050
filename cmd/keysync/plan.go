package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/block/keysync/pkg/query"
	"github.com/block/keysync/pkg/reconcile"
	"github.com/block/keysync/pkg/statement"
	"github.com/block/keysync/pkg/sync"
	"github.com/block/keysync/pkg/utils"
)

// PlanCmd prints the statements of a cycle. With a config it describes the
// live tables; with two CREATE TABLE files it works offline.
type PlanCmd struct {
	Config          string `help:"Path to YAML configuration file. The tables are described from the live databases." type:"existingfile"`
	SourceDDL       string `name:"source-ddl" help:"CREATE TABLE statement of the source table (MySQL syntax)." type:"existingfile"`
	DestinationDDL  string `name:"destination-ddl" help:"CREATE TABLE statement of the destination table (MySQL syntax)." type:"existingfile"`
	Dialect         string `help:"Dialect to render offline plans in." default:"mysql" enum:"mysql,postgresql,sqlite,duckdb,ansi"`
	TimestampColumn string `help:"Change timestamp column for offline plans." default:"last_upd_date"`
	DeletedColumn   string `help:"Soft delete flag column for offline plans." default:"is_deleted"`
	Revive          bool   `help:"Include the revive statement in offline plans."`
}

func (c *PlanCmd) Run() error {
	if c.Config != "" {
		if c.SourceDDL != "" || c.DestinationDDL != "" {
			return errors.New("--config cannot be combined with --source-ddl or --destination-ddl")
		}
		return c.planFromConfig(context.Background(), os.Stdout)
	}
	if c.SourceDDL == "" || c.DestinationDDL == "" {
		return errors.New("either --config or both --source-ddl and --destination-ddl are required")
	}
	srcDDL, err := os.ReadFile(c.SourceDDL)
	if err != nil {
		return err
	}
	dstDDL, err := os.ReadFile(c.DestinationDDL)
	if err != nil {
		return err
	}
	return c.planFromDDL(os.Stdout, string(srcDDL), string(dstDDL))
}

func (c *PlanCmd) planFromConfig(ctx context.Context, w io.Writer) error {
	config, err := sync.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	runner, err := sync.NewRunner(config)
	if err != nil {
		return err
	}
	defer utils.CloseAndLog(runner)
	if err := runner.Open(ctx); err != nil {
		return err
	}
	steps, err := runner.Plan(ctx)
	if err != nil {
		return err
	}
	for _, s := range steps {
		if _, err := fmt.Fprintf(w, "-- %s: %s\n%s;\n\n", s.Table, s.Step, s.SQL); err != nil {
			return err
		}
	}
	return nil
}

func (c *PlanCmd) planFromDDL(w io.Writer, srcDDL, dstDDL string) error {
	src, err := statement.ParseCreateTable(srcDDL)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	dst, err := statement.ParseCreateTable(dstDDL)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	d, err := query.DialectFor(c.Dialect)
	if err != nil {
		return err
	}
	opts := []reconcile.Option{
		reconcile.WithTimestampColumn(c.TimestampColumn),
		reconcile.WithDeletedColumn(c.DeletedColumn),
	}
	if c.Revive {
		opts = append(opts, reconcile.WithRevive())
	}
	plan, err := reconcile.BuildPlan(src, dst, opts...)
	if err != nil {
		return err
	}
	for _, s := range plan.Steps() {
		compiled, err := query.Render(d, s.Statement)
		if err != nil {
			return err
		}
		if d.Name() == "mysql" {
			if err := statement.CheckMySQL(compiled.SQL); err != nil {
				return fmt.Errorf("%s does not parse: %w", s.Name, err)
			}
		}
		if _, err := fmt.Fprintf(w, "-- %s: %s\n%s;\n\n", dst, s.Name, compiled.SQL); err != nil {
			return err
		}
	}
	return nil
}
