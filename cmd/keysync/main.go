package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/block/keysync/pkg/buildinfo"
)

// Set with -ldflags by the release build.
var (
	version string
	commit  string
	date    string
)

var cli struct {
	Run     RunCmd     `cmd:"" help:"Sync every configured table pair, once or on an interval."`
	Plan    PlanCmd    `cmd:"" help:"Print the sync statements without executing them."`
	Migrate MigrateCmd `cmd:"" help:"Apply or roll back destination schema revisions."`
	Version VersionCmd `cmd:"" help:"Print version information."`
}

func main() {
	buildinfo.Set(version, commit, date)
	ctx := kong.Parse(&cli,
		kong.Name("keysync"),
		kong.Description("keysync: primary key and timestamp based table synchronization"),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}

type VersionCmd struct{}

func (v *VersionCmd) Run() error {
	_, err := fmt.Fprintln(os.Stdout, buildinfo.Get())
	return err
}
