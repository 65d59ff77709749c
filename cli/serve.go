package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/alecthomas/kong"

	"github.com/robinvdvleuten/payflow/telemetry"
	"github.com/robinvdvleuten/payflow/web"
)

type ServeCmd struct {
	File  string `help:"Transaction CSV file to serve." arg:"" type:"existingfile"`
	Host  string `help:"Host to bind to." default:"127.0.0.1" env:"PAYFLOW_HOST"`
	Port  int    `help:"Port to listen on." default:"8080" env:"PAYFLOW_PORT"`
	Watch bool   `help:"Reprocess the file whenever it changes on disk." short:"w"`
}

func (cmd *ServeCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx := context.Background()

	if globals.Telemetry {
		collector := telemetry.NewTimingCollector()
		runCtx = telemetry.WithCollector(runCtx, collector)

		defer func() {
			_, _ = fmt.Fprintln(ctx.Stderr)
			collector.Report(ctx.Stderr)
		}()
	}

	inputFile, err := filepath.Abs(cmd.File)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	version := Version
	if version == "" {
		version = "dev"
	}
	commitSHA := CommitSHA
	if commitSHA == "" {
		commitSHA = "local"
	}

	server := web.New(cmd.Host, cmd.Port, inputFile)
	server.Version = version
	server.CommitSHA = commitSHA
	server.WatchEnabled = cmd.Watch

	printInfof(ctx.Stdout, "Starting server on %s:%d", cmd.Host, cmd.Port)
	printInfof(ctx.Stdout, "Serving transactions: %s", pathStyle.Render(inputFile))

	if cmd.Watch {
		printInfof(ctx.Stdout, "Watching for file changes")
	}

	return server.Start(runCtx)
}
