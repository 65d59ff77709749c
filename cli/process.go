package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/alecthomas/kong"

	"github.com/robinvdvleuten/payflow/csvio"
	"github.com/robinvdvleuten/payflow/engine"
	"github.com/robinvdvleuten/payflow/telemetry"
)

type ProcessCmd struct {
	File    FileOrStdin `help:"Transaction CSV file (use '-' for stdin, or omit for stdin)." arg:"" optional:""`
	Output  string      `help:"Write the report to a file instead of stdout." short:"o" type:"path"`
	Pretty  bool        `help:"Render the report as an aligned table instead of CSV."`
	Force   bool        `help:"Overwrite the output file without confirmation." short:"f"`
	Verbose bool        `help:"List every rejected transaction on stderr." short:"v"`
	Strict  bool        `help:"Exit with a non-zero status when any transaction was rejected."`
}

func (cmd *ProcessCmd) Run(ctx *kong.Context, globals *Globals) error {
	if err := cmd.File.EnsureContents(); err != nil {
		return err
	}

	runCtx := context.Background()

	var collector telemetry.Collector
	var processTimer telemetry.Timer
	var once sync.Once

	reportTelemetry := func() {
		once.Do(func() {
			if collector != nil {
				processTimer.End()
				_, _ = fmt.Fprintln(ctx.Stderr)
				collector.Report(ctx.Stderr)
			}
		})
	}

	if globals.Telemetry {
		collector = telemetry.NewTimingCollector()
		runCtx = telemetry.WithCollector(runCtx, collector)

		processTimer = collector.Start(fmt.Sprintf("process %s", filepath.Base(cmd.File.Filename)))
		defer reportTelemetry()
	}

	contents, err := cmd.File.GetContents()
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	eng := engine.New()
	source := csvio.NewSource(bytes.NewReader(contents))
	if err := eng.Process(runCtx, source); err != nil {
		return err
	}

	cmd.reportRejections(ctx.Stderr, eng.Rejections())

	if err := cmd.writeReport(ctx, eng.Report()); err != nil {
		return err
	}

	if cmd.Strict && len(eng.Rejections()) > 0 {
		reportTelemetry()
		return NewCommandError(1)
	}
	return nil
}

// reportRejections summarizes skipped transactions on stderr. The run
// itself still succeeds; rejections are informational unless --strict.
func (cmd *ProcessCmd) reportRejections(w io.Writer, rejections []error) {
	if len(rejections) == 0 {
		return
	}

	if cmd.Verbose {
		for _, rejection := range rejections {
			_, _ = fmt.Fprintf(w, "%s\n", dimStyle.Render(rejection.Error()))
		}
	}
	printError(w, fmt.Sprintf("%d transaction(s) rejected", len(rejections)))
}

// writeReport emits the final snapshot to stdout or --output. An
// existing output file requires confirmation unless --force is set.
func (cmd *ProcessCmd) writeReport(ctx *kong.Context, snapshots []engine.AccountSnapshot) error {
	if cmd.Output == "" {
		if cmd.Pretty {
			_, _ = io.WriteString(ctx.Stdout, csvio.RenderTable(snapshots))
			return nil
		}
		return csvio.WriteReport(ctx.Stdout, snapshots)
	}

	if _, err := os.Stat(cmd.Output); err == nil && !cmd.Force {
		confirmed, err := promptYesNo(ctx, fmt.Sprintf("File %q already exists. Overwrite it?", cmd.Output))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if !confirmed {
			return fmt.Errorf("refusing to overwrite %s", cmd.Output)
		}
	}

	file, err := os.Create(cmd.Output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if err := csvio.WriteReport(file, snapshots); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	printSuccess(ctx.Stdout, fmt.Sprintf("Report written to %s", pathStyle.Render(cmd.Output)))
	return nil
}
