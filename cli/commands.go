package cli

var (
	Version   = ""
	CommitSHA = ""
)

// Globals defines global flags available to all commands.
type Globals struct {
	Telemetry bool `help:"Show timing telemetry for operations."`
}

type Commands struct {
	Globals

	Process ProcessCmd `cmd:"" help:"Process a transaction CSV file and emit the final account report."`
	Serve   ServeCmd   `cmd:"" help:"Start an HTTP server for inspecting a processed transaction file."`
}
