package cli

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/cruciblehq/bootpack/internal"
	"github.com/cruciblehq/bootpack/internal/paths"
	"github.com/cruciblehq/bootpack/internal/server"
)

// Represents the root command for bootpack.
var RootCmd struct {
	Quiet   bool   `short:"q" help:"Suppress informational output."`
	Verbose bool   `short:"v" help:"Enable verbose output."`
	Debug   bool   `short:"d" help:"Enable debug output."`
	Socket  string `short:"s" help:"Override the default Unix socket path." placeholder:"PATH"`

	Containerd  string `help:"Containerd socket address." default:"${containerd}" placeholder:"PATH"`
	Namespace   string `help:"Containerd namespace for images and containers." default:"${namespace}"`
	Snapshotter string `help:"Containerd snapshotter." placeholder:"NAME"`

	Build   BuildCmd   `cmd:"" help:"Package a project into an OCI image."`
	Recipe  RecipeCmd  `cmd:"" help:"Print the effective recipe for a project."`
	Start   StartCmd   `cmd:"" help:"Start the daemon."`
	Status  StatusCmd  `cmd:"" help:"Show daemon status."`
	Stop    StopCmd    `cmd:"" help:"Stop the daemon."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// Parses arguments, configures logging, and runs the selected subcommand.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kongCtx := kong.Parse(&RootCmd,
		kong.Name(internal.Name),
		kong.Description("Packages Spring Boot services into minimal OCI images.\n\nBuilds run in containerd, either directly or through the bootpack daemon."),
		kong.UsageOnError(),
		kong.Vars{
			"version":    internal.VersionString(),
			"containerd": server.DefaultContainerdAddress,
			"namespace":  server.DefaultContainerdNamespace,
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	configureLogger()

	return kongCtx.Run()
}

// Configures the global logger based on CLI flags.
func configureLogger() {
	internal.SetDebug(RootCmd.Debug || internal.IsDebug())
	internal.SetQuiet(RootCmd.Quiet || internal.IsQuiet())
	internal.SetVerbose(RootCmd.Verbose || internal.IsVerbose())

	logger, ok := slog.Default().Handler().(*log.Logger)
	if !ok {
		return // Not a charmbracelet logger, nothing to configure
	}

	logger.SetLevel(logLevel())
	logger.SetReportTimestamp(internal.IsVerbose())
	logger.SetReportCaller(internal.IsVerbose() && internal.IsDebug())
}

// Returns the log level for the current toggles.
func logLevel() log.Level {
	switch {
	case internal.IsDebug():
		return log.DebugLevel
	case internal.IsQuiet():
		return log.WarnLevel
	default:
		return log.InfoLevel
	}
}

// Returns the daemon socket path, honoring the --socket override.
func socketPath() string {
	if RootCmd.Socket != "" {
		return RootCmd.Socket
	}
	return paths.Socket()
}
