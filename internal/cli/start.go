package cli

import (
	"context"
	"log/slog"

	"github.com/cruciblehq/bootpack/internal"
	"github.com/cruciblehq/bootpack/internal/server"
)

// Represents the 'bootpack start' command.
type StartCmd struct {
	CacheDir string `help:"Dependency cache directory." placeholder:"DIR" type:"path"`
}

// Executes the start command.
//
// Starts the daemon on a Unix domain socket and blocks until the context is
// cancelled (e.g. via SIGINT or SIGTERM) or a client requests shutdown.
func (c *StartCmd) Run(ctx context.Context) error {
	srv, err := server.New(server.Config{
		SocketPath:          RootCmd.Socket,
		CacheDir:            c.CacheDir,
		ContainerdAddress:   RootCmd.Containerd,
		ContainerdNamespace: RootCmd.Namespace,
		Snapshotter:         RootCmd.Snapshotter,
	})
	if err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		srv.Stop()
		return err
	}

	slog.Info(internal.Name + " is running")

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case <-srv.Done():
	}

	return srv.Stop()
}
