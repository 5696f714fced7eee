package cli

import (
	"context"
	"fmt"

	"github.com/cruciblehq/bootpack/internal/client"
)

// Represents the 'bootpack status' command.
type StatusCmd struct{}

// Executes the status command.
func (c *StatusCmd) Run(ctx context.Context) error {
	status, err := client.New(socketPath()).Status(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("version: %s\npid:     %d\nuptime:  %s\nbuilds:  %d\nactive:  %d\n",
		status.Version, status.Pid, status.Uptime, status.Builds, status.Active)
	return nil
}

// Represents the 'bootpack stop' command.
type StopCmd struct{}

// Executes the stop command.
func (c *StopCmd) Run(ctx context.Context) error {
	return client.New(socketPath()).Shutdown(ctx)
}
