package client

import (
	"bufio"
	"context"
	"encoding/json"
	"net"

	"github.com/cruciblehq/bootpack/internal/crex"
	"github.com/cruciblehq/bootpack/internal/protocol"
)

// Sends commands to the daemon listening on a Unix socket.
type Client struct {
	socketPath string
}

// Creates a client for the daemon at socketPath.
func New(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Asks the daemon to package a project and waits for the result.
func (c *Client) Build(ctx context.Context, req *protocol.BuildRequest) (*protocol.BuildResult, error) {
	payload, err := c.call(ctx, protocol.CmdBuild, req)
	if err != nil {
		return nil, err
	}
	return protocol.DecodePayload[protocol.BuildResult](payload)
}

// Returns the daemon's status.
func (c *Client) Status(ctx context.Context) (*protocol.StatusResult, error) {
	payload, err := c.call(ctx, protocol.CmdStatus, nil)
	if err != nil {
		return nil, err
	}
	return protocol.DecodePayload[protocol.StatusResult](payload)
}

// Asks the daemon to shut down.
func (c *Client) Shutdown(ctx context.Context) error {
	_, err := c.call(ctx, protocol.CmdShutdown, nil)
	return err
}

// Performs one request-response exchange and returns the reply payload.
//
// An error reply is returned as [ErrDaemon] carrying the daemon's message.
func (c *Client) call(ctx context.Context, cmd protocol.Command, payload any) (json.RawMessage, error) {
	data, err := protocol.Encode(cmd, payload)
	if err != nil {
		return nil, crex.Wrap(ErrClient, err)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, crex.Wrapf(ErrNotRunning, "%s: %w", c.socketPath, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if _, err := conn.Write(append(data, '\n')); err != nil {
		return nil, crex.Wrap(ErrClient, err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		if ctx.Err() != nil {
			return nil, crex.Wrap(ErrClient, ctx.Err())
		}
		return nil, crex.Wrap(ErrClient, err)
	}

	env, reply, err := protocol.Decode(line)
	if err != nil {
		return nil, crex.Wrap(ErrClient, err)
	}

	switch env.Command {
	case protocol.CmdOK:
		return reply, nil
	case protocol.CmdError:
		res, err := protocol.DecodePayload[protocol.ErrorResult](reply)
		if err != nil {
			return nil, crex.Wrap(ErrClient, err)
		}
		return nil, crex.Wrapf(ErrDaemon, "%s", res.Message)
	default:
		return nil, crex.Wrapf(ErrClient, "unexpected reply %q", env.Command)
	}
}
