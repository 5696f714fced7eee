package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/cruciblehq/bootpack/internal"
	"github.com/cruciblehq/bootpack/internal/build"
	"github.com/cruciblehq/bootpack/internal/protocol"
)

// Handles a build command.
//
// The build runs on the daemon's host and is cancelled if the client
// disconnects before it completes.
func (s *Server) handleBuild(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.BuildRequest](payload)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	opts := build.Options{
		Recipe:    req.Recipe,
		Resource:  req.Resource,
		Tag:       req.Tag,
		Root:      req.Root,
		Output:    req.Output,
		Platforms: req.Platforms,
		BuildArgs: req.BuildArgs,
		Cache:     s.cache,
	}
	if req.NoCache {
		opts.Cache = nil
	}

	s.mu.Lock()
	s.active++
	s.mu.Unlock()

	result, err := s.build(ctx, opts)

	s.mu.Lock()
	s.active--
	if err == nil {
		s.builds++
	}
	s.mu.Unlock()

	if err != nil {
		slog.Error("build failed", "resource", req.Resource, "error", err)
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	s.respond(conn, protocol.CmdOK, result)
}

// Handles a status command.
func (s *Server) handleStatus(conn net.Conn) {
	s.mu.Lock()
	builds, active := s.builds, s.active
	s.mu.Unlock()

	uptime := time.Since(s.startedAt).Truncate(time.Second)

	s.respond(conn, protocol.CmdOK, &protocol.StatusResult{
		Running: true,
		Version: internal.VersionString(),
		Pid:     os.Getpid(),
		Uptime:  uptime.String(),
		Builds:  builds,
		Active:  active,
	})
}

// Handles a shutdown command.
func (s *Server) handleShutdown(conn net.Conn) {
	s.respond(conn, protocol.CmdOK, nil)
	slog.Info("shutdown requested")

	go s.Stop()
}
