// Package server implements the bootpack daemon.
//
// The daemon listens on a Unix domain socket for JSON-encoded commands
// from the bootpack CLI. Each connection carries a single request-response
// exchange: the client sends a newline-delimited JSON envelope, the
// server dispatches the command, and writes the result back before
// closing the connection. Closing the connection early cancels a running
// build.
//
// Supported commands are build, status, and shutdown. Builds are delegated
// to the build package, which in turn uses the runtime package for container
// operations against containerd. Builds share one dependency cache.
//
// Example usage:
//
//	srv, err := server.New(server.Config{
//	    ContainerdAddress:   "/run/containerd/containerd.sock",
//	    ContainerdNamespace: "bootpack",
//	})
//	if err != nil {
//	    return err
//	}
//
//	if err := srv.Start(); err != nil {
//	    return err
//	}
//	defer srv.Stop()
//
//	<-srv.Done()
package server
