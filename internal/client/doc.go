// Package client talks to a running bootpack daemon over its Unix socket.
//
// Every call opens a fresh connection, sends one request, and waits for the
// single response. Cancelling the call's context closes the connection,
// which in turn cancels the work on the daemon.
package client
