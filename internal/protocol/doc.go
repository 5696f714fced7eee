// Package protocol defines the messages exchanged between the bootpack CLI
// and daemon.
//
// Every message is a single JSON envelope terminated by a newline. The
// envelope names a command and carries an optional command-specific payload.
// A connection carries exactly one request and one response; the daemon
// answers with [CmdOK] and a result payload, or [CmdError] and an
// [ErrorResult].
//
//	{"command":"build","payload":{"root":"/src/sns-api","output":"dist"}}
//	{"command":"ok","payload":{"output":"dist","platforms":[...]}}
package protocol
