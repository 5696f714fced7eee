package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/cruciblehq/bootpack/internal/build"
	"github.com/cruciblehq/bootpack/internal/crex"
	"github.com/cruciblehq/bootpack/internal/recipe"
)

// Names the operation carried by an [Envelope].
type Command string

const (
	CmdBuild    Command = "build"    // Package a project. Payload is a [BuildRequest].
	CmdStatus   Command = "status"   // Report daemon status. No payload.
	CmdShutdown Command = "shutdown" // Stop the daemon. No payload.
	CmdOK       Command = "ok"       // Successful response.
	CmdError    Command = "error"    // Failed response. Payload is an [ErrorResult].
)

// Wire format of every message.
type Envelope struct {
	Command Command         `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Asks the daemon to package a project.
//
// Paths are interpreted on the daemon's host; the CLI sends absolute paths.
type BuildRequest struct {
	Root      string            `json:"root"`
	Output    string            `json:"output"`
	Resource  string            `json:"resource"`
	Tag       string            `json:"tag,omitempty"`
	Platforms []string          `json:"platforms,omitempty"`
	BuildArgs map[string]string `json:"buildArgs,omitempty"`
	Recipe    *recipe.Recipe    `json:"recipe,omitempty"` // Effective recipe. Nil uses the default.
	NoCache   bool              `json:"noCache,omitempty"`
}

// Reply to a successful build.
type BuildResult = build.Result

// Reply to a status command.
type StatusResult struct {
	Running bool   `json:"running"`
	Version string `json:"version"`
	Pid     int    `json:"pid"`
	Uptime  string `json:"uptime"`
	Builds  int    `json:"builds"` // Builds completed successfully.
	Active  int    `json:"active"` // Builds in progress.
}

// Reply to a failed command.
type ErrorResult struct {
	Message string `json:"message"`
}

// Serializes a command and its payload into an envelope. A nil payload is
// omitted.
func Encode(cmd Command, payload any) ([]byte, error) {
	env := Envelope{Command: cmd}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, crex.Wrap(ErrEncode, err)
		}
		env.Payload = raw
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, crex.Wrap(ErrEncode, err)
	}
	return data, nil
}

// Parses an envelope. Surrounding whitespace, including the terminating
// newline, is ignored. Returns the envelope and its raw payload.
func Decode(data []byte) (*Envelope, json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(bytes.TrimSpace(data), &env); err != nil {
		return nil, nil, crex.Wrap(ErrDecode, err)
	}
	if env.Command == "" {
		return nil, nil, crex.Wrapf(ErrDecode, "missing command")
	}
	return &env, env.Payload, nil
}

// Parses a command payload into T. Unknown fields are rejected.
func DecodePayload[T any](payload json.RawMessage) (*T, error) {
	var v T
	if len(payload) == 0 {
		return &v, nil
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return nil, crex.Wrap(ErrDecode, err)
	}
	return &v, nil
}
