package build

import (
	"maps"
	"slices"
)

// Default shell used for commands when no shell has been set.
const defaultShell = "/bin/sh"

// Overrides for the shell, working directory, and environment of commands
// run inside a stage container. Empty fields leave the current value alone.
type modifier struct {
	Shell   string
	Workdir string
	Env     map[string]string
}

// Tracks the shell, working directory, and environment accumulated within
// one stage.
//
// apply changes the state for every later command, like a WORKDIR or ENV
// instruction. resolve computes the values for a single command without
// touching the state.
type stepState struct {
	shell   string
	workdir string
	env     map[string]string
}

// Creates a new [stepState] with default values.
func newStepState() *stepState {
	return &stepState{
		shell: defaultShell,
		env:   make(map[string]string),
	}
}

// Persists the modifier's fields into the state.
func (s *stepState) apply(m modifier) {
	if m.Shell != "" {
		s.shell = m.Shell
	}
	if m.Workdir != "" {
		s.workdir = m.Workdir
	}
	maps.Copy(s.env, m.Env)
}

// Returns a new [stepState] with m overlaid on the receiver, which is left
// unchanged.
func (s *stepState) resolve(m modifier) *stepState {
	resolved := &stepState{
		shell:   s.shell,
		workdir: s.workdir,
		env:     make(map[string]string, len(s.env)+len(m.Env)),
	}
	maps.Copy(resolved.env, s.env)
	resolved.apply(m)
	return resolved
}

// Formats the environment as sorted "key=value" strings for container exec.
func (s *stepState) environ() []string {
	env := make([]string, 0, len(s.env))
	for _, k := range slices.Sorted(maps.Keys(s.env)) {
		env = append(env, k+"="+s.env[k])
	}
	return env
}
