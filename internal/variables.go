package internal

import (
	"fmt"
	"runtime"
	"strings"
)

const (
	defaultUndefined  = "(undefined)" // Placeholder for unset build variables.
	defaultLocalBuild = "(local)"     // Version string of developer builds.
	mainBranch        = "main"        // Stage omitted from release version strings.
)

var (
	version   = "" // Release version (e.g., "0.4.0").
	stage     = "" // Git branch the binary was built from.
	gitCommit = "" // Abbreviated commit hash.

	rawQuiet   = "false"
	rawDebug   = "false"
	rawVerbose = "false"
)

// Returns the release version without a leading "v", or "(undefined)".
func Version() string {
	v := strings.ToLower(strings.TrimSpace(version))
	if v == "" {
		return defaultUndefined
	}
	return strings.TrimPrefix(v, "v")
}

// Returns the lowercased build stage, or "(undefined)".
func Stage() string {
	s := strings.ToLower(strings.TrimSpace(stage))
	if s == "" {
		return defaultUndefined
	}
	return s
}

// Returns the git commit hash, or "(undefined)".
func GitCommit() string {
	c := strings.TrimSpace(gitCommit)
	if c == "" {
		return defaultUndefined
	}
	return c
}

// Returns the architecture the binary was compiled for.
func Arch() string {
	return runtime.GOARCH
}

// Returns true unless version, stage, and commit were all injected by the
// release pipeline.
func IsLocal() bool {
	return strings.TrimSpace(version) == "" ||
		strings.TrimSpace(gitCommit) == "" ||
		strings.TrimSpace(stage) == ""
}

// Returns the human-readable version line.
//
// Local builds report "(local)". Release builds report
// "<version>[+<stage>] <commit> [<arch>]", where the stage suffix is omitted
// for the main branch.
func VersionString() string {
	if IsLocal() {
		return defaultLocalBuild
	}

	suffix := ""
	if s := Stage(); s != mainBranch {
		suffix = "+" + s
	}

	return fmt.Sprintf("%s%s %s [%s]", Version(), suffix, GitCommit(), Arch())
}
