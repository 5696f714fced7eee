package build

import "errors"

var (
	ErrBuild               = errors.New("build failed")
	ErrFileSystemOperation = errors.New("file system operation failed")
	ErrCopy                = errors.New("copy failed")
	ErrCommandFailed       = errors.New("command failed")
	ErrCompile             = errors.New("artifact build failed")
	ErrRuntimeImage        = errors.New("runtime linking failed")
	ErrArtifactNotFound    = errors.New("no artifact matched")
	ErrAmbiguousArtifact   = errors.New("more than one artifact matched")
	ErrProvision           = errors.New("identity provisioning failed")
	ErrPlaceholder         = errors.New("placeholder state file not empty")
	ErrShellQuote          = errors.New("value cannot be quoted for the shell")
)
