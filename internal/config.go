package internal

import (
	"strconv"
	"sync/atomic"
)

// Name of the program, used for the CLI, log prefix, and XDG subdirectories.
const Name = "bootpack"

var (
	quietMode   atomic.Bool // Whether only warnings and errors are logged.
	debugMode   atomic.Bool // Whether debug records are logged.
	verboseMode atomic.Bool // Whether timestamps and callers are attached to records.
)

// Seeds the logging toggles from linker flags.
//
// rawQuiet, rawDebug, and rawVerbose are set via ldflags in release
// pipelines. Unparseable values leave the toggle disabled.
func init() {
	for raw, mode := range map[*string]*atomic.Bool{
		&rawQuiet:   &quietMode,
		&rawDebug:   &debugMode,
		&rawVerbose: &verboseMode,
	} {
		if v, err := strconv.ParseBool(*raw); err == nil {
			mode.Store(v)
		}
	}
}

// Enables or disables quiet mode.
func SetQuiet(enabled bool) {
	quietMode.Store(enabled)
}

// Returns true if quiet mode is enabled.
func IsQuiet() bool {
	return quietMode.Load()
}

// Enables or disables debug mode.
func SetDebug(enabled bool) {
	debugMode.Store(enabled)
}

// Returns true if debug mode is enabled.
func IsDebug() bool {
	return debugMode.Load()
}

// Enables or disables verbose logging.
func SetVerbose(enabled bool) {
	verboseMode.Store(enabled)
}

// Returns true if verbose logging is enabled.
func IsVerbose() bool {
	return verboseMode.Load()
}
