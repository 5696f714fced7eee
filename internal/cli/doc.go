// Parses flags, configures logging, and runs bootpack commands.
//
// Global flags:
//
//	-q, --quiet     Suppress informational output.
//	-v, --verbose   Enable verbose output (timestamps and caller).
//	-d, --debug     Enable debug output.
//	-s, --socket    Unix socket path of the daemon.
//
// Flags override build-time defaults set via linker flags. After parsing, the
// global logger is reconfigured to reflect the final level and verbosity
// before the selected command runs.
package cli
