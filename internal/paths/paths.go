package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/cruciblehq/bootpack/internal"
)

const (

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644
)

// Path to the directory for runtime files (sockets, PIDs).
//
//	Linux:   $XDG_RUNTIME_DIR/bootpack or /run/user/<uid>/bootpack
//	macOS:   ~/Library/Caches/bootpack/run
func Runtime() string {
	if xdg.RuntimeDir != "" {
		return filepath.Join(xdg.RuntimeDir, internal.Name)
	}
	return filepath.Join(xdg.CacheHome, internal.Name, "run")
}

// Default path to the daemon's Unix domain socket.
func Socket() string {
	return filepath.Join(Runtime(), "bootpack.sock")
}

// Default path to the daemon's PID file.
func PIDFile() string {
	return filepath.Join(Runtime(), "bootpack.pid")
}

// Root of the dependency cache.
//
//	Linux:   $XDG_CACHE_HOME/bootpack/deps
//	macOS:   ~/Library/Caches/bootpack/deps
func DependencyCache() string {
	return filepath.Join(xdg.CacheHome, internal.Name, "deps")
}

// Path to the user-level recipe defaults, applied before a project's own
// recipe file.
//
//	Linux:   $XDG_CONFIG_HOME/bootpack/recipe.yaml
//	macOS:   ~/Library/Application Support/bootpack/recipe.yaml
func UserRecipe() string {
	return filepath.Join(xdg.ConfigHome, internal.Name, "recipe.yaml")
}
