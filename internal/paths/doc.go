// Provides platform-appropriate paths for bootpack.
//
// Runtime files (socket, PID) live under the XDG runtime directory, the
// dependency cache under the XDG cache directory, and the user-level recipe
// defaults under the XDG config directory. "bootpack" is the subdirectory
// under each base path.
package paths
