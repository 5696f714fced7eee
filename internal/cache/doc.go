// Package cache keeps downloaded build dependencies between builds.
//
// Entries are tar streams of the builder's dependency directory, addressed
// by a [Key] computed over the project's build descriptors only, narrowed
// with [Scope] to the builder image and platform. Source changes therefore
// never invalidate an entry; descriptor changes always do.
// Writes are atomic, so a crashed build never leaves a truncated entry
// behind.
//
// Example usage:
//
//	descriptors, err := cache.Key(root, []string{"build.gradle", "settings.gradle"})
//	if err != nil {
//	    return err
//	}
//	key := cache.Scope(descriptors, "eclipse-temurin:21-jdk", "linux/amd64")
//
//	store := cache.New(paths.DependencyCache())
//	if rc, err := store.Open(key); err == nil {
//	    defer rc.Close()
//	    // restore rc into the builder
//	}
package cache
