// Package build packages a Spring Boot project into an OCI image.
//
// Each platform runs two stages in order, each backed by a container.
// The Build Stage stages the build descriptors and sources into a
// JDK-equipped builder, compiles the artifact with the build tool, links a
// trimmed Java runtime from a fixed module list, and resolves the artifact
// by wildcard. The Runtime Assembly Stage provisions a non-privileged user
// and group in a minimal base image, receives the runtime and artifact as
// tar streams from the builder, creates an empty placeholder state file in
// place, and is exported with its declared surface (environment, port,
// user, entrypoint, labels) applied to the image config.
//
// Downloaded dependencies are cached on the host, keyed by a digest of the
// build descriptors alone scoped to the builder image and platform, so
// source-only changes reuse them.
//
// Every run gets a random identifier that is part of its container IDs, so
// concurrent runs for the same resource never touch each other's containers.
//
// Container operations are delegated to the runtime package. Shell state
// (environment variables, working directory, shell) is accumulated within a
// stage and never shared between stages.
//
// Example usage:
//
//	result, err := build.Run(ctx, rt, build.Options{
//	    Recipe:    recipe.Default(),
//	    Resource:  "sns-api",
//	    Root:      ".",
//	    Output:    "dist",
//	    Platforms: []string{"linux/amd64", "linux/arm64"},
//	    Cache:     cache.New(paths.DependencyCache()),
//	})
//	if err != nil {
//	    return err
//	}
package build
