package build

import (
	"context"
	"log/slog"
	"os"

	"github.com/cruciblehq/bootpack/internal/cache"
	"github.com/cruciblehq/bootpack/internal/crex"
	"github.com/cruciblehq/bootpack/internal/paths"
	"github.com/cruciblehq/bootpack/internal/recipe"
	"github.com/cruciblehq/bootpack/internal/runtime"
	"github.com/opencontainers/go-digest"
)

// Controls a packaging run.
type Options struct {
	Recipe    *recipe.Recipe    // Pipeline configuration. Defaults to [recipe.Default].
	Resource  string            // Resource name, used as a prefix for container IDs.
	Tag       string            // Reference recorded on the exported image. Optional.
	Root      string            // Project root holding the descriptors and sources.
	Output    string            // Directory for the exported image.
	Platforms []string          // Target platforms (e.g., ["linux/amd64"]). Defaults to host.
	BuildArgs map[string]string // Build argument values, by name.
	Cache     *cache.Store      // Dependency cache. Nil disables caching.
}

// Returned after a successful packaging run.
type Result struct {
	ID        string           `json:"id"`        // Run identifier, part of every stage container ID.
	Output    string           `json:"output"`    // Directory containing the exported images.
	Platforms []PlatformResult `json:"platforms"` // One entry per platform, in build order.
}

// Outcome of packaging a single platform.
type PlatformResult struct {
	Platform    string         `json:"platform"`
	Image       string         `json:"image"`    // Path of the exported archive.
	Artifact    string         `json:"artifact"` // Artifact path resolved inside the builder.
	Runtime     RuntimeOutcome `json:"runtime"`
	Group       Provision      `json:"group"`
	User        Provision      `json:"user"`
	Descriptors digest.Digest  `json:"descriptors"` // Digest of the build descriptors.
	Sources     digest.Digest  `json:"sources"`     // Digest of the descriptors and sources.
	CacheKey    digest.Digest  `json:"cacheKey"`    // Dependency cache key: descriptors, builder image, and platform.
	CacheHit    bool           `json:"cacheHit"`    // Whether dependencies were restored from the cache.
}

// Packages the project at opts.Root into an OCI image per platform.
//
// Platforms are built one after another. For each, a builder container
// compiles the artifact and links a trimmed runtime, then a runtime container
// receives both and is exported as output/image.tar. The first failure
// aborts the run.
func Run(ctx context.Context, rt *runtime.Runtime, opts Options) (*Result, error) {
	if len(opts.Platforms) == 0 {
		opts.Platforms = []string{runtime.DefaultPlatform()}
	}
	if opts.Recipe == nil {
		opts.Recipe = recipe.Default()
	}
	if err := opts.Recipe.Validate(); err != nil {
		return nil, crex.Wrap(ErrBuild, err)
	}

	slog.Info("packaging",
		"resource", opts.Resource,
		"root", opts.Root,
		"output", opts.Output,
		"platforms", opts.Platforms,
	)

	if err := os.MkdirAll(opts.Output, paths.DefaultDirMode); err != nil {
		return nil, crex.Wrap(ErrFileSystemOperation, err)
	}

	return newPipeline(containerdEngine{rt: rt}, opts).build(ctx)
}
