package build

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cruciblehq/bootpack/internal/cache"
	"github.com/cruciblehq/bootpack/internal/crex"
	"github.com/cruciblehq/bootpack/internal/paths"
	"github.com/cruciblehq/bootpack/internal/recipe"
	"github.com/cruciblehq/bootpack/internal/runtime"
	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"
)

// Holds shared state for packaging all platforms.
type pipeline struct {
	engine     engine            // Starts stage containers.
	run        string            // Identifies this run among concurrent ones.
	recipe     *recipe.Recipe    // Pipeline configuration.
	resource   string            // Resource name, used as a prefix for container IDs.
	tag        string            // Reference recorded on exported images.
	root       string            // Project root on the host.
	output     string            // Output directory for the exported images.
	platforms  []string          // Target platforms.
	buildArgs  map[string]string // Build argument values.
	cache      *cache.Store      // Dependency cache, may be nil.
	containers []container       // All stage containers, destroyed after the run.
}

// Creates a new [pipeline] from the given options.
func newPipeline(e engine, opts Options) *pipeline {
	return &pipeline{
		engine:    e,
		run:       newRunID(),
		recipe:    opts.Recipe,
		resource:  opts.Resource,
		tag:       opts.Tag,
		root:      opts.Root,
		output:    opts.Output,
		platforms: opts.Platforms,
		buildArgs: opts.BuildArgs,
		cache:     opts.Cache,
	}
}

// Digests identifying the project inputs.
type inputDigests struct {
	descriptors digest.Digest // Build descriptors only; scoped per platform into the dependency cache key.
	sources     digest.Digest // Descriptors and sources together.
}

// Packages every platform. All stage containers are destroyed when the run
// completes, including on failure or cancellation.
func (p *pipeline) build(ctx context.Context) (*Result, error) {
	defer p.destroyContainers(context.WithoutCancel(ctx))

	inputs, err := p.digestInputs()
	if err != nil {
		return nil, err
	}

	slog.Debug("run started", "run", p.run, "resource", p.resource)

	result := &Result{ID: p.run, Output: p.output}
	for _, platform := range p.platforms {
		res, err := p.buildPlatform(ctx, platform, inputs)
		if err != nil {
			return nil, crex.Wrapf(ErrBuild, "platform %s: %w", platform, err)
		}
		result.Platforms = append(result.Platforms, *res)
	}

	return result, nil
}

// Hashes the descriptors and sources on the host.
func (p *pipeline) digestInputs() (inputDigests, error) {
	b := p.recipe.Builder

	descriptors, err := cache.Key(p.root, b.Descriptors)
	if err != nil {
		return inputDigests{}, crex.Wrap(ErrCopy, err)
	}

	sources, err := cache.Key(p.root, slices.Concat(b.Descriptors, b.Sources))
	if err != nil {
		return inputDigests{}, crex.Wrap(ErrCopy, err)
	}

	slog.Debug("inputs digested", "descriptors", descriptors, "sources", sources)
	return inputDigests{descriptors: descriptors, sources: sources}, nil
}

// Runs both stages for a single platform.
//
// The output is written to a platform-specific subdirectory when building
// for multiple platforms.
func (p *pipeline) buildPlatform(ctx context.Context, platform string, inputs inputDigests) (*PlatformResult, error) {
	slog.Info("building platform", "platform", platform)

	output := p.platformOutput(platform)
	if err := os.MkdirAll(output, paths.DefaultDirMode); err != nil {
		return nil, crex.Wrap(ErrFileSystemOperation, err)
	}

	res := &PlatformResult{
		Platform:    platform,
		Image:       filepath.Join(output, runtime.ExportFilename),
		Descriptors: inputs.descriptors,
		Sources:     inputs.sources,
		CacheKey:    cache.Scope(inputs.descriptors, p.recipe.Builder.Image, platform),
	}

	builder, err := p.startStage(ctx, "builder", p.recipe.Builder.Image, platform)
	if err != nil {
		return nil, err
	}

	built, err := p.buildStage(ctx, builder, res.CacheKey)
	if err != nil {
		return nil, crex.Wrapf(ErrBuild, "build stage: %w", err)
	}
	res.Artifact = built.artifact
	res.Runtime = built.runtime
	res.CacheHit = built.cacheHit

	final, err := p.startStage(ctx, "runtime", p.recipe.Runtime.Image, platform)
	if err != nil {
		return nil, err
	}

	cfg := imageConfig{
		recipe:      p.recipe,
		buildArgs:   p.buildArgs,
		descriptors: inputs.descriptors,
		sources:     inputs.sources,
		runtime:     built.runtime,
	}

	assembled, err := p.assembleStage(ctx, final, builder, built, cfg, output)
	if err != nil {
		return nil, crex.Wrapf(ErrBuild, "runtime assembly stage: %w", err)
	}
	res.Group = assembled.group
	res.User = assembled.user

	return res, nil
}

// Starts a stage container and registers it for cleanup.
func (p *pipeline) startStage(ctx context.Context, name, image, platform string) (*stage, error) {
	slog.Info(fmt.Sprintf("starting %s stage", name), "image", image, "platform", platform)

	ctr, err := p.engine.Start(ctx, image, p.containerID(name, platform), platform)
	if err != nil {
		return nil, crex.Wrap(runtime.ErrRuntime, err)
	}

	p.containers = append(p.containers, ctr)
	return newStage(name, ctr), nil
}

// Destroys all stage containers.
func (p *pipeline) destroyContainers(ctx context.Context) {
	for _, ctr := range p.containers {
		ctr.Destroy(ctx)
	}
}

// Returns a unique container ID for a stage, scoped to this run and
// platform. Concurrent runs for the same resource never share IDs.
func (p *pipeline) containerID(name, platform string) string {
	return fmt.Sprintf("%s-%s-%s-%s", p.resource, p.run, platformSlug(platform), name)
}

// Returns a short random run identifier.
func newRunID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:4])
}

// Returns the output directory for a specific platform.
//
// When building for a single platform, the output directory is left as-is
// to preserve the {output}/image.tar convention. For multi-platform builds,
// each platform gets a subdirectory (e.g., {output}/linux-amd64).
func (p *pipeline) platformOutput(platform string) string {
	if len(p.platforms) == 1 {
		return p.output
	}
	return filepath.Join(p.output, platformSlug(platform))
}

// Converts a platform string to a filesystem-safe slug.
//
// Replaces slashes with dashes (e.g., "linux/amd64" becomes "linux-amd64").
func platformSlug(platform string) string {
	return strings.ReplaceAll(platform, "/", "-")
}
