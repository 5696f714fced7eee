package build

import (
	"context"
	"io"
	"log/slog"
	"path"

	"github.com/cruciblehq/bootpack/internal/crex"
	"github.com/opencontainers/go-digest"
)

// Environment variable pointing the build tool at its dependency directory.
const gradleHomeEnv = "GRADLE_USER_HOME"

// Runs the build task in the builder workdir.
//
// Dependencies are restored from the cache under key before the build and
// saved after a successful build on a miss. Cache problems are logged and
// never fail the build. The build itself is run once; any failure aborts
// the pipeline. Returns true on a cache hit.
func (p *pipeline) compile(ctx context.Context, b *stage, key digest.Digest) (bool, error) {
	cacheDir := p.recipe.Builder.CacheDir
	if cacheDir != "" {
		b.state.apply(modifier{Env: map[string]string{gradleHomeEnv: cacheDir}})
	}

	hit := p.restoreDependencies(ctx, b, key)

	command, err := compileCommand(p.recipe.Builder.Wrapper, p.recipe.Builder.Task)
	if err != nil {
		return hit, crex.Wrap(ErrCompile, err)
	}

	slog.Info("compiling", "task", p.recipe.Builder.Task, "cache", hit)
	if err := b.mustSh(ctx, ErrCompile, command, modifier{}); err != nil {
		return hit, err
	}

	if !hit {
		p.saveDependencies(ctx, b, key)
	}

	return hit, nil
}

// Builds the compile command. The wrapper, when set, is made executable
// first since its mode may not survive the checkout.
func compileCommand(wrapper, task string) (string, error) {
	command := task
	if wrapper != "" {
		chmod, err := shellJoin("chmod", "+x", wrapper)
		if err != nil {
			return "", err
		}
		command = chmod + " && " + task
	}
	if err := checkScript(command); err != nil {
		return "", err
	}
	return command, nil
}

// Restores the dependency directory from the cache. Returns true on a hit.
func (p *pipeline) restoreDependencies(ctx context.Context, b *stage, key digest.Digest) bool {
	cacheDir := p.recipe.Builder.CacheDir
	if p.cache == nil || cacheDir == "" {
		return false
	}

	rc, err := p.cache.Open(key)
	if err != nil {
		slog.Debug("dependency cache miss", "key", key, "error", err)
		return false
	}
	defer rc.Close()

	if err := b.ctr.MkdirAll(ctx, path.Dir(cacheDir)); err != nil {
		slog.Warn("dependency cache restore failed", "key", key, "error", err)
		return false
	}
	if err := b.ctr.CopyTo(ctx, rc, path.Dir(cacheDir)); err != nil {
		slog.Warn("dependency cache restore failed, dropping entry", "key", key, "error", err)
		if err := p.cache.Remove(key); err != nil {
			slog.Warn("dependency cache entry not removed", "key", key, "error", err)
		}
		return false
	}

	slog.Info("dependency cache restored", "key", key, "dest", cacheDir)
	return true
}

// Saves the dependency directory to the cache, unless a concurrent run
// already has.
func (p *pipeline) saveDependencies(ctx context.Context, b *stage, key digest.Digest) {
	cacheDir := p.recipe.Builder.CacheDir
	if p.cache == nil || cacheDir == "" {
		return
	}
	if p.cache.Has(key) {
		slog.Debug("dependency cache already saved", "key", key)
		return
	}

	pr, pw := io.Pipe()

	errc := make(chan error, 1)
	go func() {
		err := b.ctr.CopyFrom(ctx, pw, cacheDir)
		pw.CloseWithError(err)
		errc <- err
	}()

	err := p.cache.Put(key, pr)
	pr.CloseWithError(err)
	if copyErr := <-errc; err == nil {
		err = copyErr
	}

	if err != nil {
		slog.Warn("dependency cache save failed", "key", key, "error", err)
		return
	}
	slog.Info("dependency cache saved", "key", key)
}
