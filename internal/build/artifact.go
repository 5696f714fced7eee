package build

import (
	"context"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/cruciblehq/bootpack/internal/crex"
)

// Suffix of the dependency-free archive the build tool emits alongside the
// runnable one.
const plainSuffix = "-plain.jar"

// Resolves the recipe's artifact wildcard to exactly one file in the
// builder. Returns its absolute path.
func (p *pipeline) resolveArtifact(ctx context.Context, b *stage) (string, error) {
	pattern := p.recipe.Builder.Artifact
	dir := path.Join(p.recipe.Builder.Workdir, path.Dir(pattern))

	command, err := shellJoin("ls", "-1A", dir)
	if err != nil {
		return "", crex.Wrap(ErrArtifactNotFound, err)
	}

	result, err := b.sh(ctx, command, modifier{})
	if err != nil {
		return "", crex.Wrap(ErrArtifactNotFound, err)
	}
	if !result.OK() {
		return "", crex.Wrapf(ErrArtifactNotFound, "%s: %s", pattern, tail(result.Stderr))
	}

	matches := matchArtifacts(strings.Split(result.Stdout, "\n"), path.Base(pattern))
	switch len(matches) {
	case 0:
		return "", crex.Wrapf(ErrArtifactNotFound, "%s", pattern)
	case 1:
		artifact := path.Join(dir, matches[0])
		slog.Info("artifact resolved", "path", artifact)
		return artifact, nil
	default:
		return "", crex.Wrapf(ErrAmbiguousArtifact, "%s: %s", pattern, strings.Join(matches, ", "))
	}
}

// Returns the sorted names matching pattern, ignoring blank names and
// dependency-free archives.
func matchArtifacts(names []string, pattern string) []string {
	var matches []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || strings.HasSuffix(name, plainSuffix) {
			continue
		}
		if ok, _ := path.Match(pattern, name); ok {
			matches = append(matches, name)
		}
	}
	slices.Sort(matches)
	return matches
}
