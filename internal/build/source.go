package build

import (
	"context"
	"log/slog"

	"github.com/cruciblehq/bootpack/internal/crex"
)

// Copies the build descriptors, then the sources, from the project root into
// the builder workdir. Any missing input aborts the build.
func (p *pipeline) stageSources(ctx context.Context, b *stage) error {
	workdir := p.recipe.Builder.Workdir

	if err := b.ctr.MkdirAll(ctx, workdir); err != nil {
		return crex.Wrap(ErrFileSystemOperation, err)
	}
	b.state.apply(modifier{Workdir: workdir})

	for _, group := range []struct {
		kind    string
		entries []string
	}{
		{"descriptor", p.recipe.Builder.Descriptors},
		{"source", p.recipe.Builder.Sources},
	} {
		for _, rel := range group.entries {
			if err := b.copyFromHost(ctx, p.root, rel, workdir); err != nil {
				return crex.Wrapf(ErrCopy, "%s %s: %w", group.kind, rel, err)
			}
		}
		slog.Info("staged "+group.kind+"s", "count", len(group.entries), "dest", workdir)
	}

	return nil
}
