package build

import (
	"context"

	"github.com/opencontainers/go-digest"
)

// What the Build Stage hands to the Runtime Assembly Stage.
type builtStage struct {
	artifact string         // Absolute artifact path in the builder.
	runtime  RuntimeOutcome // How the trimmed runtime was produced.
	cacheHit bool           // Whether dependencies came from the cache.
}

// Runs the Build Stage: stage inputs, compile, produce the trimmed runtime,
// and resolve the artifact, in that order.
func (p *pipeline) buildStage(ctx context.Context, b *stage, cacheKey digest.Digest) (*builtStage, error) {
	if err := p.stageSources(ctx, b); err != nil {
		return nil, err
	}

	hit, err := p.compile(ctx, b, cacheKey)
	if err != nil {
		return nil, err
	}

	outcome, err := p.minimizeRuntime(ctx, b)
	if err != nil {
		return nil, err
	}

	artifact, err := p.resolveArtifact(ctx, b)
	if err != nil {
		return nil, err
	}

	return &builtStage{artifact: artifact, runtime: outcome, cacheHit: hit}, nil
}
