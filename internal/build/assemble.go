package build

import (
	"context"
	"log/slog"

	"github.com/cruciblehq/bootpack/internal/crex"
	"github.com/cruciblehq/bootpack/internal/recipe"
	"github.com/cruciblehq/bootpack/internal/runtime"
)

// What the Runtime Assembly Stage reports back.
type assembledStage struct {
	group Provision
	user  Provision
}

// Runs the Runtime Assembly Stage and exports the image to output.
//
// The identity is provisioned first, so ownership can be applied to
// everything placed under the workdir afterwards. The trimmed runtime and
// artifact are copied from the builder, the placeholder state file is
// created in place, and the container is committed with cfg applied.
func (p *pipeline) assembleStage(ctx context.Context, r, b *stage, built *builtStage, cfg imageConfig, output string) (*assembledStage, error) {
	rc := p.recipe
	res := &assembledStage{}

	var err error
	if res.group, err = p.ensureGroup(ctx, r); err != nil {
		return nil, err
	}
	if res.user, err = p.ensureUser(ctx, r); err != nil {
		return nil, err
	}

	if err := r.ctr.MkdirAll(ctx, rc.Runtime.Workdir); err != nil {
		return nil, crex.Wrap(ErrFileSystemOperation, err)
	}
	r.state.apply(modifier{Workdir: rc.Runtime.Workdir})

	if built.runtime == RuntimeUnavailable {
		slog.Warn("skipping runtime copy", "outcome", built.runtime, "dest", rc.Runtime.JREDir)
	} else if err := b.copyTo(ctx, r, rc.JRE.Output, rc.Runtime.JREDir); err != nil {
		return nil, crex.Wrapf(ErrCopy, "runtime: %w", err)
	}

	if err := b.copyTo(ctx, r, built.artifact, rc.ArtifactPath()); err != nil {
		return nil, crex.Wrapf(ErrCopy, "artifact: %w", err)
	}

	if err := createPlaceholder(ctx, r, rc); err != nil {
		return nil, err
	}

	if err := r.ctr.Stop(ctx); err != nil {
		return nil, crex.Wrap(runtime.ErrRuntime, err)
	}

	if err := r.ctr.Export(ctx, output, p.tag, cfg.apply); err != nil {
		return nil, crex.Wrap(runtime.ErrRuntime, err)
	}

	return res, nil
}

// Creates the data directory and an empty state file with a truncating
// redirect, hands the workdir to the service identity, and checks that the
// state file came out empty.
func createPlaceholder(ctx context.Context, r *stage, rc *recipe.Recipe) error {
	create, verify, err := placeholderCommands(rc)
	if err != nil {
		return crex.Wrap(ErrPlaceholder, err)
	}

	if err := r.mustSh(ctx, ErrFileSystemOperation, create, modifier{}); err != nil {
		return err
	}

	result, err := r.sh(ctx, verify, modifier{})
	if err != nil {
		return crex.Wrap(ErrPlaceholder, err)
	}
	if !result.OK() {
		return crex.Wrapf(ErrPlaceholder, "%s", rc.StatePath())
	}

	slog.Info("placeholder created", "path", rc.StatePath(), "owner", rc.Identity.Owner())
	return nil
}

// Builds the placeholder creation and verification commands.
func placeholderCommands(rc *recipe.Recipe) (create, verify string, err error) {
	dataDir, err := quote(rc.DataPath())
	if err != nil {
		return "", "", err
	}
	state, err := quote(rc.StatePath())
	if err != nil {
		return "", "", err
	}
	chown, err := shellJoin("chown", "-R", rc.Identity.Owner(), rc.Runtime.Workdir)
	if err != nil {
		return "", "", err
	}

	create = "mkdir -p " + dataDir + " && : > " + state + " && " + chown
	verify = "test -f " + state + " && test ! -s " + state

	for _, c := range []string{create, verify} {
		if err := checkScript(c); err != nil {
			return "", "", err
		}
	}
	return create, verify, nil
}
