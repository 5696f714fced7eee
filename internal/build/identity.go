package build

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/cruciblehq/bootpack/internal/crex"
)

// Result of provisioning a user or group.
type Provision string

const (
	Created        Provision = "created"
	AlreadyPresent Provision = "already-present"
	Failed         Provision = "failed"
)

// groupadd and useradd exit codes for a taken id and a taken name.
const (
	exitIDInUse   = 4
	exitNameInUse = 9
)

// Maps a groupadd or useradd exit code to a [Provision].
//
// A taken name means the account exists. A taken id only says that some
// other account holds it, so it is [Failed] unless the name resolves
// afterwards.
func classifyProvision(code int) Provision {
	switch code {
	case 0:
		return Created
	case exitNameInUse:
		return AlreadyPresent
	default:
		return Failed
	}
}

// Creates the recipe's group with its fixed id unless it already exists.
func (p *pipeline) ensureGroup(ctx context.Context, r *stage) (Provision, error) {
	id := p.recipe.Identity

	lookup, err := shellJoin("getent", "group", id.Group)
	if err != nil {
		return Failed, crex.Wrap(ErrProvision, err)
	}
	create, err := shellJoin("groupadd", "--gid", strconv.Itoa(id.GID), id.Group)
	if err != nil {
		return Failed, crex.Wrap(ErrProvision, err)
	}

	return provision(ctx, r, "group", id.Group, lookup, create)
}

// Creates the recipe's user, with its fixed id, primary group, and a home
// directory, unless it already exists.
func (p *pipeline) ensureUser(ctx context.Context, r *stage) (Provision, error) {
	id := p.recipe.Identity

	lookup, err := shellJoin("getent", "passwd", id.User)
	if err != nil {
		return Failed, crex.Wrap(ErrProvision, err)
	}
	create, err := shellJoin("useradd",
		"--uid", strconv.Itoa(id.UID),
		"--gid", strconv.Itoa(id.GID),
		"--create-home",
		id.User,
	)
	if err != nil {
		return Failed, crex.Wrap(ErrProvision, err)
	}

	return provision(ctx, r, "user", id.User, lookup, create)
}

// Runs lookup and, when it finds nothing, create. [Failed] is returned with
// an error.
func provision(ctx context.Context, r *stage, kind, name, lookup, create string) (Provision, error) {
	found, err := r.sh(ctx, lookup, modifier{})
	if err != nil {
		return Failed, crex.Wrap(ErrProvision, err)
	}
	if found.OK() {
		slog.Info(kind+" already present", "name", name)
		return AlreadyPresent, nil
	}

	result, err := r.sh(ctx, create, modifier{})
	if err != nil {
		return Failed, crex.Wrap(ErrProvision, err)
	}

	outcome := classifyProvision(result.ExitCode)
	if outcome == Failed {
		// Lost a race with another provisioner, or the id is held by a
		// different account. Only the former leaves the name resolvable.
		if found, err := r.sh(ctx, lookup, modifier{}); err == nil && found.OK() {
			slog.Info(kind+" already present", "name", name, "exit", result.ExitCode)
			return AlreadyPresent, nil
		}
		return Failed, crex.Wrapf(ErrProvision, "%s %s: exit code %d: %s", kind, name, result.ExitCode, tail(result.Stderr))
	}

	slog.Info(kind+" provisioned", "name", name, "outcome", outcome)
	return outcome, nil
}
