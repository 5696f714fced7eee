package runtime

import (
	"context"
	"log/slog"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/core/content"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/errdefs"
	"github.com/containerd/platforms"
	"github.com/cruciblehq/bootpack/internal/crex"
	"github.com/distribution/reference"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Resolves an image reference for the platform, pulling it when the local
// store lacks that platform's content.
//
// Short references ("debian:bookworm-slim") are normalized to their fully
// qualified form ("docker.io/library/debian:bookworm-slim"), which is the
// name containerd stores them under. An image pulled earlier for another
// platform shares the name but not the manifest and layers, so presence is
// checked per platform. Returns the normalized name.
func (rt *Runtime) pullImage(ctx context.Context, ref, platform string) (string, error) {
	name, err := normalizeRef(ref)
	if err != nil {
		return "", err
	}

	p, err := platforms.Parse(platform)
	if err != nil {
		return "", err
	}

	img, err := rt.client.ImageService().Get(ctx, name)
	switch {
	case err == nil:
		complete, err := platformComplete(ctx, rt.client.ContentStore(), img.Target, p)
		if err != nil {
			return "", err
		}
		if complete {
			slog.Debug("image present", "image", name, "platform", platform)
			return name, nil
		}
	case !errdefs.IsNotFound(err):
		return "", err
	}

	slog.Info("pulling image", "image", name, "platform", platform)

	_, err = rt.client.Pull(ctx, name,
		containerd.WithPlatformMatcher(platforms.Only(p)),
		containerd.WithPullSnapshotter(rt.snapshotter),
		containerd.WithPullUnpack,
	)
	if err != nil {
		return "", err
	}

	return name, nil
}

// Returns true if the manifest, config, and layers selected for the
// platform from target are all in the content store.
func platformComplete(ctx context.Context, provider content.Provider, target ocispec.Descriptor, p ocispec.Platform) (bool, error) {
	available, _, _, missing, err := images.Check(ctx, provider, target, platforms.Only(p))
	if err != nil {
		return false, err
	}
	return available && len(missing) == 0, nil
}

// Returns the fully qualified form of an image reference, defaulting the
// tag to "latest".
func normalizeRef(ref string) (string, error) {
	named, err := reference.ParseDockerRef(ref)
	if err != nil {
		return "", crex.Wrapf(ErrReference, "%q: %w", ref, err)
	}
	return named.String(), nil
}
