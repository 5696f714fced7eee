package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/containerd/containerd/v2/core/containers"
	"github.com/containerd/containerd/v2/core/content"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/containerd/v2/core/images/archive"
	"github.com/containerd/containerd/v2/pkg/rootfs"
	"github.com/containerd/platforms"
	"github.com/cruciblehq/bootpack/internal/crex"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Filename of the OCI archive produced by Export.
const ExportFilename = "image.tar"

// Commits the container's filesystem changes and writes the result to
// output/image.tar.
//
// The diff between the container's snapshot and its parent becomes one new
// layer on top of the base image. configure receives the base image's
// config and may change any field (environment, user, ports, entrypoint,
// labels) before it is written. name is recorded as the archive's reference
// annotation; when empty, the base image name is used.
//
// The stored base image is never modified: the new manifest, config, and
// index are written as ephemeral blobs, protected from garbage collection by
// a lease until the export completes.
func (c *Container) Export(ctx context.Context, output, name string, configure func(*ocispec.ImageConfig)) error {
	loaded, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return crex.Wrap(ErrRuntime, err)
	}

	info, err := loaded.Info(ctx)
	if err != nil {
		return crex.Wrap(ErrRuntime, err)
	}

	layer, diffID, err := c.snapshotDiff(ctx, info)
	if err != nil {
		return crex.Wrap(ErrRuntime, err)
	}

	ctx, done, err := c.client.WithLease(ctx)
	if err != nil {
		return crex.Wrap(ErrRuntime, err)
	}
	defer done(context.Background())

	target, err := c.exportTarget(ctx, info.Image, func(manifest *ocispec.Manifest, config *ocispec.Image) {
		manifest.Layers = append(manifest.Layers, layer)
		config.RootFS.DiffIDs = append(config.RootFS.DiffIDs, diffID)
		if configure != nil {
			configure(&config.Config)
		}
	})
	if err != nil {
		return crex.Wrap(ErrRuntime, err)
	}

	if name == "" {
		name = info.Image
	}

	exportPath := filepath.Join(output, ExportFilename)
	if err := c.writeArchive(ctx, target, name, exportPath); err != nil {
		return crex.Wrap(ErrRuntime, err)
	}

	slog.Info("image exported", "path", exportPath, "name", name, "platform", c.platform)
	return nil
}

// Computes the layer holding the container's changes, without touching the
// image.
func (c *Container) snapshotDiff(ctx context.Context, info containers.Container) (ocispec.Descriptor, digest.Digest, error) {
	layer, err := rootfs.CreateDiff(ctx,
		info.SnapshotKey,
		c.client.SnapshotService(info.Snapshotter),
		c.client.DiffService(),
	)
	if err != nil {
		return ocispec.Descriptor{}, "", err
	}

	diffID, err := images.GetDiffID(ctx, c.client.ContentStore(), layer)
	if err != nil {
		return ocispec.Descriptor{}, "", err
	}

	return layer, diffID, nil
}

// Writes target to an OCI tar archive at path, restricted to the
// container's platform.
func (c *Container) writeArchive(ctx context.Context, target ocispec.Descriptor, name, path string) error {
	p, err := platforms.Parse(c.platform)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := c.client.Export(ctx, f,
		archive.WithManifest(target, name),
		archive.WithPlatform(platforms.Only(p)),
	); err != nil {
		return err
	}

	return f.Sync()
}

// Applies mutate to the platform manifest and config of the named image and
// returns the descriptor of the rewritten root.
//
// When the image root is an index, a new single-entry index is written:
// layers of other platforms are usually absent from the content store, so
// their entries could not be exported anyway.
func (c *Container) exportTarget(ctx context.Context, imageName string, mutate func(*ocispec.Manifest, *ocispec.Image)) (ocispec.Descriptor, error) {
	img, err := c.client.ImageService().Get(ctx, imageName)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	manifestDesc, index, err := c.platformManifest(ctx, img.Target, imageName)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	rewritten, err := c.rewriteManifest(ctx, manifestDesc, imageName, mutate)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	if index == nil {
		return rewritten, nil
	}

	index.Manifests = []ocispec.Descriptor{rewritten}
	return c.writeBlob(ctx, img.Target.MediaType, index, imageName+"-index", content.WithLabels(indexGCLabels(*index)))
}

// Resolves an image root to the manifest for the container's platform.
//
// Returns the index as well when the root is one. Index entries without
// platform metadata (common on Docker Hub) are matched by reading the
// platform from their image config. When nothing matches, the first entry
// is used.
func (c *Container) platformManifest(ctx context.Context, root ocispec.Descriptor, imageName string) (ocispec.Descriptor, *ocispec.Index, error) {
	if !images.IsIndexType(root.MediaType) {
		return root, nil, nil
	}

	var idx ocispec.Index
	if err := c.readJSON(ctx, root, &idx); err != nil {
		return ocispec.Descriptor{}, nil, err
	}

	if len(idx.Manifests) == 0 {
		return ocispec.Descriptor{}, nil, crex.Wrapf(ErrEmptyIndex, "%s", imageName)
	}

	p, err := platforms.Parse(c.platform)
	if err != nil {
		return ocispec.Descriptor{}, nil, err
	}

	if i, ok := c.matchManifest(ctx, idx, platforms.OnlyStrict(p)); ok {
		return idx.Manifests[i], &idx, nil
	}
	return idx.Manifests[0], &idx, nil
}

// Returns the position of the first index entry matching the platform,
// checking declared platforms before probing image configs.
func (c *Container) matchManifest(ctx context.Context, idx ocispec.Index, matcher platforms.MatchComparer) (int, bool) {
	for i, m := range idx.Manifests {
		if m.Platform != nil && matcher.Match(*m.Platform) {
			return i, true
		}
	}
	for i, m := range idx.Manifests {
		if m.Platform != nil || !images.IsManifestType(m.MediaType) {
			continue
		}
		if p, ok := c.configPlatform(ctx, m); ok && matcher.Match(p) {
			return i, true
		}
	}
	return 0, false
}

// Reads the platform declared in a manifest's image config.
func (c *Container) configPlatform(ctx context.Context, desc ocispec.Descriptor) (ocispec.Platform, bool) {
	var manifest ocispec.Manifest
	if err := c.readJSON(ctx, desc, &manifest); err != nil {
		return ocispec.Platform{}, false
	}
	var config ocispec.Image
	if err := c.readJSON(ctx, manifest.Config, &config); err != nil {
		return ocispec.Platform{}, false
	}
	return config.Platform, true
}

// Reads a manifest and its config, applies mutate, and stores both.
func (c *Container) rewriteManifest(ctx context.Context, desc ocispec.Descriptor, imageName string, mutate func(*ocispec.Manifest, *ocispec.Image)) (ocispec.Descriptor, error) {
	var manifest ocispec.Manifest
	if err := c.readJSON(ctx, desc, &manifest); err != nil {
		return ocispec.Descriptor{}, err
	}

	var config ocispec.Image
	if err := c.readJSON(ctx, manifest.Config, &config); err != nil {
		return ocispec.Descriptor{}, err
	}

	mutate(&manifest, &config)

	configDesc, err := c.writeBlob(ctx, manifest.Config.MediaType, config, imageName+"-config")
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	manifest.Config = configDesc

	return c.writeBlob(ctx, desc.MediaType, manifest, imageName+"-manifest", content.WithLabels(manifestGCLabels(manifest)))
}

// Decodes the JSON blob referenced by desc into v.
func (c *Container) readJSON(ctx context.Context, desc ocispec.Descriptor, v any) error {
	b, err := content.ReadBlob(ctx, c.client.ContentStore(), desc)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Serializes v into the content store and returns its descriptor.
func (c *Container) writeBlob(ctx context.Context, mediaType string, v any, ref string, opts ...content.Opt) (ocispec.Descriptor, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	desc := ocispec.Descriptor{
		MediaType: mediaType,
		Digest:    digest.FromBytes(b),
		Size:      int64(len(b)),
	}
	if err := content.WriteBlob(ctx, c.client.ContentStore(), ref, bytes.NewReader(b), desc, opts...); err != nil {
		return ocispec.Descriptor{}, err
	}
	return desc, nil
}

// Returns containerd GC reference labels from a manifest to its config and
// layers.
func manifestGCLabels(m ocispec.Manifest) map[string]string {
	labels := map[string]string{
		"containerd.io/gc.ref.content.config": m.Config.Digest.String(),
	}
	for i, layer := range m.Layers {
		labels[fmt.Sprintf("containerd.io/gc.ref.content.l.%d", i)] = layer.Digest.String()
	}
	return labels
}

// Returns containerd GC reference labels from an index to its manifests.
func indexGCLabels(idx ocispec.Index) map[string]string {
	labels := make(map[string]string, len(idx.Manifests))
	for i, m := range idx.Manifests {
		labels[fmt.Sprintf("containerd.io/gc.ref.content.m.%d", i)] = m.Digest.String()
	}
	return labels
}
