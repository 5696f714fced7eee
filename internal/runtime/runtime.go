package runtime

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	goruntime "runtime"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/errdefs"
	"github.com/containerd/platforms"
	"github.com/cruciblehq/bootpack/internal/crex"
)

const (

	// Snapshotter used when none is configured.
	DefaultSnapshotter = "overlayfs"

	// OCI runtime shim for running containers.
	ociRuntime = "io.containerd.runc.v2"
)

// Connection settings for a [Runtime].
type Options struct {
	Address     string // Containerd socket address.
	Namespace   string // Containerd namespace scoping all images and containers.
	Snapshotter string // Snapshotter for container filesystems. Empty uses [DefaultSnapshotter].
}

// Manages the containerd client and provides image and container operations.
type Runtime struct {
	client      *containerd.Client // Containerd client for managing containers and images.
	snapshotter string             // Snapshotter used for unpacking and container snapshots.
}

// Connects to containerd.
//
// The runtime must be closed when no longer needed.
func New(opts Options) (*Runtime, error) {
	client, err := containerd.New(opts.Address, containerd.WithDefaultNamespace(opts.Namespace))
	if err != nil {
		return nil, crex.Wrap(ErrRuntime, err)
	}

	snapshotter := opts.Snapshotter
	if snapshotter == "" {
		snapshotter = DefaultSnapshotter
	}

	return &Runtime{client: client, snapshotter: snapshotter}, nil
}

// Closes the containerd client connection.
func (rt *Runtime) Close() error {
	return rt.client.Close()
}

// Starts a long-running container from a base image.
//
// The source is either a path to an OCI archive on the host or an image
// reference. Archives are imported and tagged under a name derived from
// their path; references are resolved against the local image store and
// pulled for the target platform when absent. The platform's layers are
// unpacked, any stale container with the same ID is removed, and a task
// running "sleep infinity" is started so that subsequent Exec calls have a
// process to attach to. Building for a platform other than the host
// requires QEMU / binfmt_misc support in the kernel.
func (rt *Runtime) StartContainer(ctx context.Context, source, id, platform string) (*Container, error) {
	tag, err := rt.ensureImage(ctx, source, platform)
	if err != nil {
		return nil, crex.Wrap(ErrRuntime, err)
	}

	image, err := rt.resolveImage(ctx, tag, platform)
	if err != nil {
		return nil, crex.Wrap(ErrRuntime, err)
	}

	if err := image.Unpack(ctx, rt.snapshotter); err != nil {
		return nil, crex.Wrap(ErrRuntime, err)
	}

	c := &Container{
		client:      rt.client,
		id:          id,
		platform:    platform,
		snapshotter: rt.snapshotter,
	}

	c.remove(ctx)

	ctr, err := c.create(ctx, image)
	if err != nil {
		return nil, crex.Wrap(ErrRuntime, err)
	}

	if err := c.startTask(ctx, ctr); err != nil {
		ctr.Delete(ctx, containerd.WithSnapshotCleanup)
		return nil, crex.Wrap(ErrRuntime, err)
	}

	slog.Debug("container started", "id", id, "image", tag, "platform", platform)

	return c, nil
}

// Makes the source image available in the local store and returns its tag.
func (rt *Runtime) ensureImage(ctx context.Context, source, platform string) (string, error) {
	if info, err := os.Stat(source); err == nil && !info.IsDir() {
		return rt.importArchive(ctx, source)
	}
	return rt.pullImage(ctx, source, platform)
}

// Imports an OCI archive and tags it under a deterministic name.
//
// The archive must contain exactly one image. Multi-platform archives
// (a single index referencing per-platform manifests) are supported.
func (rt *Runtime) importArchive(ctx context.Context, path string) (string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer fh.Close()

	imported, err := rt.client.Import(ctx, fh)
	if err != nil {
		return "", err
	}

	switch {
	case len(imported) == 0:
		return "", ErrEmptyArchive
	case len(imported) > 1:
		return "", ErrMultipleImages
	}

	tag := archiveTag(path)
	if err := rt.tagImage(ctx, imported[0], tag); err != nil {
		return "", err
	}
	return tag, nil
}

// Tags an imported image, replacing an existing tag of the same name.
//
// The source record is removed when its name differs from the tag.
func (rt *Runtime) tagImage(ctx context.Context, source images.Image, tag string) error {
	is := rt.client.ImageService()

	img := images.Image{
		Name:   tag,
		Target: source.Target,
	}

	if _, err := is.Create(ctx, img); err != nil {
		if !errdefs.IsAlreadyExists(err) {
			return err
		}
		if _, err := is.Update(ctx, img, "target"); err != nil {
			return err
		}
	}

	if source.Name != tag {
		_ = is.Delete(ctx, source.Name)
	}

	return nil
}

// Looks up a tagged image and selects the manifest for the given platform.
func (rt *Runtime) resolveImage(ctx context.Context, tag, platform string) (containerd.Image, error) {
	p, err := platforms.Parse(platform)
	if err != nil {
		return nil, err
	}

	img, err := rt.client.ImageService().Get(ctx, tag)
	if err != nil {
		return nil, err
	}

	return containerd.NewImageWithPlatform(rt.client, img, platforms.Only(p)), nil
}

// Produces a containerd image tag from an archive path.
//
// The path is hashed so the tag is a valid reference whatever characters
// the path contains.
func archiveTag(path string) string {
	h := sha256.Sum256([]byte(path))
	return fmt.Sprintf("import/%s:latest", hex.EncodeToString(h[:]))
}

// Returns the OCI platform of the host.
func DefaultPlatform() string {
	return "linux/" + goruntime.GOARCH
}
