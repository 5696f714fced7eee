package runtime

import (
	"context"
	"io"
	"path"
)

// Creates a directory inside the container, including parents.
func (c *Container) MkdirAll(ctx context.Context, dir string) error {
	return c.run(ctx, "mkdir", nil, nil, "mkdir", "-p", dir)
}

// Extracts a tar stream into destDir inside the container.
//
// Ownership and permissions recorded in the stream are preserved, since the
// extraction runs as root.
func (c *Container) CopyTo(ctx context.Context, r io.Reader, destDir string) error {
	return c.run(ctx, "tar extract", r, nil, "tar", "xf", "-", "-C", destDir)
}

// Streams the file or directory at p out of the container as a tar archive
// whose entries are rooted at the base name of p.
func (c *Container) CopyFrom(ctx context.Context, w io.Writer, p string) error {
	return c.run(ctx, "tar archive", nil, w, "tar", "cf", "-", "-C", path.Dir(p), path.Base(p))
}
