package build

import (
	"context"
	"io"

	"github.com/cruciblehq/bootpack/internal/runtime"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Container operations the pipeline relies on. Satisfied by
// [runtime.Container].
type container interface {
	ID() string
	Exec(ctx context.Context, shell, command string, env []string, workdir string) (*runtime.ExecResult, error)
	MkdirAll(ctx context.Context, dir string) error
	CopyTo(ctx context.Context, r io.Reader, destDir string) error
	CopyFrom(ctx context.Context, w io.Writer, p string) error
	Stop(ctx context.Context) error
	Destroy(ctx context.Context)
	Export(ctx context.Context, output, name string, configure func(*ocispec.ImageConfig)) error
}

// Starts containers for the pipeline.
type engine interface {
	Start(ctx context.Context, image, id, platform string) (container, error)
}

// Starts containers on containerd.
type containerdEngine struct {
	rt *runtime.Runtime
}

// Starts a container from image with a long-running task.
func (e containerdEngine) Start(ctx context.Context, image, id, platform string) (container, error) {
	ctr, err := e.rt.StartContainer(ctx, image, id, platform)
	if err != nil {
		return nil, err
	}
	return ctr, nil
}
