package build

import (
	"context"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/cruciblehq/bootpack/internal/crex"
	"github.com/cruciblehq/bootpack/internal/runtime"
)

// Longest stderr excerpt carried in a command failure.
const stderrTail = 2048

// A running stage container with its accumulated shell state.
type stage struct {
	name  string     // Stage name, for logs.
	ctr   container  // Backing container.
	state *stepState // Shell, workdir, and environment for commands.
}

// Creates a new [stage] with default step state.
func newStage(name string, ctr container) *stage {
	return &stage{name: name, ctr: ctr, state: newStepState()}
}

// Runs a shell command with scoped overrides. A non-zero exit is reported in
// the result, not as an error.
func (s *stage) sh(ctx context.Context, command string, m modifier) (*runtime.ExecResult, error) {
	resolved := s.state.resolve(m)
	slog.Debug("run", "stage", s.name, "command", command, "workdir", resolved.workdir)

	result, err := s.ctr.Exec(ctx, resolved.shell, command, resolved.environ(), resolved.workdir)
	if err != nil {
		return nil, crex.Wrap(runtime.ErrRuntime, err)
	}
	return result, nil
}

// Runs a shell command that must succeed. A non-zero exit is wrapped in
// class along with the tail of stderr.
func (s *stage) mustSh(ctx context.Context, class error, command string, m modifier) error {
	result, err := s.sh(ctx, command, m)
	if err != nil {
		return crex.Wrap(class, err)
	}
	if !result.OK() {
		return crex.Wrapf(class, "%w: exit code %d: %s", ErrCommandFailed, result.ExitCode, tail(result.Stderr))
	}
	return nil
}

// Copies src out of this stage into dest in another stage.
//
// The tar stream is piped directly from this container's CopyFrom to the
// target container's CopyTo, renaming its root from the base name of src to
// the base name of dest in flight.
func (s *stage) copyTo(ctx context.Context, dst *stage, src, dest string) error {
	slog.Debug("cross-stage copy", "from", s.name, "to", dst.name, "src", src, "dest", dest)

	if err := dst.ctr.MkdirAll(ctx, path.Dir(dest)); err != nil {
		return crex.Wrap(ErrCopy, err)
	}

	pr, pw := io.Pipe()
	rr, rw := io.Pipe()

	errc := make(chan error, 2)
	go func() {
		err := s.ctr.CopyFrom(ctx, pw, src)
		pw.CloseWithError(err)
		errc <- err
	}()
	go func() {
		err := renameTar(pr, rw, path.Base(src), path.Base(dest))
		pr.CloseWithError(err)
		rw.CloseWithError(err)
		errc <- err
	}()

	err := dst.ctr.CopyTo(ctx, rr, path.Dir(dest))
	if err == nil {
		// Trailing padding past the end-of-archive marker.
		_, _ = io.Copy(io.Discard, rr)
	}
	rr.CloseWithError(err)

	for range 2 {
		if perr := <-errc; perr != nil && err == nil {
			err = perr
		}
	}
	if err != nil {
		return crex.Wrap(ErrCopy, err)
	}
	return nil
}

// Returns the last part of a command's stderr.
func tail(stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if len(stderr) > stderrTail {
		stderr = "..." + stderr[len(stderr)-stderrTail:]
	}
	return stderr
}
