package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/cruciblehq/bootpack/internal/crex"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Sequence counter for exec process identifiers.
var execSeq atomic.Uint64

// Returns a unique exec process identifier.
func nextExecID() string {
	return fmt.Sprintf("exec-%d", execSeq.Add(1))
}

// Output of a command executed inside a container.
type ExecResult struct {
	ExitCode int    // Exit code of the process.
	Stdout   string // Captured standard output.
	Stderr   string // Captured standard error.
}

// Returns true if the process exited with code zero.
func (r *ExecResult) OK() bool {
	return r.ExitCode == 0
}

// Runs a shell command inside the container.
//
// The command is passed as a single argument to "shell -c". env entries
// ("KEY=value") are layered over the container's environment and workdir
// replaces its working directory, for this execution only. A non-zero exit
// code is reported in the result, not as an error.
func (c *Container) Exec(ctx context.Context, shell, command string, env []string, workdir string) (*ExecResult, error) {
	var stdout, stderr bytes.Buffer

	pspec, err := c.processSpec(ctx, env, workdir, shell, "-c", command)
	if err != nil {
		return nil, crex.Wrap(ErrRuntime, err)
	}

	code, err := c.execProcess(ctx, pspec, nil, &stdout, &stderr)
	if err != nil {
		return nil, err
	}

	return &ExecResult{
		ExitCode: code,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

// Runs args directly (no shell), failing unless the process exits cleanly.
//
// desc names the operation in the returned error.
func (c *Container) run(ctx context.Context, desc string, stdin io.Reader, stdout io.Writer, args ...string) error {
	pspec, err := c.processSpec(ctx, nil, "", args...)
	if err != nil {
		return crex.Wrap(ErrRuntime, err)
	}

	var stderr bytes.Buffer
	code, err := c.execProcess(ctx, pspec, stdin, stdout, &stderr)
	if err != nil {
		return err
	}
	if code != 0 {
		return crex.Wrapf(ErrCommand, "%s exited with code %d: %s", desc, code, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Derives a process spec for an exec from the container's own OCI spec.
func (c *Container) processSpec(ctx context.Context, env []string, workdir string, args ...string) (*specs.Process, error) {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return nil, err
	}

	spec, err := ctr.Spec(ctx)
	if err != nil {
		return nil, err
	}

	pspec := *spec.Process
	pspec.Terminal = false
	pspec.Args = args

	if len(env) > 0 {
		pspec.Env = mergeEnv(pspec.Env, env)
	}
	if workdir != "" {
		pspec.Cwd = workdir
	}

	return &pspec, nil
}

// Layers "KEY=value" overrides onto a base environment.
//
// Keys keep the position of their first appearance in base; new keys are
// appended in override order. Entries without "=" are dropped.
func mergeEnv(base, overrides []string) []string {
	merged := make([]string, 0, len(base)+len(overrides))
	index := make(map[string]int, len(base)+len(overrides))

	for _, entry := range append(append([]string(nil), base...), overrides...) {
		k, _, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if i, seen := index[k]; seen {
			merged[i] = entry
			continue
		}
		index[k] = len(merged)
		merged = append(merged, entry)
	}

	return merged
}

// Attaches a process to the running task, waits for it, and returns its
// exit code.
//
// Nil stdout and stderr are discarded. When stdin is given, the process's
// stdin is closed once the reader is drained: the containerd shim holds
// both ends of the stdin FIFO and would otherwise never deliver EOF.
func (c *Container) execProcess(ctx context.Context, pspec *specs.Process, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	task, err := c.loadTask(ctx)
	if err != nil {
		return 0, err
	}

	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	var stdinDone <-chan struct{}
	if stdin != nil {
		dr := newDoneReader(stdin)
		stdin = dr
		stdinDone = dr.done
	}

	process, err := task.Exec(ctx, nextExecID(), pspec, cio.NewCreator(
		cio.WithStreams(stdin, stdout, stderr),
	))
	if err != nil {
		return 0, crex.Wrap(ErrRuntime, err)
	}

	return awaitProcess(ctx, process, stdinDone)
}

// Loads the container's running task.
func (c *Container) loadTask(ctx context.Context) (containerd.Task, error) {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return nil, crex.Wrap(ErrRuntime, err)
	}

	task, err := ctr.Task(ctx, nil)
	if err != nil {
		return nil, crex.Wrap(ErrRuntime, err)
	}

	return task, nil
}

// Starts an exec process and blocks until it exits. The process is always
// deleted before returning.
func awaitProcess(ctx context.Context, process containerd.Process, stdinDone <-chan struct{}) (int, error) {
	statusC, err := process.Wait(ctx)
	if err != nil {
		process.Delete(ctx)
		return 0, crex.Wrap(ErrRuntime, err)
	}

	if err := process.Start(ctx); err != nil {
		process.Delete(ctx)
		return 0, crex.Wrap(ErrRuntime, err)
	}

	if stdinDone != nil {
		go func() {
			<-stdinDone
			process.CloseIO(ctx, containerd.WithStdinCloser)
		}()
	}

	exitStatus := <-statusC
	process.Delete(ctx)

	code, _, err := exitStatus.Result()
	if err != nil {
		return 0, crex.Wrap(ErrRuntime, err)
	}

	return int(code), nil
}
