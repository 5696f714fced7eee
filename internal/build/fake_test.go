package build

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/cruciblehq/bootpack/internal/runtime"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Scripted container that records what the pipeline asks of it.
type fakeContainer struct {
	mu sync.Mutex

	id       string
	image    string
	handler  func(command string) *runtime.ExecResult // Nil runs every command successfully.
	trees    map[string][]string                      // Paths CopyFrom serves as directories, with their children.
	commands []string                                 // Commands passed to Exec, in order.
	envs     [][]string                               // Environment passed with each command.
	dirs     []string                                 // Directories passed to MkdirAll.
	received []string                                 // Absolute paths of entries extracted by CopyTo.

	stopped   bool
	destroyed bool
	replaced  bool // Removed by a later Start with the same ID.
	exported  *ocispec.ImageConfig
	output    string
	name      string
}

func (f *fakeContainer) ID() string { return f.id }

func (f *fakeContainer) Exec(_ context.Context, _ string, command string, env []string, _ string) (*runtime.ExecResult, error) {
	f.mu.Lock()
	f.commands = append(f.commands, command)
	f.envs = append(f.envs, env)
	handler := f.handler
	f.mu.Unlock()

	if handler != nil {
		if res := handler(command); res != nil {
			return res, nil
		}
	}
	return &runtime.ExecResult{}, nil
}

func (f *fakeContainer) MkdirAll(_ context.Context, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs = append(f.dirs, dir)
	return nil
}

func (f *fakeContainer) CopyTo(_ context.Context, r io.Reader, destDir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		f.mu.Lock()
		f.received = append(f.received, path.Join(destDir, hdr.Name))
		f.mu.Unlock()
	}
	_, err := io.Copy(io.Discard, r)
	return err
}

func (f *fakeContainer) CopyFrom(_ context.Context, w io.Writer, p string) error {
	f.mu.Lock()
	children, isDir := f.trees[p]
	f.mu.Unlock()

	base := path.Base(p)
	tw := tar.NewWriter(w)

	if !isDir {
		if err := writeFakeFile(tw, base); err != nil {
			return err
		}
		return tw.Close()
	}

	if err := tw.WriteHeader(&tar.Header{Name: base + "/", Typeflag: tar.TypeDir, Mode: 0o755}); err != nil {
		return err
	}
	for _, child := range children {
		if err := writeFakeFile(tw, base+"/"+child); err != nil {
			return err
		}
	}
	return tw.Close()
}

func writeFakeFile(tw *tar.Writer, name string) error {
	body := []byte("content of " + name)
	if err := tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(body))}); err != nil {
		return err
	}
	_, err := tw.Write(body)
	return err
}

func (f *fakeContainer) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeContainer) Destroy(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = true
}

func (f *fakeContainer) Export(_ context.Context, output, name string, configure func(*ocispec.ImageConfig)) error {
	cfg := &ocispec.ImageConfig{
		Env: []string{"PATH=/usr/local/bin:/usr/bin:/bin"},
		Cmd: []string{"bash"},
	}
	if configure != nil {
		configure(cfg)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.exported = cfg
	f.output = output
	f.name = name
	return nil
}

// Returns the recorded commands that start with prefix.
func (f *fakeContainer) commandsWith(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.commands {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Returns true if any received entry equals p or lies under it.
func (f *fakeContainer) hasReceived(p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.received {
		if r == p || strings.HasPrefix(r, p+"/") {
			return true
		}
	}
	return false
}

// Starts fake containers, one per call, configured by image name.
type fakeEngine struct {
	mu         sync.Mutex
	handlers   map[string]func(string) *runtime.ExecResult
	trees      map[string][]string
	containers []*fakeContainer
	startErr   error
}

func (e *fakeEngine) Start(_ context.Context, image, id, platform string) (container, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startErr != nil {
		return nil, e.startErr
	}
	// Starting over an existing ID removes the old container, as containerd
	// does for a stale one.
	for _, c := range e.containers {
		c.mu.Lock()
		if c.id == id && !c.destroyed {
			c.replaced = true
		}
		c.mu.Unlock()
	}
	ctr := &fakeContainer{
		id:      id,
		image:   image,
		handler: e.handlers[image],
		trees:   e.trees,
	}
	e.containers = append(e.containers, ctr)
	return ctr, nil
}

// Returns the containers started from image, in start order.
func (e *fakeEngine) started(image string) []*fakeContainer {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*fakeContainer
	for _, c := range e.containers {
		if c.image == image {
			out = append(out, c)
		}
	}
	return out
}

// Returns the single container started from image.
func (e *fakeEngine) only(t *testing.T, image string) *fakeContainer {
	t.Helper()
	started := e.started(image)
	if len(started) != 1 {
		t.Fatalf("started %d containers from %s, want 1", len(started), image)
	}
	return started[0]
}

// Builds an exec result with the given exit code and stdout.
func exit(code int, stdout string) *runtime.ExecResult {
	return &runtime.ExecResult{ExitCode: code, Stdout: stdout, Stderr: fmt.Sprintf("exit %d", code)}
}
