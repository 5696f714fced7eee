package cache

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cruciblehq/bootpack/internal/crex"
	"github.com/cruciblehq/bootpack/internal/paths"
	"github.com/google/renameio/v2"
	"github.com/opencontainers/go-digest"
)

// File extension of cache entries.
const entryExt = ".tar"

// Content-addressed store of dependency archives on the host.
type Store struct {
	root string // Directory holding one subdirectory per digest algorithm.
}

// Creates a store rooted at dir. The directory is created lazily.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Returns true if an entry exists for key.
func (s *Store) Has(key digest.Digest) bool {
	p, err := s.path(key)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Opens the entry for key.
//
// Returns [ErrMiss] when no entry exists. The caller must close the reader.
func (s *Store) Open(key digest.Digest) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, crex.Wrapf(ErrMiss, "%s", key)
	}
	if err != nil {
		return nil, crex.Wrap(ErrCache, err)
	}
	return f, nil
}

// Stores the contents of r under key.
//
// The entry becomes visible only after r is fully consumed and flushed; a
// failed or interrupted write leaves any previous entry untouched.
func (s *Store) Put(key digest.Digest, r io.Reader) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p), paths.DefaultDirMode); err != nil {
		return crex.Wrap(ErrCache, err)
	}

	pf, err := renameio.NewPendingFile(p, renameio.WithPermissions(paths.DefaultFileMode))
	if err != nil {
		return crex.Wrap(ErrCache, err)
	}
	defer pf.Cleanup()

	n, err := io.Copy(pf, r)
	if err != nil {
		return crex.Wrap(ErrCache, err)
	}

	if err := pf.CloseAtomicallyReplace(); err != nil {
		return crex.Wrap(ErrCache, err)
	}

	slog.Debug("dependency cache stored", "key", key, "bytes", n)
	return nil
}

// Removes the entry for key. Removing a missing entry is not an error.
func (s *Store) Remove(key digest.Digest) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return crex.Wrap(ErrCache, err)
	}
	return nil
}

// Returns the file path for key, rejecting malformed digests so keys can
// never escape the store root.
func (s *Store) path(key digest.Digest) (string, error) {
	if err := key.Validate(); err != nil {
		return "", crex.Wrap(ErrCache, err)
	}
	return filepath.Join(s.root, key.Algorithm().String(), key.Encoded()+entryExt), nil
}
