package cache

import (
	"encoding/binary"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/cruciblehq/bootpack/internal/crex"
	"github.com/opencontainers/go-digest"
)

// Computes a content digest over a set of paths under root.
//
// Each entry may be a file or a directory; directories are walked
// recursively. The digest covers every regular file's slash-separated path
// relative to root, its executable bit, and its content. Entries are hashed
// in sorted order, so the result depends only on what the paths contain,
// never on the order they are listed in or on file timestamps. Entries that
// hold no regular files at all are rejected.
func Key(root string, entries []string) (digest.Digest, error) {
	files, err := collect(root, entries)
	if err != nil {
		return "", crex.Wrap(ErrKey, err)
	}
	if len(files) == 0 {
		return "", crex.Wrapf(ErrKey, "no files under %v", entries)
	}

	d := digest.Canonical.Digester()
	h := d.Hash()

	for _, rel := range files {
		if err := hashFile(h, root, rel); err != nil {
			return "", crex.Wrap(ErrKey, err)
		}
	}

	return d.Digest(), nil
}

// Derives a dependency cache key from a descriptor digest and the
// environment the dependencies were resolved in. The same descriptors built
// in a different builder image or for a different platform get a
// different key.
func Scope(descriptors digest.Digest, image, platform string) digest.Digest {
	d := digest.Canonical.Digester()
	h := d.Hash()
	for _, part := range []string{descriptors.String(), image, platform} {
		h.Write(binary.BigEndian.AppendUint64(nil, uint64(len(part))))
		h.Write([]byte(part))
	}
	return d.Digest()
}

// Expands entries into a sorted, de-duplicated list of regular files
// relative to root.
func collect(root string, entries []string) ([]string, error) {
	var files []string

	for _, entry := range entries {
		base := filepath.Join(root, entry)
		err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	slices.Sort(files)
	return slices.Compact(files), nil
}

// Writes a length-prefixed record of one file into h.
func hashFile(h io.Writer, root, rel string) error {
	p := filepath.Join(root, filepath.FromSlash(rel))

	info, err := os.Stat(p)
	if err != nil {
		return err
	}

	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()

	var exec byte
	if info.Mode()&0o111 != 0 {
		exec = 1
	}

	header := binary.BigEndian.AppendUint64(nil, uint64(len(rel)))
	header = append(header, rel...)
	header = append(header, exec)
	header = binary.BigEndian.AppendUint64(header, uint64(info.Size()))

	if _, err := h.Write(header); err != nil {
		return err
	}

	_, err = io.Copy(h, f)
	return err
}
