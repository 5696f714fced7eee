package build

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cruciblehq/bootpack/internal/crex"
)

// Copies a file or directory from the host into the stage container.
//
// rel is resolved against root on the host and extracted at the same
// relative path under destDir. Parent directories of rel are created by the
// extraction.
func (s *stage) copyFromHost(ctx context.Context, root, rel, destDir string) error {
	src := filepath.Join(root, rel)

	info, err := os.Stat(src)
	if err != nil {
		return crex.Wrap(ErrCopy, err)
	}

	name := filepath.ToSlash(filepath.Clean(rel))
	slog.Debug("copy", "stage", s.name, "src", src, "dest", path.Join(destDir, name), "dir", info.IsDir())

	pr, pw := io.Pipe()

	go func() {
		tw := tar.NewWriter(pw)
		var writeErr error

		if info.IsDir() {
			writeErr = writeDirToTar(tw, src, name)
		} else {
			writeErr = writeFileToTar(tw, src, name)
		}

		if closeErr := tw.Close(); writeErr == nil {
			writeErr = closeErr
		}
		pw.CloseWithError(writeErr)
	}()

	err = s.ctr.CopyTo(ctx, pr, destDir)
	pr.CloseWithError(err)
	if err != nil {
		return crex.Wrap(ErrCopy, err)
	}

	return nil
}

// Rewrites a tar stream whose entries are rooted at from so that they are
// rooted at to instead.
//
// Entries outside from are rejected. When from and to are equal the stream
// is still validated.
func renameTar(r io.Reader, w io.Writer, from, to string) error {
	tr := tar.NewReader(r)
	tw := tar.NewWriter(w)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		name, ok := rebase(hdr.Name, from, to)
		if !ok {
			return fmt.Errorf("unexpected entry %q outside %q", hdr.Name, from)
		}
		hdr.Name = name

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := io.Copy(tw, tr); err != nil {
			return err
		}
	}

	return tw.Close()
}

// Replaces the leading from component of name with to.
func rebase(name, from, to string) (string, bool) {
	name = strings.TrimPrefix(name, "./")
	switch {
	case name == from:
		return to, true
	case strings.HasPrefix(name, from+"/"):
		return to + name[len(from):], true
	}
	return "", false
}

// Writes a single file to a tar writer with the given archive name.
func writeFileToTar(tw *tar.Writer, hostPath, name string) error {
	info, err := os.Stat(hostPath)
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = name

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	f, err := os.Open(hostPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(tw, f)
	return err
}

// Writes a directory tree to a tar writer rooted at the given archive prefix.
func writeDirToTar(tw *tar.Writer, hostDir, prefix string) error {
	return filepath.WalkDir(hostDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(hostDir, p)
		if err != nil {
			return err
		}

		archivePath := filepath.ToSlash(filepath.Join(prefix, relPath))
		return writeTarEntry(tw, p, archivePath, d)
	})
}

// Writes a single file or directory entry to a tar writer.
//
// Symbolic links are recorded as links; other special files are skipped.
func writeTarEntry(tw *tar.Writer, hostPath, archivePath string, d os.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	var link string
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		if link, err = os.Readlink(hostPath); err != nil {
			return err
		}
	case !info.Mode().IsRegular() && !info.IsDir():
		return nil
	}

	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	header.Name = archivePath

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	if info.Mode().IsRegular() {
		f, err := os.Open(hostPath)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	}

	return nil
}
