package recipe

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"

	"github.com/cruciblehq/bootpack/internal/crex"
	"gopkg.in/yaml.v3"
)

// Overlays recipe files onto a copy of base, in order.
//
// Fields present in a file replace the corresponding fields of the recipe
// built so far; absent fields are left alone. Files that do not exist are
// skipped, so optional user and project recipes can be passed
// unconditionally. Unknown keys are rejected. The base recipe is not
// modified.
func Load(base *Recipe, files ...string) (*Recipe, error) {
	r := base.Clone()

	for _, file := range files {
		data, err := os.ReadFile(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, crex.Wrap(ErrDecode, err)
		}

		if err := Decode(bytes.NewReader(data), r); err != nil {
			return nil, crex.Wrapf(ErrDecode, "%s: %w", file, err)
		}

		slog.Debug("recipe loaded", "file", file)
	}

	return r, nil
}

// Decodes a YAML recipe document onto r.
//
// An empty document leaves r unchanged.
func Decode(src io.Reader, r *Recipe) error {
	dec := yaml.NewDecoder(src)
	dec.KnownFields(true)

	if err := dec.Decode(r); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Returns a deep copy of the recipe.
func (r *Recipe) Clone() *Recipe {
	c := *r
	c.Builder.Descriptors = slices.Clone(r.Builder.Descriptors)
	c.Builder.Sources = slices.Clone(r.Builder.Sources)
	c.JRE.Modules = slices.Clone(r.JRE.Modules)
	c.Runtime.Args = slices.Clone(r.Runtime.Args)
	return &c
}

// Encodes the recipe as YAML.
func (r *Recipe) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}
