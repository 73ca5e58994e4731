// Package fragment reads the per-crate navigation fragment files emitted by
// the doc generator and registers their contents into the in-memory indexes.
// Validation of malformed files happens here, at the boundary: the registry
// behind the indexes assumes well-formed input and has no recovery path.
package fragment

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cratenav/cratenav/internal/index"
	"github.com/klauspost/compress/zstd"
)

// File is one producer's fragment document: a literal mapping from trait path
// to implementor records and from module path to sidebar member records. One
// file per documented crate.
type File struct {
	Producer     string                         `json:"producer"`
	Implementors map[string][]index.Implementor `json:"implementors,omitempty"`
	Sidebar      map[string][]index.SidebarItem `json:"sidebar,omitempty"`
}

// Decode parses a fragment document. Decode errors and a missing producer id
// are rejected here so they never reach the registry; empty entry maps are
// legal (a crate can contribute nothing).
func Decode(r io.Reader) (*File, error) {
	var f File
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding fragment: %w", err)
	}
	if f.Producer == "" {
		return nil, errors.New("fragment is missing a producer id")
	}
	for path, items := range f.Sidebar {
		for i, it := range items {
			if it.Name == "" {
				return nil, fmt.Errorf("fragment %s: sidebar entry %d under %q has no name", f.Producer, i, path)
			}
		}
	}
	return &f, nil
}

// ReadFile loads a fragment from disk. Files ending in .zst are decompressed
// transparently; the generator emits either plain .json or .json.zst.
func ReadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening fragment file: %w", err)
	}
	defer fh.Close()

	var r io.Reader = fh
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(fh)
		if err != nil {
			return nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	f, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return f, nil
}

// WriteFile stores a fragment as zstd-compressed JSON. Used by tests and by
// tooling that re-emits fragments; the generator proper lives elsewhere.
func WriteFile(path string, f *File) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating fragment file: %w", err)
	}
	defer fh.Close()

	var w io.Writer = fh
	var zw *zstd.Encoder
	if strings.HasSuffix(path, ".zst") {
		zw, err = zstd.NewWriter(fh)
		if err != nil {
			return fmt.Errorf("creating zstd writer: %w", err)
		}
		w = zw
	}

	if err := json.NewEncoder(w).Encode(f); err != nil {
		if zw != nil {
			zw.Close()
		}
		return fmt.Errorf("encoding fragment: %w", err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return fmt.Errorf("closing zstd writer: %w", err)
		}
	}
	return nil
}
