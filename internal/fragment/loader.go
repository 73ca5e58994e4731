package fragment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cratenav/cratenav/internal/index"
	"golang.org/x/sync/errgroup"
)

const parseConcurrency = 8

// Result reports the outcome of loading one fragment file.
type Result struct {
	Path            string
	Producer        string
	ImplementorKeys int
	SidebarKeys     int
	Err             error
}

// Loader parses fragment files and registers them into the two indexes.
type Loader struct {
	impls   *index.ImplementorIndex
	sidebar *index.SidebarIndex
}

func NewLoader(impls *index.ImplementorIndex, sidebar *index.SidebarIndex) *Loader {
	return &Loader{impls: impls, sidebar: sidebar}
}

// LoadDir loads every fragment file (*.json, *.json.zst) directly under dir.
func (l *Loader) LoadDir(ctx context.Context, dir string) ([]Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading fragment directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".json.zst") {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return l.LoadFiles(ctx, paths)
}

// LoadFiles loads the given fragment files. Parsing runs concurrently, but
// registration happens sequentially in sorted path order: per-key entry order
// in the merged index is the concatenation in registration order, so the order
// must not depend on parse timing. A file that fails to parse is reported in
// its Result and skipped; it never reaches the registry.
func (l *Loader) LoadFiles(ctx context.Context, paths []string) ([]Result, error) {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	files := make([]*File, len(sorted))
	results := make([]Result, len(sorted))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parseConcurrency)
	for i, path := range sorted {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := ReadFile(path)
			if err != nil {
				results[i] = Result{Path: path, Err: err}
				return nil
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, f := range files {
		if f == nil {
			continue
		}
		l.impls.Register(f.Producer, f.Implementors)
		l.sidebar.Register(f.Producer, f.Sidebar)
		results[i] = Result{
			Path:            sorted[i],
			Producer:        f.Producer,
			ImplementorKeys: len(f.Implementors),
			SidebarKeys:     len(f.Sidebar),
		}
	}
	return results, nil
}
