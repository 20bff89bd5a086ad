package hosting

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/a11yfix/extract"
)

// MaxFileSize bounds a source file read through a Source.
const MaxFileSize = 2 << 20

// Source lists and reads candidate source files. Paths are slash
// separated and relative to the source root.
type Source interface {
	ListFiles(ctx context.Context) ([]string, error)
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// skipDir reports directories never descended into.
func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor"
}

type repoSource struct {
	host     Host
	maxDepth int
}

// RepoSource lists a repository through h. Directories deeper than
// maxDepth levels below the root are not listed (default 3).
func RepoSource(h Host, maxDepth int) Source {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return &repoSource{host: h, maxDepth: maxDepth}
}

func (r *repoSource) ListFiles(ctx context.Context) ([]string, error) {
	var out []string
	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		entries, err := r.host.ListFiles(ctx, dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			switch e.Type {
			case EntryFile:
				if _, ok := extract.DialectOf(e.Path); ok {
					out = append(out, e.Path)
				}
			case EntryDir:
				if depth+1 > r.maxDepth || skipDir(path.Base(e.Path)) {
					continue
				}
				if err := walk(e.Path, depth+1); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk("", 0); err != nil {
		return nil, fmt.Errorf("hosting: list repository: %w", err)
	}
	return out, nil
}

func (r *repoSource) ReadFile(ctx context.Context, p string) ([]byte, error) {
	content, _, err := r.host.GetFile(ctx, p, "")
	if err != nil {
		return nil, err
	}
	if len(content) > MaxFileSize {
		return nil, fmt.Errorf("hosting: %s: exceeds %d bytes", p, MaxFileSize)
	}
	return []byte(content), nil
}

type dirSource struct {
	root     string
	maxDepth int
}

// DirSource reads a local checkout. maxDepth bounds directory nesting
// (default 8).
func DirSource(root string, maxDepth int) Source {
	if maxDepth <= 0 {
		maxDepth = 8
	}
	return &dirSource{root: root, maxDepth: maxDepth}
}

func (d *dirSource) ListFiles(ctx context.Context) ([]string, error) {
	var out []string
	err := filepath.WalkDir(d.root, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, rerr := filepath.Rel(d.root, p)
		if rerr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if e.IsDir() {
			if skipDir(e.Name()) || strings.Count(rel, "/")+1 > d.maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if !e.Type().IsRegular() {
			return nil
		}
		if _, ok := extract.DialectOf(rel); ok {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("hosting: list %s: %w", d.root, err)
	}
	return out, nil
}

// ReadFile opens p inside the root; paths escaping it are rejected.
func (d *dirSource) ReadFile(_ context.Context, p string) ([]byte, error) {
	root, err := os.OpenRoot(d.root)
	if err != nil {
		return nil, fmt.Errorf("hosting: open %s: %w", d.root, err)
	}
	defer root.Close()
	f, err := root.Open(filepath.FromSlash(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, fmt.Errorf("hosting: read %s: %w", p, err)
	}
	defer f.Close()
	b, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("hosting: read %s: %w", p, err)
	}
	if len(b) > MaxFileSize {
		return nil, fmt.Errorf("hosting: %s: exceeds %d bytes", p, MaxFileSize)
	}
	return b, nil
}
