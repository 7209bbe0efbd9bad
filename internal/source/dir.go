package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DirSource reads knowledge files from a local directory tree.
type DirSource struct {
	root string
}

// NewDirSource creates a source rooted at dir.
func NewDirSource(dir string) (*DirSource, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat knowledge dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("knowledge dir %s is not a directory", abs)
	}
	return &DirSource{root: abs}, nil
}

// Root returns the absolute directory the source reads from.
func (d *DirSource) Root() string {
	return d.root
}

func (d *DirSource) Name() string {
	return "dir:" + d.root
}

// Revision is the latest modification time of any knowledge file.
func (d *DirSource) Revision(ctx context.Context) (string, error) {
	var latest time.Time
	err := d.walk(ctx, func(_ string, info fs.FileInfo) {
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	})
	if err != nil {
		return "", err
	}
	return latest.UTC().Format(time.RFC3339Nano), nil
}

func (d *DirSource) List(ctx context.Context) ([]string, error) {
	var paths []string
	err := d.walk(ctx, func(rel string, _ fs.FileInfo) {
		paths = append(paths, rel)
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func (d *DirSource) Fetch(ctx context.Context, path string) (*Document, error) {
	full, err := d.Resolve(path)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return &Document{
		Path:    path,
		Content: string(content),
		URL:     "file://" + filepath.ToSlash(full),
	}, nil
}

// Resolve maps a source path to a file under the root, rejecting paths that
// escape it.
func (d *DirSource) Resolve(path string) (string, error) {
	full := filepath.Join(d.root, filepath.FromSlash(path))
	rel, err := filepath.Rel(d.root, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %s is outside %s", ErrNotFound, path, d.root)
	}
	return full, nil
}

// Relative maps an absolute file name under the root to a source path.
func (d *DirSource) Relative(name string) (string, bool) {
	rel, err := filepath.Rel(d.root, name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (d *DirSource) walk(ctx context.Context, fn func(rel string, info fs.FileInfo)) error {
	err := filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			if p != d.root && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsKnowledgeFile(entry.Name()) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		rel, _ := d.Relative(p)
		fn(rel, info)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", d.root, err)
	}
	return nil
}
