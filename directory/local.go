package directory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const tmpPrefix = ".tmp-"

// LocalDirectory implements Directory on a directory of a shared mounted
// filesystem. Atomicity comes from writing to a temp file and renaming it
// into place; the filesystem provides the rest.
type LocalDirectory struct {
	root string
}

var _ Directory = (*LocalDirectory)(nil)

// NewLocalDirectory opens (creating if absent) the directory at root.
func NewLocalDirectory(root string) (*LocalDirectory, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("directory: create %q: %w", root, err)
	}
	return &LocalDirectory{root: root}, nil
}

// Root returns the backing directory path.
func (d *LocalDirectory) Root() string {
	return d.root
}

func (d *LocalDirectory) Read(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(d.root, path))
	if errors.Is(err, fs.ErrNotExist) {
		// Missing content reads as empty on every backend.
		return []byte{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("directory: read %q: %w", path, err)
	}
	return data, nil
}

func (d *LocalDirectory) WriteAtomic(_ context.Context, path string, data []byte) error {
	tmp, err := os.CreateTemp(d.root, tmpPrefix+filepath.Base(path))
	if err != nil {
		return fmt.Errorf("directory: temp file for %q: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("directory: write %q: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("directory: sync %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("directory: close %q: %w", path, err)
	}

	if err := os.Rename(tmpName, filepath.Join(d.root, path)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("directory: rename %q: %w", path, err)
	}
	return nil
}

func (d *LocalDirectory) Delete(_ context.Context, path string) error {
	err := os.Remove(filepath.Join(d.root, path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("directory: delete %q: %w", path, err)
	}
	return nil
}

func (d *LocalDirectory) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("directory: list %q: %w", d.root, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), tmpPrefix) {
			continue
		}
		paths = append(paths, entry.Name())
	}
	sort.Strings(paths)
	return paths, nil
}

func (d *LocalDirectory) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(filepath.Join(d.root, path))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("directory: stat %q: %w", path, err)
	}
	return true, nil
}
