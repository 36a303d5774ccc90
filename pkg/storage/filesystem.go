package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Archive keeps rendered statement exports on disk so that download
// links stay valid after the originating request finished.
type Archive struct {
	root string
}

// NewArchive ensures the archive root exists.
func NewArchive(root string) (*Archive, error) {
	if root == "" {
		root = "./exports"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create archive root: %w", err)
	}
	return &Archive{root: root}, nil
}

// Save writes data under the given relative name and returns the name back.
func (a *Archive) Save(name string, data []byte) (string, error) {
	path := a.resolve(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare archive directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write archived export: %w", err)
	}
	return name, nil
}

// Open returns a read handle for an archived export.
func (a *Archive) Open(name string) (*os.File, error) {
	return os.Open(a.resolve(name))
}

// Sweep deletes archived exports older than maxAge and reports how many
// files were removed. Download tokens expire on the same clock, so a
// swept file was already unreachable.
func (a *Archive) Sweep(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	err := filepath.WalkDir(a.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("sweep archive: %w", err)
	}
	return removed, nil
}

func (a *Archive) resolve(name string) string {
	return filepath.Join(a.root, filepath.Clean("/"+name))
}
