package store

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// FileBackend stores each key as <dir>/<escaped key>.json.
// Writes go to a temporary file in the same directory and are renamed
// into place, so readers never observe a partial value.
type FileBackend struct {
	dir string
}

// NewFileBackend creates a FileBackend rooted at dir.
// The directory is created on first write.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir}
}

func (f *FileBackend) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

// GetItem implements Backend.
func (f *FileBackend) GetItem(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return string(data), true, nil
}

// SetItem implements Backend.
func (f *FileBackend) SetItem(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmpPath, f.path(key)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}

// RemoveItem implements Backend.
func (f *FileBackend) RemoveItem(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
