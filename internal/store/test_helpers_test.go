package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
)

// createTestBackend opens a SQLite backend in a temp directory.
func createTestBackend(t *testing.T) *SQLiteBackend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	b, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

var errInjected = errors.New("injected failure")

// flakyBackend wraps a MemoryBackend and fails on demand.
type flakyBackend struct {
	*MemoryBackend
	mu       sync.Mutex
	failGet  bool
	failSet  bool
	setCalls int
}

func newFlakyBackend() *flakyBackend {
	return &flakyBackend{MemoryBackend: NewMemoryBackend()}
}

func (f *flakyBackend) GetItem(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	fail := f.failGet
	f.mu.Unlock()
	if fail {
		return "", false, errInjected
	}
	return f.MemoryBackend.GetItem(ctx, key)
}

func (f *flakyBackend) SetItem(ctx context.Context, key, value string) error {
	f.mu.Lock()
	f.setCalls++
	fail := f.failSet
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	return f.MemoryBackend.SetItem(ctx, key, value)
}
