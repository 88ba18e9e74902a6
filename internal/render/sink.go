package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Sink receives encoded output images.
//
// Create opens a new output with the given extension and returns a writer
// together with the URI the output will be reachable at once the writer
// is closed.
type Sink interface {
	Create(ctx context.Context, ext string) (io.WriteCloser, string, error)
}

// DirSink writes outputs into a directory as crop-<uuidv7><ext>.
// UUIDv7 names sort by creation time.
type DirSink struct {
	Dir string
}

// NewDirSink creates a DirSink for dir. The directory is created on demand.
func NewDirSink(dir string) *DirSink {
	return &DirSink{Dir: dir}
}

// Create implements Sink.
func (s *DirSink) Create(ctx context.Context, ext string) (io.WriteCloser, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return nil, "", fmt.Errorf("create output directory: %w", err)
	}

	name := "crop-" + uuid.Must(uuid.NewV7()).String() + ext
	path := filepath.Join(s.Dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, "", fmt.Errorf("create output file: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return f, abs, nil
}

// MemorySink keeps outputs in memory under mem://<n><ext> URIs.
// Safe for concurrent use.
type MemorySink struct {
	mu      sync.Mutex
	n       int
	outputs map[string][]byte
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{outputs: make(map[string][]byte)}
}

// Create implements Sink.
func (s *MemorySink) Create(ctx context.Context, ext string) (io.WriteCloser, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	s.mu.Lock()
	s.n++
	uri := fmt.Sprintf("mem://%d%s", s.n, ext)
	s.mu.Unlock()
	return &memoryWriter{sink: s, uri: uri}, uri, nil
}

// Bytes returns the output stored at uri.
func (s *MemorySink) Bytes(uri string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.outputs[uri]
	return b, ok
}

// Len returns the number of completed outputs.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outputs)
}

type memoryWriter struct {
	bytes.Buffer
	sink *MemorySink
	uri  string
}

func (w *memoryWriter) Close() error {
	w.sink.mu.Lock()
	defer w.sink.mu.Unlock()
	w.sink.outputs[w.uri] = w.Bytes()
	return nil
}
