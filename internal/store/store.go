package store

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/cropper/internal/crop"
)

// DefaultKey is the backend key holding every session.
const DefaultKey = "cropData"

// Store is the per-image crop session map.
//
// The map is read from the backend once and cached; every Save writes the
// whole map back under one key. Safe for concurrent use: all operations are
// serialized by a mutex.
type Store struct {
	backend    Backend
	key        string
	maxEntries int
	clock      *crop.Clock

	mu      sync.Mutex
	loaded  bool
	records map[string]crop.Record
}

// Option configures a Store.
type Option func(*Store)

// WithKey sets the backend key. Default: DefaultKey.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithMaxEntries caps the number of stored sessions.
// Zero or negative means unbounded, which is the default.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		s.maxEntries = n
	}
}

// New creates a Store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		key:     DefaultKey,
		clock:   crop.NewClock(),
		records: make(map[string]crop.Record),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the backend key in use.
func (s *Store) Key() string {
	return s.key
}

// Load returns every saved transform keyed by file ID.
// It reads the backend on first use only and never fails.
func (s *Store) Load(ctx context.Context) map[string]crop.Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	return s.transformsLocked()
}

// Reload drops the cache and reads the backend again.
func (s *Store) Reload(ctx context.Context) map[string]crop.Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.ensureLoaded(ctx)
	return s.transformsLocked()
}

// Get returns the saved transform for fileID.
func (s *Store) Get(ctx context.Context, fileID string) (crop.Transform, bool) {
	rec, ok := s.Record(ctx, fileID)
	if !ok {
		return crop.Transform{}, false
	}
	return rec.Transform(), true
}

// Record returns the full persisted record for fileID.
func (s *Store) Record(ctx context.Context, fileID string) (crop.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	rec, ok := s.records[crop.NormalizeFileID(fileID)]
	return rec, ok
}

// Records returns a copy of every persisted record.
func (s *Store) Records(ctx context.Context) map[string]crop.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	out := make(map[string]crop.Record, len(s.records))
	for id, rec := range s.records {
		out[id] = rec
	}
	return out
}

// Save upserts the transform for fileID and persists the whole map.
// Non-finite components are sanitized first so the map always encodes.
// Legacy fields of an existing record are kept. On failure the in-memory
// map still holds the new value and a PERSISTENCE error is returned.
func (s *Store) Save(ctx context.Context, fileID string, t crop.Transform) error {
	id := crop.NormalizeFileID(fileID)
	t = t.Sanitize()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	rec, ok := s.records[id]
	if ok {
		rec = rec.WithTransform(t)
	} else {
		rec = crop.NewRecord(t)
	}
	rec.Seq = s.clock.Next()
	s.records[id] = rec

	s.evictLocked()

	if err := s.flushLocked(ctx); err != nil {
		return crop.NewPersistenceError("save session", id, err)
	}

	slog.Debug("crop session saved",
		"file_id", id,
		"scale", t.Scale,
		"translate_x", t.TranslateX,
		"translate_y", t.TranslateY,
		"seq", rec.Seq,
	)
	return nil
}

// Delete removes the session for fileID and persists the map.
// Deleting a missing session is a no-op.
func (s *Store) Delete(ctx context.Context, fileID string) error {
	id := crop.NormalizeFileID(fileID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	if _, ok := s.records[id]; !ok {
		return nil
	}
	delete(s.records, id)

	if err := s.flushLocked(ctx); err != nil {
		return crop.NewPersistenceError("delete session", id, err)
	}
	return nil
}

// Clear removes every session and the backend record.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]crop.Record)
	s.loaded = true

	if err := s.backend.RemoveItem(ctx, s.key); err != nil {
		return crop.NewPersistenceError("clear sessions", "", err)
	}
	return nil
}

// Close closes the backend if it holds resources.
func (s *Store) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ensureLoaded reads the backend record into the cache once.
// Read and decode failures are logged and leave the cache empty.
func (s *Store) ensureLoaded(ctx context.Context) {
	if s.loaded {
		return
	}
	s.loaded = true
	s.records = make(map[string]crop.Record)

	raw, ok, err := s.backend.GetItem(ctx, s.key)
	if err != nil && ctx.Err() != nil {
		// cancelled before the read finished; try again on next use
		s.loaded = false
		return
	}
	if err != nil {
		slog.Warn("failed to read crop sessions, starting empty",
			"key", s.key,
			"error", err,
		)
		return
	}
	if !ok || raw == "" {
		return
	}

	var decoded map[string]crop.Record
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		slog.Warn("failed to decode crop sessions, starting empty",
			"key", s.key,
			"error", err,
		)
		return
	}

	var maxSeq int64
	for id, rec := range decoded {
		norm := crop.NormalizeFileID(id)
		if prev, dup := s.records[norm]; dup && prev.Seq > rec.Seq {
			continue
		}
		s.records[norm] = rec
		if rec.Seq > maxSeq {
			maxSeq = rec.Seq
		}
	}
	s.clock.Advance(maxSeq)

	slog.Debug("crop sessions loaded", "key", s.key, "count", len(s.records))
}

func (s *Store) transformsLocked() map[string]crop.Transform {
	out := make(map[string]crop.Transform, len(s.records))
	for id, rec := range s.records {
		out[id] = rec.Transform()
	}
	return out
}

// evictLocked drops the oldest sessions above the entry cap.
func (s *Store) evictLocked() {
	if s.maxEntries <= 0 || len(s.records) <= s.maxEntries {
		return
	}

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.records[ids[i]], s.records[ids[j]]
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		return ids[i] < ids[j]
	})

	excess := len(ids) - s.maxEntries
	for _, id := range ids[:excess] {
		delete(s.records, id)
		slog.Debug("crop session evicted", "file_id", id)
	}
}

func (s *Store) flushLocked(ctx context.Context) error {
	data, err := json.Marshal(s.records)
	if err != nil {
		return err
	}
	return s.backend.SetItem(ctx, s.key, string(data))
}
