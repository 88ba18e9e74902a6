package testutil

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/roach88/cropper/internal/crop"
)

type fakeImage struct {
	width, height int
	img           image.Image
	err           error
}

// FakeSource is an in-memory image source keyed by URI.
//
// Images registered with AddSize are only materialized on Decode. Setting
// a gate with Hold makes Probe block until Release or context cancellation.
// Safe for concurrent use.
type FakeSource struct {
	mu     sync.Mutex
	images map[string]fakeImage
	gate   chan struct{}
	probes int
}

// NewFakeSource creates an empty FakeSource.
func NewFakeSource() *FakeSource {
	return &FakeSource{images: make(map[string]fakeImage)}
}

// Add registers img at uri.
func (s *FakeSource) Add(uri string, img image.Image) {
	b := img.Bounds()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[uri] = fakeImage{width: b.Dx(), height: b.Dy(), img: img}
}

// AddSize registers a gray w×h image at uri.
func (s *FakeSource) AddSize(uri string, w, h int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[uri] = fakeImage{width: w, height: h}
}

// Fail makes Probe and Decode of uri return err.
func (s *FakeSource) Fail(uri string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[uri] = fakeImage{err: err}
}

// Hold makes subsequent probes block until Release.
func (s *FakeSource) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = make(chan struct{})
}

// Release unblocks held probes.
func (s *FakeSource) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate != nil {
		close(s.gate)
		s.gate = nil
	}
}

// Probes returns how many times Probe was called.
func (s *FakeSource) Probes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probes
}

func (s *FakeSource) lookup(uri string) (fakeImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fi, ok := s.images[uri]
	if !ok {
		return fakeImage{}, fmt.Errorf("no such image: %s", uri)
	}
	if fi.err != nil {
		return fakeImage{}, fi.err
	}
	return fi, nil
}

// Probe returns the registered dimensions of uri.
func (s *FakeSource) Probe(ctx context.Context, uri string) (crop.ImageAsset, error) {
	s.mu.Lock()
	s.probes++
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return crop.ImageAsset{}, ctx.Err()
		}
	}

	fi, err := s.lookup(uri)
	if err != nil {
		return crop.ImageAsset{}, err
	}
	return crop.ImageAsset{URI: uri, Width: fi.width, Height: fi.height}, nil
}

// Decode returns the registered image, materializing sized entries.
func (s *FakeSource) Decode(ctx context.Context, uri string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fi, err := s.lookup(uri)
	if err != nil {
		return nil, err
	}
	if fi.img != nil {
		return fi.img, nil
	}
	return SolidImage(fi.width, fi.height, Gray), nil
}
