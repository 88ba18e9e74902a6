// Package source reads source images for the cropper.
//
// A source URI is a plain filesystem path, a file:// URL or an http(s)://
// URL. Probe reads only the image header to learn its natural dimensions;
// Decode reads the full image. JPEG, PNG, GIF, BMP, TIFF and WebP are
// recognised.
package source

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/roach88/cropper/internal/crop"
)

// DefaultTimeout bounds a single HTTP fetch.
const DefaultTimeout = 30 * time.Second

// Loader opens source images by URI.
type Loader struct {
	HTTPClient *http.Client
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient replaces the HTTP client used for remote URIs.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		if c != nil {
			l.HTTPClient = c
		}
	}
}

// WithTimeout sets the HTTP timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.HTTPClient.Timeout = d
		}
	}
}

// NewLoader creates a Loader with a 30 second HTTP timeout.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Probe returns the natural dimensions of the image at uri.
func (l *Loader) Probe(ctx context.Context, uri string) (crop.ImageAsset, error) {
	r, err := l.open(ctx, uri)
	if err != nil {
		return crop.ImageAsset{}, err
	}
	defer r.Close()

	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return crop.ImageAsset{}, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return crop.ImageAsset{}, fmt.Errorf("image has invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}

	slog.Debug("image probed", "uri", uri, "format", format, "width", cfg.Width, "height", cfg.Height)
	return crop.ImageAsset{URI: uri, Width: cfg.Width, Height: cfg.Height}, nil
}

// Decode reads the full image at uri.
func (l *Loader) Decode(ctx context.Context, uri string) (image.Image, error) {
	r, err := l.open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func (l *Loader) open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if uri == "" {
		return nil, fmt.Errorf("empty image uri")
	}

	switch {
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return l.fetch(ctx, uri)
	case strings.HasPrefix(uri, "file://"):
		u, err := url.Parse(uri)
		if err != nil {
			return nil, fmt.Errorf("parse file uri: %w", err)
		}
		return openFile(u.Path)
	default:
		return openFile(uri)
	}
}

func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	return f, nil
}

func (l *Loader) fetch(ctx context.Context, uri string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := l.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
