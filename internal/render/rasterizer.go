package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"sync/atomic"

	"golang.org/x/image/draw"

	"github.com/roach88/cropper/internal/crop"
	"github.com/roach88/cropper/internal/geometry"
)

// Rasterizer renders and encodes crop output.
type Rasterizer struct {
	sink         Sink
	format       Format
	quality      int
	interpolator Interpolator
	background   color.Color

	busy atomic.Bool
}

// Option configures a Rasterizer.
type Option func(*Rasterizer)

// WithFormat sets the output encoding. Default: JPEG.
func WithFormat(f Format) Option {
	return func(r *Rasterizer) {
		r.format = f
	}
}

// WithQuality sets the JPEG quality in [1, 100]. Default: 90.
func WithQuality(q int) Option {
	return func(r *Rasterizer) {
		if q >= 1 && q <= 100 {
			r.quality = q
		}
	}
}

// WithInterpolator sets the resampling kernel. Default: bilinear.
func WithInterpolator(i Interpolator) Option {
	return func(r *Rasterizer) {
		r.interpolator = i
	}
}

// WithBackground sets the fill colour for uncovered pixels.
func WithBackground(c color.Color) Option {
	return func(r *Rasterizer) {
		r.background = c
	}
}

// New creates a Rasterizer writing to sink.
func New(sink Sink, opts ...Option) *Rasterizer {
	r := &Rasterizer{
		sink:         sink,
		format:       FormatJPEG,
		quality:      DefaultQuality,
		interpolator: InterpolatorBilinear,
		background:   color.Black,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Format returns the configured output encoding.
func (r *Rasterizer) Format() Format {
	return r.format
}

// Render composes src onto a viewport-sized canvas under t.
func (r *Rasterizer) Render(src image.Image, t crop.Transform, vp crop.Viewport) (*image.RGBA, error) {
	if !vp.HasLayout() {
		return nil, fmt.Errorf("viewport has no layout (%vx%v)", vp.Width, vp.Height)
	}
	w, h := vp.PixelSize()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("viewport rounds to an empty raster (%dx%d)", w, h)
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("source image is empty")
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(r.background), image.Point{}, draw.Src)

	s2d := geometry.ViewMatrix(t, float64(b.Dx()), float64(b.Dy()), vp)
	// source bounds may not start at the origin
	s2d[2] -= s2d[0] * float64(b.Min.X)
	s2d[5] -= s2d[4] * float64(b.Min.Y)

	r.interpolator.transformer().Transform(dst, s2d, src, b, draw.Over, nil)
	return dst, nil
}

// Encode writes img in the configured format.
func (r *Rasterizer) Encode(w io.Writer, img image.Image) error {
	if r.format == FormatPNG {
		return png.Encode(w, img)
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: r.quality})
}

// Frame is everything a capture needs from a session.
type Frame struct {
	FileID    string
	Transform crop.Transform
	Viewport  crop.Viewport

	// Source decodes the full-resolution image.
	Source func(ctx context.Context) (image.Image, error)
}

// Capture renders f, encodes it and writes it to the sink.
// It returns the output URI and pixel size. Overlapping calls are rejected
// with CAPTURE_IN_PROGRESS; all other failures are CAPTURE errors.
func (r *Rasterizer) Capture(ctx context.Context, f Frame) (crop.ImageAsset, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return crop.ImageAsset{}, crop.NewCaptureInProgressError(f.FileID)
	}
	defer r.busy.Store(false)

	if !f.Viewport.HasLayout() {
		return crop.ImageAsset{}, crop.NewCaptureError(f.FileID, "viewport has no layout", nil)
	}
	if f.Source == nil {
		return crop.ImageAsset{}, crop.NewCaptureError(f.FileID, "no image source", nil)
	}

	src, err := f.Source(ctx)
	if err != nil {
		return crop.ImageAsset{}, crop.NewCaptureError(f.FileID, "load source image", err)
	}

	img, err := r.Render(src, f.Transform, f.Viewport)
	if err != nil {
		return crop.ImageAsset{}, crop.NewCaptureError(f.FileID, "render", err)
	}

	w, uri, err := r.sink.Create(ctx, r.format.Ext())
	if err != nil {
		return crop.ImageAsset{}, crop.NewCaptureError(f.FileID, "create output", err)
	}
	if err := r.Encode(w, img); err != nil {
		w.Close()
		return crop.ImageAsset{}, crop.NewCaptureError(f.FileID, "encode output", err)
	}
	if err := w.Close(); err != nil {
		return crop.ImageAsset{}, crop.NewCaptureError(f.FileID, "write output", err)
	}

	b := img.Bounds()
	slog.Info("crop captured",
		"file_id", f.FileID,
		"uri", uri,
		"width", b.Dx(),
		"height", b.Dy(),
		"scale", f.Transform.Scale,
	)
	return crop.ImageAsset{URI: uri, Width: b.Dx(), Height: b.Dy()}, nil
}
