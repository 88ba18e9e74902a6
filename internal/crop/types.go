package crop

import (
	"math"

	"golang.org/x/text/unicode/norm"
)

// ImageAsset identifies a source image and its natural pixel dimensions.
// Width and Height are set once, after metadata has loaded.
type ImageAsset struct {
	URI    string `json:"uri"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// HasDimensions reports whether both dimensions are known and positive.
func (a ImageAsset) HasDimensions() bool {
	return a.Width > 0 && a.Height > 0
}

// Transform is the mapping of an image into the viewport.
//
// Translation is measured in viewport points from the centred position.
// Scale is applied about the image centre.
type Transform struct {
	Scale      float64 `json:"scale" yaml:"scale"`
	TranslateX float64 `json:"translateX" yaml:"translate_x"`
	TranslateY float64 `json:"translateY" yaml:"translate_y"`
}

// Identity returns the transform that shows the image at natural size, centred.
func Identity() Transform {
	return Transform{Scale: 1}
}

// Sanitize replaces unusable components with their neutral values:
// a non-positive or non-finite scale becomes 1, non-finite translation 0.
func (t Transform) Sanitize() Transform {
	if t.Scale <= 0 || math.IsNaN(t.Scale) || math.IsInf(t.Scale, 0) {
		t.Scale = 1
	}
	if math.IsNaN(t.TranslateX) || math.IsInf(t.TranslateX, 0) {
		t.TranslateX = 0
	}
	if math.IsNaN(t.TranslateY) || math.IsInf(t.TranslateY, 0) {
		t.TranslateY = 0
	}
	return t
}

// Point is a 2D position in viewport points.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Record is the persisted form of one crop session.
//
// Crop, Zoom and MinZoom are deprecated. They are written with defaults when
// a record is created and carried through unchanged on every update so older
// readers of the stored data keep working. Seq is a logical stamp used for
// capped stores and is omitted when zero.
type Record struct {
	Scale      float64 `json:"scale"`
	TranslateX float64 `json:"translateX"`
	TranslateY float64 `json:"translateY"`
	Crop       Point   `json:"crop"`
	Zoom       float64 `json:"zoom"`
	MinZoom    float64 `json:"minZoom"`
	Seq        int64   `json:"seq,omitempty"`
}

// NewRecord creates a record for t with default legacy fields.
func NewRecord(t Transform) Record {
	return Record{
		Scale:      t.Scale,
		TranslateX: t.TranslateX,
		TranslateY: t.TranslateY,
		Crop:       Point{},
		Zoom:       1,
		MinZoom:    1,
	}
}

// Transform returns the session transform held by the record.
func (r Record) Transform() Transform {
	return Transform{
		Scale:      r.Scale,
		TranslateX: r.TranslateX,
		TranslateY: r.TranslateY,
	}.Sanitize()
}

// WithTransform returns a copy of r with the transform fields replaced.
// Legacy fields are kept; a record decoded without them gets the defaults.
func (r Record) WithTransform(t Transform) Record {
	r.Scale = t.Scale
	r.TranslateX = t.TranslateX
	r.TranslateY = t.TranslateY
	if r.Zoom == 0 {
		r.Zoom = 1
	}
	if r.MinZoom == 0 {
		r.MinZoom = 1
	}
	return r
}

// DefaultAspectWidth and DefaultAspectHeight give the 3:4 crop window.
const (
	DefaultAspectWidth  = 3
	DefaultAspectHeight = 4
)

// Viewport is the fixed-aspect crop window, in points.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewViewport builds a 3:4 viewport from the container width.
func NewViewport(width float64) Viewport {
	return NewViewportWithAspect(width, DefaultAspectWidth, DefaultAspectHeight)
}

// NewViewportWithAspect builds a viewport whose height follows the given
// aspect ratio. Non-positive aspect components fall back to 3:4.
func NewViewportWithAspect(width, aspectW, aspectH float64) Viewport {
	if aspectW <= 0 || aspectH <= 0 {
		aspectW, aspectH = DefaultAspectWidth, DefaultAspectHeight
	}
	return Viewport{Width: width, Height: width * aspectH / aspectW}
}

// HasLayout reports whether the viewport has a usable, finite size.
func (v Viewport) HasLayout() bool {
	return v.Width > 0 && v.Height > 0 &&
		!math.IsInf(v.Width, 0) && !math.IsInf(v.Height, 0)
}

// PixelSize returns the output raster size for the viewport.
func (v Viewport) PixelSize() (int, int) {
	return int(math.Round(v.Width)), int(math.Round(v.Height))
}

// NormalizeFileID returns the NFC form of id.
func NormalizeFileID(id string) string {
	return norm.NFC.String(id)
}
