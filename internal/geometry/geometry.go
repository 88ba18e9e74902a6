package geometry

import "math"

// Default gesture scale limits.
const (
	DefaultMinScale = 0.5
	DefaultMaxScale = 5.0
)

// Limits bounds the scale of a transform.
//
// MinScale and MaxScale are the gesture acceptance range. When EnforceCover
// is set, a settled transform never drops below the fit scale, so the image
// always covers the viewport after a gesture ends.
type Limits struct {
	MinScale     float64 `json:"min_scale" yaml:"min_scale"`
	MaxScale     float64 `json:"max_scale" yaml:"max_scale"`
	EnforceCover bool    `json:"enforce_cover" yaml:"enforce_cover"`
}

// DefaultLimits returns the [0.5, 5] range with cover enforcement.
func DefaultLimits() Limits {
	return Limits{
		MinScale:     DefaultMinScale,
		MaxScale:     DefaultMaxScale,
		EnforceCover: true,
	}
}

func validDim(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FitScale returns max(vw/iw, vh/ih), the smallest scale at which the image
// fully covers the viewport. Returns 1 when any dimension is unusable.
func FitScale(imageW, imageH, viewportW, viewportH float64) float64 {
	if !validDim(imageW) || !validDim(imageH) || !validDim(viewportW) || !validDim(viewportH) {
		return 1
	}
	return math.Max(viewportW/imageW, viewportH/imageH)
}

// MaxOffset returns how far the image may move from centre on one axis.
func MaxOffset(imageSize, scale, viewportSize float64) float64 {
	return math.Max(0, (imageSize*scale-viewportSize)/2)
}

// ClampTranslation clamps each axis of (tx, ty) to [-maxOffset, +maxOffset]
// for the given scale. The axes are independent.
func ClampTranslation(tx, ty, scale, imageW, imageH, viewportW, viewportH float64) (float64, float64) {
	maxX := MaxOffset(imageW, scale, viewportW)
	maxY := MaxOffset(imageH, scale, viewportH)
	return clamp(tx, -maxX, maxX), clamp(ty, -maxY, maxY)
}

// AcceptScale reports whether proposed falls in [lo, hi].
// It returns proposed unchanged when accepted.
func AcceptScale(proposed, lo, hi float64) (float64, bool) {
	if math.IsNaN(proposed) || proposed < lo || proposed > hi {
		return proposed, false
	}
	return proposed, true
}

// EffectiveRange returns the settle-time scale range for an image whose fit
// scale is fit. With EnforceCover the lower bound is raised to fit; the upper
// bound is never below the lower one.
func EffectiveRange(l Limits, fit float64) (float64, float64) {
	lo := l.MinScale
	if l.EnforceCover && fit > lo {
		lo = fit
	}
	hi := math.Max(l.MaxScale, lo)
	return lo, hi
}

// ClampScale clamps s into [lo, hi].
func ClampScale(s, lo, hi float64) float64 {
	return clamp(s, lo, hi)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
