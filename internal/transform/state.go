// Package transform tracks the live transform of one crop session.
//
// Gesture updates are applied against a snapshot taken when the gesture
// began, never accumulated onto the previous update, so a long drag cannot
// drift. Updates are unclamped; Settle restores the geometry constraints
// when a gesture ends.
//
// State is not safe for concurrent use. The engine serializes access.
package transform

import (
	"github.com/roach88/cropper/internal/crop"
	"github.com/roach88/cropper/internal/geometry"
)

// State is the mutable transform of one mounted image.
type State struct {
	image    crop.ImageAsset
	viewport crop.Viewport
	limits   geometry.Limits

	current   crop.Transform
	committed crop.Transform

	savedScale float64
	savedTX    float64
	savedTY    float64
}

// New creates a State for image inside viewport, starting at initial.
// The initial translation is clamped for the initial scale and the result
// is taken as committed. The scale is kept, so a fit below the gesture
// floor survives until the first settle.
func New(image crop.ImageAsset, viewport crop.Viewport, limits geometry.Limits, initial crop.Transform) *State {
	initial = initial.Sanitize()
	initial.TranslateX, initial.TranslateY = geometry.ClampTranslation(
		initial.TranslateX, initial.TranslateY, initial.Scale,
		float64(image.Width), float64(image.Height), viewport.Width, viewport.Height,
	)
	s := &State{
		image:     image,
		viewport:  viewport,
		limits:    limits,
		current:   initial,
		committed: initial,
	}
	s.snapshot()
	return s
}

// FitTransform returns the initial transform for a new session: the fit
// scale with zero translation.
func FitTransform(image crop.ImageAsset, viewport crop.Viewport) crop.Transform {
	return crop.Transform{
		Scale: geometry.FitScale(float64(image.Width), float64(image.Height), viewport.Width, viewport.Height),
	}
}

func (s *State) snapshot() {
	s.savedScale = s.current.Scale
	s.savedTX = s.current.TranslateX
	s.savedTY = s.current.TranslateY
}

// Current returns the live transform, which may be out of bounds mid-gesture.
func (s *State) Current() crop.Transform {
	return s.current
}

// Committed returns the last settled transform.
func (s *State) Committed() crop.Transform {
	return s.committed
}

// Pending reports whether the live transform differs from the committed one.
func (s *State) Pending() bool {
	return s.current != s.committed
}

// Image returns the asset the state was created for.
func (s *State) Image() crop.ImageAsset {
	return s.image
}

// Viewport returns the crop window.
func (s *State) Viewport() crop.Viewport {
	return s.viewport
}

// FitScale returns the cover scale for the image and viewport.
func (s *State) FitScale() float64 {
	return geometry.FitScale(float64(s.image.Width), float64(s.image.Height), s.viewport.Width, s.viewport.Height)
}

// BeginPan snapshots the translation.
func (s *State) BeginPan() {
	s.savedTX = s.current.TranslateX
	s.savedTY = s.current.TranslateY
}

// BeginPinch snapshots the scale.
func (s *State) BeginPinch() {
	s.savedScale = s.current.Scale
}

// BeginGesture snapshots scale and translation together.
func (s *State) BeginGesture() {
	s.snapshot()
}

// UpdatePan sets the translation to the snapshot plus the cumulative delta.
func (s *State) UpdatePan(dx, dy float64) crop.Transform {
	s.current.TranslateX = s.savedTX + dx
	s.current.TranslateY = s.savedTY + dy
	return s.current
}

// UpdatePinch proposes snapshot scale times factor. Proposals outside the
// gesture limits are ignored and false is returned.
func (s *State) UpdatePinch(factor float64) bool {
	scale, ok := geometry.AcceptScale(s.savedScale*factor, s.limits.MinScale, s.limits.MaxScale)
	if !ok {
		return false
	}
	s.current.Scale = scale
	return true
}

// Settle clamps the scale into the effective range, then clamps the
// translation for that scale, and commits the result. Settling an already
// settled state returns the same transform.
//
// Snapshots are left alone so a gesture still in progress keeps applying
// its deltas from where it began.
func (s *State) Settle() crop.Transform {
	iw, ih := float64(s.image.Width), float64(s.image.Height)
	lo, hi := geometry.EffectiveRange(s.limits, s.FitScale())

	scale := geometry.ClampScale(s.current.Scale, lo, hi)
	tx, ty := geometry.ClampTranslation(
		s.current.TranslateX, s.current.TranslateY,
		scale, iw, ih, s.viewport.Width, s.viewport.Height,
	)

	s.current = crop.Transform{Scale: scale, TranslateX: tx, TranslateY: ty}
	s.committed = s.current
	return s.committed
}

// Reset returns to the fit scale with zero translation and commits it.
func (s *State) Reset() crop.Transform {
	s.current = FitTransform(s.image, s.viewport)
	s.committed = s.current
	s.snapshot()
	return s.committed
}
