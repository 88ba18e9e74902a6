// Package geometry holds the pure math of the cropper.
//
// FitScale computes the smallest scale at which an image covers the
// viewport. ClampTranslation is the single source of truth for whether a
// transform keeps the viewport covered: on each axis the translation may
// move at most half of the overhang, max(0, (imageSize*scale - viewport)/2).
//
// Gesture updates use a rejection policy: a proposed scale outside the
// gesture limits is ignored rather than clamped, so the image holds its last
// in-range scale until the fingers come back in range.
//
// ViewMatrix and VisibleRect express the same layout as an affine map
// between image pixels and viewport points.
//
// Every function here is side-effect free and safe for concurrent use.
package geometry
