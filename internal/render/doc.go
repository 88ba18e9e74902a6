// Package render rasterizes a crop session into an output image.
//
// The rasterizer composes the decoded source onto a viewport-sized canvas
// through the session's view matrix, encodes it and hands the bytes to a
// Sink. Pixels outside the transformed image are filled with the
// background colour (black by default).
//
// Only one capture runs at a time per Rasterizer. A second Capture while
// the first is in flight returns a CAPTURE_IN_PROGRESS error immediately;
// it is never queued.
package render
