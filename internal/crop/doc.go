// Package crop defines the shared data model of the cropper.
//
// A crop session maps one source image into a fixed-aspect viewport through
// a Transform: the image is laid out at its natural size centred in the
// viewport, translated by (TranslateX, TranslateY) and scaled by Scale about
// its own centre. Everything outside the viewport is discarded when the
// session is rasterized.
//
// # Types
//
//   - ImageAsset: source URI and natural pixel dimensions
//   - Transform: scale and translation of the image inside the viewport
//   - Viewport: the visible crop window (3:4 by default)
//   - Record: the persisted shape of one session, including legacy fields
//
// # Identity and Time
//
// Sessions are keyed by a caller-supplied file ID. IDs are NFC-normalised
// with NormalizeFileID so canonically equivalent strings address the same
// session. Ordering uses the logical Clock, never wall-clock time.
//
// # Errors
//
// All failures surfaced by the cropper are *Error values carrying an
// ErrorCode. Use the IsXxxError helpers to classify wrapped errors.
package crop
