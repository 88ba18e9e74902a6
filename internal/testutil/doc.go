// Package testutil provides fixtures shared by cropper tests and the
// scenario harness: synthetic images and an in-memory image source.
package testutil
