// Package engine drives a crop session from mount to capture.
//
// A Controller owns one mounted image at a time and moves through
//
//	Idle -> Loading -> Initializing -> Ready
//
// with Failed as the terminal state of a load whose metadata could not be
// read. Loading probes the image and reads saved sessions concurrently.
// Initializing adopts the saved transform for the file ID, or computes the
// fit scale for a new one and persists it. Gestures and capture are only
// accepted in Ready.
//
// # Concurrency Model
//
// Every state mutation happens under the controller mutex, so pan and
// pinch callbacks arriving from different goroutines are applied one at a
// time. The Dispatcher adds an explicit input queue for hosts that deliver
// events asynchronously: Enqueue from any goroutine, Run from exactly one.
//
// Loads are tagged with a generation drawn from a logical clock. Unmount
// and remount bump the generation, and a load that finishes under an old
// generation is discarded without touching state.
//
// # Persistence
//
// Settled transforms are handed to a write-behind queue drained by a single
// writer goroutine, so saves reach the store in the order gestures ended.
// Persistence failures are logged and never surfaced to gesture callers.
// Flush waits for queued writes; Close drains the queue and stops the
// writer.
//
// # Capture
//
// Capture persists and snapshots the live transform, then rasterizes it.
// Overlapping captures are rejected with CAPTURE_IN_PROGRESS. Each
// successful capture invokes the completion callback exactly once, unless
// the session was unmounted while the capture ran.
package engine
