package engine

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/cropper/internal/crop"
	"github.com/roach88/cropper/internal/geometry"
	"github.com/roach88/cropper/internal/render"
	"github.com/roach88/cropper/internal/transform"
)

// ImageSource reads source images by URI.
// Implemented by source.Loader.
type ImageSource interface {
	Probe(ctx context.Context, uri string) (crop.ImageAsset, error)
	Decode(ctx context.Context, uri string) (image.Image, error)
}

// SessionStore loads and saves crop sessions.
// Implemented by store.Store.
type SessionStore interface {
	Load(ctx context.Context) map[string]crop.Transform
	Save(ctx context.Context, fileID string, t crop.Transform) error
}

// Capturer rasterizes a frame to an output image.
// Implemented by render.Rasterizer.
type Capturer interface {
	Capture(ctx context.Context, f render.Frame) (crop.ImageAsset, error)
}

// CompletionFunc receives the output URI of a successful capture.
type CompletionFunc func(fileID, uri string)

// Controller is the gesture state machine for one mounted image.
//
// All methods are safe for concurrent use.
type Controller struct {
	source     ImageSource
	sessions   SessionStore
	capturer   Capturer
	viewport   crop.Viewport
	limits     geometry.Limits
	onComplete CompletionFunc
	clock      *crop.Clock
	writes     *writer
	closeOnce  sync.Once
	capturing  atomic.Bool

	mu       sync.Mutex
	state    State
	gen      int64
	uri      string
	fileID   string
	image    crop.ImageAsset
	ts       *transform.State
	err      error
	cancel   context.CancelFunc
	done     chan struct{}
	panning  bool
	pinching bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLimits sets the scale limits. Default: geometry.DefaultLimits().
func WithLimits(l geometry.Limits) ControllerOption {
	return func(c *Controller) {
		c.limits = l
	}
}

// WithOnComplete sets the capture completion callback.
func WithOnComplete(fn CompletionFunc) ControllerOption {
	return func(c *Controller) {
		c.onComplete = fn
	}
}

// WithClock sets the clock used for mount generations.
func WithClock(clock *crop.Clock) ControllerOption {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewController creates an idle Controller and starts its persistence
// writer. Call Close to stop it.
func NewController(
	source ImageSource,
	sessions SessionStore,
	capturer Capturer,
	viewport crop.Viewport,
	opts ...ControllerOption,
) *Controller {
	c := &Controller{
		source:   source,
		sessions: sessions,
		capturer: capturer,
		viewport: viewport,
		limits:   geometry.DefaultLimits(),
		clock:    crop.NewClock(),
		writes:   newWriter(sessions),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.writes.run(context.Background())
	return c
}

// Mount starts loading uri for fileID. It returns immediately; use Await
// to wait for the session to become Ready or Failed. Mounting while a
// session is active unmounts it first.
func (c *Controller) Mount(ctx context.Context, uri, fileID string) error {
	if uri == "" {
		return crop.NewInvalidInputError("image uri is required")
	}
	if fileID == "" {
		return crop.NewInvalidInputError("file id is required")
	}
	fileID = crop.NormalizeFileID(fileID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		c.unmountLocked()
	}

	loadCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.gen = c.clock.Next()
	c.state = StateLoading
	c.uri = uri
	c.fileID = fileID
	c.cancel = cancel
	c.done = done

	slog.Debug("mounting image", "uri", uri, "file_id", fileID, "generation", c.gen)

	go c.load(loadCtx, c.gen, uri, fileID, done)
	return nil
}

// load fetches image metadata and saved sessions concurrently, then
// initializes the session if gen is still current.
func (c *Controller) load(ctx context.Context, gen int64, uri, fileID string, done chan struct{}) {
	defer close(done)

	var (
		asset crop.ImageAsset
		saved map[string]crop.Transform
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := c.source.Probe(gctx, uri)
		if err != nil {
			return crop.NewMetadataLoadError(uri, err)
		}
		asset = a
		return nil
	})
	g.Go(func() error {
		saved = c.sessions.Load(gctx)
		return nil
	})
	err := g.Wait()

	c.finishLoad(gen, fileID, asset, saved, err)
}

func (c *Controller) finishLoad(gen int64, fileID string, asset crop.ImageAsset, saved map[string]crop.Transform, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		slog.Debug("discarding stale image load", "file_id", fileID, "generation", gen)
		return
	}

	if err != nil {
		c.state = StateFailed
		c.err = err
		slog.Error("image metadata load failed", "file_id", fileID, "error", err)
		return
	}

	c.state = StateInitializing
	c.image = asset

	initial, ok := saved[fileID]
	if ok {
		slog.Debug("restoring saved crop session", "file_id", fileID, "scale", initial.Scale)
	} else {
		initial = transform.FitTransform(asset, c.viewport)
		c.writes.enqueue(fileID, initial)
		slog.Debug("new crop session", "file_id", fileID, "fit_scale", initial.Scale)
	}

	c.ts = transform.New(asset, c.viewport, c.limits, initial)
	c.state = StateReady

	slog.Info("crop session ready",
		"file_id", fileID,
		"width", asset.Width,
		"height", asset.Height,
		"restored", ok,
	)
}

// Await blocks until the current mount has left Loading and Initializing.
// It returns the resulting state and the load error, if any.
func (c *Controller) Await(ctx context.Context) (State, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return c.State(), ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.err
}

// Unmount tears down the session. In-flight loads are cancelled and their
// results discarded.
func (c *Controller) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unmountLocked()
}

func (c *Controller) unmountLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen = c.clock.Next()
	c.state = StateIdle
	c.ts = nil
	c.err = nil
	c.image = crop.ImageAsset{}
	c.panning = false
	c.pinching = false
}

// Close unmounts, drains pending writes and stops the writer.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		c.Unmount()
		c.writes.close()
	})
	return nil
}

// Flush waits until every settled transform has been handed to the store.
func (c *Controller) Flush(ctx context.Context) error {
	return c.writes.flush(ctx)
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the load error of a Failed session.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// FileID returns the mounted file ID.
func (c *Controller) FileID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fileID
}

// Image returns the loaded asset. Dimensions are zero until Ready.
func (c *Controller) Image() crop.ImageAsset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.image
}

// Viewport returns the crop window.
func (c *Controller) Viewport() crop.Viewport {
	return c.viewport
}

// Transform returns the live transform. ok is false outside Ready.
func (c *Controller) Transform() (crop.Transform, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ts == nil {
		return crop.Transform{}, false
	}
	return c.ts.Current(), true
}

// VisibleRect returns the source region shown by the live transform.
func (c *Controller) VisibleRect() (geometry.Rect, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked("visible rect"); err != nil {
		return geometry.Rect{}, err
	}
	return geometry.VisibleRect(c.ts.Current(), float64(c.image.Width), float64(c.image.Height), c.viewport)
}

func (c *Controller) readyLocked(op string) error {
	if c.state != StateReady || c.ts == nil {
		return crop.NewNotReadyError(op, c.state.String())
	}
	return nil
}

// persistLocked queues t for the current session.
func (c *Controller) persistLocked(t crop.Transform) {
	if !c.writes.enqueue(c.fileID, t) {
		slog.Warn("crop session not persisted: controller closed", "file_id", c.fileID)
	}
}

// PanBegin snapshots the translation.
func (c *Controller) PanBegin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked("pan"); err != nil {
		return err
	}
	c.ts.BeginPan()
	c.panning = true
	return nil
}

// PanUpdate applies the cumulative pan delta, unclamped.
// An update without a preceding begin starts the pan.
func (c *Controller) PanUpdate(dx, dy float64) (crop.Transform, error) {
	if !finite(dx) || !finite(dy) {
		return crop.Transform{}, crop.NewInvalidInputError("pan delta must be finite, got (%g, %g)", dx, dy)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked("pan"); err != nil {
		return crop.Transform{}, err
	}
	if !c.panning {
		c.ts.BeginPan()
		c.panning = true
	}
	return c.ts.UpdatePan(dx, dy), nil
}

// PanEnd settles and persists the transform.
func (c *Controller) PanEnd() (crop.Transform, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked("pan"); err != nil {
		return crop.Transform{}, err
	}
	c.panning = false
	return c.settleLocked(), nil
}

// PinchBegin snapshots the scale.
func (c *Controller) PinchBegin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked("pinch"); err != nil {
		return err
	}
	c.ts.BeginPinch()
	c.pinching = true
	return nil
}

// PinchUpdate proposes snapshot scale times factor. accepted is false when
// the proposal fell outside the gesture limits and was ignored.
func (c *Controller) PinchUpdate(factor float64) (t crop.Transform, accepted bool, err error) {
	if !finite(factor) {
		return crop.Transform{}, false, crop.NewInvalidInputError("pinch factor must be finite, got %g", factor)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked("pinch"); err != nil {
		return crop.Transform{}, false, err
	}
	if !c.pinching {
		c.ts.BeginPinch()
		c.pinching = true
	}
	accepted = c.ts.UpdatePinch(factor)
	return c.ts.Current(), accepted, nil
}

// PinchEnd settles and persists the transform.
func (c *Controller) PinchEnd() (crop.Transform, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked("pinch"); err != nil {
		return crop.Transform{}, err
	}
	c.pinching = false
	return c.settleLocked(), nil
}

func (c *Controller) settleLocked() crop.Transform {
	t := c.ts.Settle()
	c.persistLocked(t)
	slog.Debug("transform settled",
		"file_id", c.fileID,
		"scale", t.Scale,
		"translate_x", t.TranslateX,
		"translate_y", t.TranslateY,
	)
	return t
}

// Reset returns to the fit scale with zero translation and persists it.
func (c *Controller) Reset() (crop.Transform, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked("reset"); err != nil {
		return crop.Transform{}, err
	}
	c.panning = false
	c.pinching = false
	t := c.ts.Reset()
	c.persistLocked(t)
	return t, nil
}

// Apply routes one gesture event.
func (c *Controller) Apply(ev GestureEvent) (crop.Transform, error) {
	t, _, err := c.apply(ev)
	return t, err
}

// apply is Apply that also reports whether the event took effect. Only a
// pinch proposal outside the scale limits is ignored without an error.
func (c *Controller) apply(ev GestureEvent) (crop.Transform, bool, error) {
	var (
		t   crop.Transform
		err error
	)
	switch ev.Kind {
	case GesturePanBegin:
		err = c.PanBegin()
		t, _ = c.Transform()
	case GesturePanUpdate:
		t, err = c.PanUpdate(ev.DX, ev.DY)
	case GesturePanEnd:
		t, err = c.PanEnd()
	case GesturePinchBegin:
		err = c.PinchBegin()
		t, _ = c.Transform()
	case GesturePinchUpdate:
		var accepted bool
		t, accepted, err = c.PinchUpdate(ev.Factor)
		if err == nil && !accepted {
			return t, false, nil
		}
	case GesturePinchEnd:
		t, err = c.PinchEnd()
	case GestureReset:
		t, err = c.Reset()
	default:
		err = crop.NewInvalidInputError("unknown gesture kind %q", ev.Kind)
	}
	if err != nil {
		return crop.Transform{}, false, err
	}
	return t, true, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Capture settles a gesture still in progress, as a release would, then
// persists and rasterizes the committed transform. The completion callback
// runs once on success, unless the session was unmounted while the capture
// ran.
func (c *Controller) Capture(ctx context.Context) (crop.ImageAsset, error) {
	c.mu.Lock()
	fileID := c.fileID
	if err := c.readyLocked("capture"); err != nil {
		c.mu.Unlock()
		return crop.ImageAsset{}, crop.NewCaptureError(fileID, "image not ready", err)
	}
	if !c.capturing.CompareAndSwap(false, true) {
		c.mu.Unlock()
		return crop.ImageAsset{}, crop.NewCaptureInProgressError(fileID)
	}
	defer c.capturing.Store(false)

	gen := c.gen
	uri := c.uri
	if c.ts.Pending() {
		c.panning = false
		c.pinching = false
		c.ts.Settle()
	}
	t := c.ts.Committed()
	c.persistLocked(t)
	c.mu.Unlock()

	if err := c.writes.flush(ctx); err != nil {
		return crop.ImageAsset{}, crop.NewCaptureError(fileID, "persist before capture", err)
	}

	out, err := c.capturer.Capture(ctx, render.Frame{
		FileID:    fileID,
		Transform: t,
		Viewport:  c.viewport,
		Source: func(ctx context.Context) (image.Image, error) {
			return c.source.Decode(ctx, uri)
		},
	})
	if err != nil {
		slog.Warn("capture failed", "file_id", fileID, "error", err)
		return crop.ImageAsset{}, err
	}

	c.mu.Lock()
	current := gen == c.gen
	c.mu.Unlock()

	if !current {
		slog.Debug("capture finished after unmount, skipping callback", "file_id", fileID)
		return out, nil
	}
	if c.onComplete != nil {
		c.onComplete(fileID, out.URI)
	}
	return out, nil
}

// String describes the controller for logs.
func (c *Controller) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("controller(file=%s, state=%s)", c.fileID, c.state)
}
