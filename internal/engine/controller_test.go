package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cropper/internal/crop"
	"github.com/roach88/cropper/internal/render"
	"github.com/roach88/cropper/internal/store"
	"github.com/roach88/cropper/internal/testutil"
)

type fixture struct {
	ctrl     *Controller
	source   *testutil.FakeSource
	sessions *store.Store
	sink     *render.MemorySink

	mu        sync.Mutex
	completed []string
}

func newFixture(t *testing.T, opts ...ControllerOption) *fixture {
	t.Helper()
	f := &fixture{
		source:   testutil.NewFakeSource(),
		sessions: store.New(store.NewMemoryBackend()),
		sink:     render.NewMemorySink(),
	}
	f.source.AddSize("tall.png", 1000, 2000)
	f.source.Add("square.png", testutil.SplitImage(400, 400))

	opts = append([]ControllerOption{WithOnComplete(func(fileID, uri string) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.completed = append(f.completed, fileID+"|"+uri)
	})}, opts...)

	raster := render.New(f.sink, render.WithInterpolator(render.InterpolatorNearest))
	f.ctrl = NewController(f.source, f.sessions, raster, crop.NewViewport(300), opts...)
	t.Cleanup(func() { f.ctrl.Close() })
	return f
}

func (f *fixture) completions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.completed...)
}

func awaitReady(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := c.Await(ctx)
	require.NoError(t, err)
	require.Equal(t, StateReady, state)
}

func mountReady(t *testing.T, f *fixture, uri, fileID string) {
	t.Helper()
	require.NoError(t, f.ctrl.Mount(context.Background(), uri, fileID))
	awaitReady(t, f.ctrl)
}

func flush(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Flush(ctx))
}

func TestController_NewSessionUsesFitScale(t *testing.T) {
	f := newFixture(t)
	mountReady(t, f, "tall.png", "img-1")

	got, ok := f.ctrl.Transform()
	require.True(t, ok)
	assert.InDelta(t, 0.3, got.Scale, 1e-12)
	assert.Equal(t, 0.0, got.TranslateX)
	assert.Equal(t, 0.0, got.TranslateY)

	// the fit transform is persisted for the new session
	flush(t, f.ctrl)
	saved, ok := f.sessions.Get(context.Background(), "img-1")
	require.True(t, ok)
	assert.InDelta(t, 0.3, saved.Scale, 1e-12)
}

func TestController_RestoresSavedTransform(t *testing.T) {
	f := newFixture(t)
	saved := crop.Transform{Scale: 1.7, TranslateX: 10, TranslateY: -5}
	require.NoError(t, f.sessions.Save(context.Background(), "img-1", saved))

	mountReady(t, f, "tall.png", "img-1")

	got, ok := f.ctrl.Transform()
	require.True(t, ok)
	assert.Equal(t, saved, got)
}

func TestController_RestoreClampsTranslation(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sessions.Save(context.Background(), "img-1",
		crop.Transform{Scale: 1, TranslateX: 5000, TranslateY: -60}))

	mountReady(t, f, "square.png", "img-1")

	got, ok := f.ctrl.Transform()
	require.True(t, ok)
	assert.Equal(t, crop.Transform{Scale: 1, TranslateX: 50, TranslateY: 0}, got)
}

func TestController_MetadataFailure(t *testing.T) {
	f := newFixture(t)
	f.source.Fail("broken.png", errors.New("corrupt header"))

	require.NoError(t, f.ctrl.Mount(context.Background(), "broken.png", "img-1"))
	state, err := f.ctrl.Await(context.Background())
	assert.Equal(t, StateFailed, state)
	assert.True(t, crop.IsMetadataLoadError(err))

	assert.True(t, crop.IsNotReady(f.ctrl.PanBegin()))
	_, err = f.ctrl.Capture(context.Background())
	assert.True(t, crop.IsCaptureError(err))

	_, ok := f.ctrl.Transform()
	assert.False(t, ok)
}

func TestController_GesturesRejectedWhileLoading(t *testing.T) {
	f := newFixture(t)
	f.source.Hold()

	require.NoError(t, f.ctrl.Mount(context.Background(), "tall.png", "img-1"))
	assert.Equal(t, StateLoading, f.ctrl.State())

	_, err := f.ctrl.PanUpdate(10, 0)
	assert.True(t, crop.IsNotReady(err))
	_, _, err = f.ctrl.PinchUpdate(2)
	assert.True(t, crop.IsNotReady(err))

	f.source.Release()
	awaitReady(t, f.ctrl)
}

func TestController_UnmountDiscardsLoad(t *testing.T) {
	f := newFixture(t)
	f.source.Hold()

	require.NoError(t, f.ctrl.Mount(context.Background(), "tall.png", "img-1"))
	f.ctrl.Unmount()
	f.source.Release()

	state, err := f.ctrl.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateIdle, state)

	flush(t, f.ctrl)
	_, ok := f.sessions.Get(context.Background(), "img-1")
	assert.False(t, ok, "a discarded load must not persist anything")
}

func TestController_RemountKeepsLatest(t *testing.T) {
	f := newFixture(t)
	f.source.Hold()

	require.NoError(t, f.ctrl.Mount(context.Background(), "tall.png", "a"))
	require.NoError(t, f.ctrl.Mount(context.Background(), "square.png", "b"))
	f.source.Release()
	awaitReady(t, f.ctrl)

	assert.Equal(t, "b", f.ctrl.FileID())
	assert.Equal(t, 400, f.ctrl.Image().Width)
	got, _ := f.ctrl.Transform()
	assert.Equal(t, 1.0, got.Scale)
}

func TestController_MountValidatesInput(t *testing.T) {
	f := newFixture(t)
	assert.True(t, crop.IsInvalidInput(f.ctrl.Mount(context.Background(), "", "id")))
	assert.True(t, crop.IsInvalidInput(f.ctrl.Mount(context.Background(), "tall.png", "")))
	assert.Equal(t, StateIdle, f.ctrl.State())
}

func TestController_PanClampedOnRelease(t *testing.T) {
	f := newFixture(t)
	mountReady(t, f, "square.png", "img-1")

	require.NoError(t, f.ctrl.PanBegin())
	live, err := f.ctrl.PanUpdate(500, 30)
	require.NoError(t, err)
	assert.Equal(t, 500.0, live.TranslateX, "updates are unclamped")

	settled, err := f.ctrl.PanEnd()
	require.NoError(t, err)
	assert.Equal(t, crop.Transform{Scale: 1, TranslateX: 50, TranslateY: 0}, settled)

	flush(t, f.ctrl)
	saved, ok := f.sessions.Get(context.Background(), "img-1")
	require.True(t, ok)
	assert.Equal(t, settled, saved)
}

func TestController_PinchRejectsOutOfRange(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sessions.Save(context.Background(), "img-1", crop.Transform{Scale: 1}))
	mountReady(t, f, "tall.png", "img-1")

	require.NoError(t, f.ctrl.PinchBegin())
	got, accepted, err := f.ctrl.PinchUpdate(6.0)
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Equal(t, 1.0, got.Scale)

	got, accepted, err = f.ctrl.PinchUpdate(2.5)
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, 2.5, got.Scale)
}

func TestController_InterleavedGestures(t *testing.T) {
	f := newFixture(t)
	mountReady(t, f, "square.png", "img-1")

	require.NoError(t, f.ctrl.PinchBegin())
	require.NoError(t, f.ctrl.PanBegin())
	_, _, err := f.ctrl.PinchUpdate(2)
	require.NoError(t, err)
	_, err = f.ctrl.PanUpdate(-400, 0)
	require.NoError(t, err)

	// scale 2: x may move (800-300)/2 = 250, y (800-400)/2 = 200
	settled, err := f.ctrl.PanEnd()
	require.NoError(t, err)
	assert.Equal(t, crop.Transform{Scale: 2, TranslateX: -250, TranslateY: 0}, settled)

	_, _, err = f.ctrl.PinchUpdate(3)
	require.NoError(t, err)
	settled, err = f.ctrl.PinchEnd()
	require.NoError(t, err)
	assert.Equal(t, 3.0, settled.Scale)
	assert.Equal(t, -250.0, settled.TranslateX)
}

func TestController_Reset(t *testing.T) {
	f := newFixture(t)
	mountReady(t, f, "square.png", "img-1")

	_, err := f.ctrl.PanUpdate(40, 0)
	require.NoError(t, err)
	_, err = f.ctrl.PanEnd()
	require.NoError(t, err)

	got, err := f.ctrl.Reset()
	require.NoError(t, err)
	assert.Equal(t, crop.Transform{Scale: 1}, got)

	flush(t, f.ctrl)
	saved, _ := f.sessions.Get(context.Background(), "img-1")
	assert.Equal(t, crop.Transform{Scale: 1}, saved)
}

func TestController_Apply(t *testing.T) {
	f := newFixture(t)
	mountReady(t, f, "square.png", "img-1")

	steps := []GestureEvent{
		{Kind: GesturePanBegin},
		PanUpdate(20, 0),
		{Kind: GesturePanEnd},
		{Kind: GesturePinchBegin},
		PinchUpdate(1.5),
		{Kind: GesturePinchEnd},
	}
	var last crop.Transform
	for _, ev := range steps {
		got, err := f.ctrl.Apply(ev)
		require.NoError(t, err, "kind %s", ev.Kind)
		last = got
	}
	assert.Equal(t, crop.Transform{Scale: 1.5, TranslateX: 20}, last)

	_, err := f.ctrl.Apply(GestureEvent{Kind: "swipe"})
	assert.True(t, crop.IsInvalidInput(err))
}

func TestController_VisibleRect(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctrl.VisibleRect()
	assert.True(t, crop.IsNotReady(err))

	mountReady(t, f, "square.png", "img-1")
	r, err := f.ctrl.VisibleRect()
	require.NoError(t, err)
	assert.InDelta(t, 50, r.X, 1e-6)
	assert.InDelta(t, 300, r.Width, 1e-6)
}

func TestController_Capture(t *testing.T) {
	f := newFixture(t)
	mountReady(t, f, "square.png", "img-1")

	_, err := f.ctrl.PanUpdate(30, 0)
	require.NoError(t, err)

	out, err := f.ctrl.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 300, out.Width)
	assert.Equal(t, 400, out.Height)

	assert.Equal(t, []string{"img-1|" + out.URI}, f.completions())
	_, ok := f.sink.Bytes(out.URI)
	assert.True(t, ok)

	saved, _ := f.sessions.Get(context.Background(), "img-1")
	assert.Equal(t, crop.Transform{Scale: 1, TranslateX: 30}, saved)
}

func TestController_CaptureSettlesOpenGesture(t *testing.T) {
	f := newFixture(t)
	mountReady(t, f, "square.png", "img-1")

	require.NoError(t, f.ctrl.PanBegin())
	_, err := f.ctrl.PanUpdate(5000, 0)
	require.NoError(t, err)

	_, err = f.ctrl.Capture(context.Background())
	require.NoError(t, err)

	want := crop.Transform{Scale: 1, TranslateX: 50}
	live, _ := f.ctrl.Transform()
	assert.Equal(t, want, live)

	saved, _ := f.sessions.Get(context.Background(), "img-1")
	assert.Equal(t, want, saved)

	// a later pan starts again from the settled position
	got, err := f.ctrl.PanUpdate(-10, 0)
	require.NoError(t, err)
	assert.Equal(t, 40.0, got.TranslateX)

	// and a remount restores the settled crop
	mountReady(t, f, "square.png", "img-1")
	restored, _ := f.ctrl.Transform()
	assert.Equal(t, want, restored)
}

func TestController_CaptureKeepsUntouchedFit(t *testing.T) {
	f := newFixture(t)
	mountReady(t, f, "tall.png", "img-1")

	// fit 0.3 is below the gesture floor; only a settle may lift it
	f.source.Add("tall.png", testutil.SplitImage(1000, 2000))
	_, err := f.ctrl.Capture(context.Background())
	require.NoError(t, err)

	saved, _ := f.sessions.Get(context.Background(), "img-1")
	assert.InDelta(t, 0.3, saved.Scale, 1e-12)
}

func TestController_RejectsNonFiniteInput(t *testing.T) {
	f := newFixture(t)
	mountReady(t, f, "square.png", "img-1")

	_, err := f.ctrl.PanUpdate(math.NaN(), 0)
	assert.True(t, crop.IsInvalidInput(err))
	_, err = f.ctrl.PanUpdate(0, math.Inf(1))
	assert.True(t, crop.IsInvalidInput(err))
	_, _, err = f.ctrl.PinchUpdate(math.NaN())
	assert.True(t, crop.IsInvalidInput(err))
	_, err = f.ctrl.Apply(PanUpdate(math.NaN(), 0))
	assert.True(t, crop.IsInvalidInput(err))

	got, err := f.ctrl.PanEnd()
	require.NoError(t, err)
	assert.Equal(t, crop.Transform{Scale: 1}, got)
	require.NoError(t, f.ctrl.Flush(context.Background()))

	// the store keeps persisting other sessions
	mountReady(t, f, "tall.png", "img-2")
	require.NoError(t, f.ctrl.Flush(context.Background()))
	_, ok := f.sessions.Get(context.Background(), "img-2")
	assert.True(t, ok)
}

// gatedCapturer blocks inside Capture until released.
type gatedCapturer struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	calls   int
	mu      sync.Mutex
}

func (g *gatedCapturer) Capture(ctx context.Context, fr render.Frame) (crop.ImageAsset, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return crop.ImageAsset{URI: "mem://out.jpg", Width: 300, Height: 400}, nil
}

func TestController_CaptureRejectsOverlap(t *testing.T) {
	source := testutil.NewFakeSource()
	source.AddSize("tall.png", 1000, 2000)
	gate := &gatedCapturer{entered: make(chan struct{}), release: make(chan struct{})}

	var mu sync.Mutex
	var calls []string
	ctrl := NewController(source, store.New(store.NewMemoryBackend()), gate, crop.NewViewport(300),
		WithOnComplete(func(fileID, uri string) {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, uri)
		}))
	t.Cleanup(func() { ctrl.Close() })

	require.NoError(t, ctrl.Mount(context.Background(), "tall.png", "img-1"))
	awaitReady(t, ctrl)

	first := make(chan error, 1)
	go func() {
		_, err := ctrl.Capture(context.Background())
		first <- err
	}()
	<-gate.entered

	_, err := ctrl.Capture(context.Background())
	require.Error(t, err)
	assert.True(t, crop.IsCaptureInProgress(err))

	close(gate.release)
	require.NoError(t, <-first)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"mem://out.jpg"}, calls, "callback runs exactly once")
	assert.Equal(t, 1, gate.calls)
}

func TestController_CaptureAfterUnmountSkipsCallback(t *testing.T) {
	source := testutil.NewFakeSource()
	source.AddSize("tall.png", 1000, 2000)
	gate := &gatedCapturer{entered: make(chan struct{}), release: make(chan struct{})}

	called := false
	ctrl := NewController(source, store.New(store.NewMemoryBackend()), gate, crop.NewViewport(300),
		WithOnComplete(func(string, string) { called = true }))
	t.Cleanup(func() { ctrl.Close() })

	require.NoError(t, ctrl.Mount(context.Background(), "tall.png", "img-1"))
	awaitReady(t, ctrl)

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.Capture(context.Background())
		done <- err
	}()
	<-gate.entered
	ctrl.Unmount()
	close(gate.release)

	require.NoError(t, <-done)
	assert.False(t, called)
}

// failingSessions loads nothing and fails every save.
type failingSessions struct {
	mu    sync.Mutex
	saves int
}

func (f *failingSessions) Load(context.Context) map[string]crop.Transform {
	return map[string]crop.Transform{}
}

func (f *failingSessions) Save(context.Context, string, crop.Transform) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	return crop.NewPersistenceError("save session", "", errors.New("disk full"))
}

func TestController_PersistenceFailureNotSurfaced(t *testing.T) {
	source := testutil.NewFakeSource()
	source.Add("square.png", testutil.SplitImage(400, 400))
	sessions := &failingSessions{}

	ctrl := NewController(source, sessions, render.New(render.NewMemorySink()), crop.NewViewport(300))
	t.Cleanup(func() { ctrl.Close() })

	require.NoError(t, ctrl.Mount(context.Background(), "square.png", "img-1"))
	awaitReady(t, ctrl)

	_, err := ctrl.PanUpdate(20, 0)
	require.NoError(t, err)
	got, err := ctrl.PanEnd()
	require.NoError(t, err)
	assert.Equal(t, 20.0, got.TranslateX)
	assert.Equal(t, StateReady, ctrl.State())

	flush(t, ctrl)
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	assert.Equal(t, 2, sessions.saves, "initial fit and settle were both attempted")
}

func TestController_CloseIdempotent(t *testing.T) {
	f := newFixture(t)
	mountReady(t, f, "square.png", "img-1")

	require.NoError(t, f.ctrl.Close())
	require.NoError(t, f.ctrl.Close())
	assert.Equal(t, StateIdle, f.ctrl.State())
	assert.True(t, crop.IsNotReady(f.ctrl.PanBegin()))
	assert.NoError(t, f.ctrl.Flush(context.Background()))
}
