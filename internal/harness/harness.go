package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/cropper/internal/crop"
	"github.com/roach88/cropper/internal/engine"
	"github.com/roach88/cropper/internal/geometry"
	"github.com/roach88/cropper/internal/render"
	"github.com/roach88/cropper/internal/store"
	"github.com/roach88/cropper/internal/testutil"
)

// scenarioURI is the source URI every scenario mounts.
const scenarioURI = "scenario://image"

// stepTimeout bounds every blocking wait in a run.
const stepTimeout = 5 * time.Second

// applied is what the dispatcher observer hands back per event.
type applied struct {
	transform crop.Transform
	err       error
}

// Harness runs one scenario against a fresh controller.
type Harness struct {
	scenario   *Scenario
	sessions   *store.Store
	ctrl       *engine.Controller
	dispatcher *engine.Dispatcher
	results    chan applied
	clock      *crop.Clock
	result     *Result
	tolerance  float64
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory store. Gesture steps go
// through an engine.Dispatcher one at a time; capture steps call the
// controller directly.
func Run(scenario *Scenario) (*Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()

	h, err := newHarness(ctx, scenario)
	if err != nil {
		return nil, err
	}
	defer h.ctrl.Close()

	done := make(chan error, 1)
	go func() { done <- h.dispatcher.Run(ctx) }()

	if err := h.mount(ctx); err != nil {
		h.dispatcher.Stop()
		return nil, err
	}

	for i, step := range scenario.Steps {
		if err := h.step(ctx, i, step); err != nil {
			h.dispatcher.Stop()
			return nil, err
		}
	}

	h.dispatcher.Stop()
	if err := <-done; err != nil {
		return nil, fmt.Errorf("dispatcher: %w", err)
	}

	if err := h.finish(ctx); err != nil {
		return nil, err
	}
	return h.result, nil
}

func newHarness(ctx context.Context, s *Scenario) (*Harness, error) {
	source := testutil.NewFakeSource()
	if s.Image.Fail != "" {
		source.Fail(scenarioURI, errors.New(s.Image.Fail))
	} else {
		source.AddSize(scenarioURI, s.Image.Width, s.Image.Height)
	}

	sessions := store.New(store.NewMemoryBackend())
	if s.Saved != nil {
		if err := sessions.Save(ctx, s.FileID, *s.Saved); err != nil {
			return nil, fmt.Errorf("failed to seed saved session: %w", err)
		}
	}

	limits := geometry.DefaultLimits()
	if s.Limits != nil {
		limits = *s.Limits
	}

	tolerance := s.Tolerance
	if tolerance == 0 {
		tolerance = DefaultTolerance
	}

	h := &Harness{
		scenario:  s,
		sessions:  sessions,
		results:   make(chan applied, 1),
		clock:     crop.NewClock(),
		result:    NewResult(),
		tolerance: tolerance,
	}

	raster := render.New(render.NewMemorySink(), render.WithInterpolator(render.InterpolatorNearest))
	h.ctrl = engine.NewController(source, sessions, raster, crop.NewViewport(s.ViewportWidth),
		engine.WithLimits(limits),
	)
	h.dispatcher = engine.NewDispatcher(h.ctrl, engine.WithObserver(func(_ engine.GestureEvent, t crop.Transform, _ bool, err error) {
		h.results <- applied{transform: t, err: err}
	}))
	return h, nil
}

func (h *Harness) mount(ctx context.Context) error {
	if err := h.ctrl.Mount(ctx, scenarioURI, h.scenario.FileID); err != nil {
		return fmt.Errorf("failed to mount: %w", err)
	}

	state, loadErr := h.ctrl.Await(ctx)
	if errors.Is(loadErr, context.DeadlineExceeded) {
		return fmt.Errorf("mount did not settle: %w", loadErr)
	}

	ev := TraceEvent{Seq: h.clock.Next(), Kind: EventMount, State: state.String()}
	if t, ok := h.ctrl.Transform(); ok {
		ev.Transform = &t
	}
	if loadErr != nil {
		ev.Error = string(crop.CodeOf(loadErr))
	}
	h.result.add(ev)
	return nil
}

func (h *Harness) step(ctx context.Context, i int, step Step) error {
	ev := TraceEvent{
		Seq:    h.clock.Next(),
		Kind:   step.Kind,
		DX:     step.DX,
		DY:     step.DY,
		Factor: step.Factor,
	}

	var (
		t   crop.Transform
		err error
	)
	if step.Kind == StepCapture {
		var out crop.ImageAsset
		out, err = h.ctrl.Capture(ctx)
		ev.Output = out.URI
		t, _ = h.ctrl.Transform()
	} else {
		if !h.dispatcher.Enqueue(step.Event()) {
			return fmt.Errorf("steps[%d]: dispatcher stopped", i)
		}
		select {
		case a := <-h.results:
			t, err = a.transform, a.err
		case <-ctx.Done():
			return fmt.Errorf("steps[%d]: %w", i, ctx.Err())
		}
	}

	if err != nil {
		ev.Error = string(crop.CodeOf(err))
	} else {
		ev.Transform = &t
	}
	h.result.add(ev)

	where := fmt.Sprintf("steps[%d] (%s)", i, step.Kind)
	if aerr := checkExpect(where, step.Expect, t, err, h.tolerance, h.result.Trace); aerr != nil {
		h.result.AddError(aerr.Error())
	}
	return nil
}

func (h *Harness) finish(ctx context.Context) error {
	if err := h.ctrl.Flush(ctx); err != nil {
		return fmt.Errorf("failed to flush sessions: %w", err)
	}

	if t, ok := h.ctrl.Transform(); ok {
		h.result.Final = &t
	}

	ev := TraceEvent{Seq: h.clock.Next(), Kind: EventPersisted}
	if saved, ok := h.sessions.Get(ctx, h.scenario.FileID); ok {
		ev.Transform = &saved
		h.result.Persisted = &saved
	}
	h.result.add(ev)

	if h.scenario.Expect != nil {
		var final crop.Transform
		var err error
		if h.result.Final != nil {
			final = *h.result.Final
		} else {
			err = crop.NewNotReadyError("final transform", h.ctrl.State().String())
		}
		if aerr := checkExpect("final", h.scenario.Expect, final, err, h.tolerance, h.result.Trace); aerr != nil {
			h.result.AddError(aerr.Error())
		}
	}
	return nil
}
