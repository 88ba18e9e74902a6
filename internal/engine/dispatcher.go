package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/cropper/internal/crop"
)

// Observer is told about every event the dispatcher applied. accepted is
// false when the event failed or was ignored, such as a pinch proposal
// outside the scale limits.
type Observer func(ev GestureEvent, t crop.Transform, accepted bool, err error)

// Dispatcher serializes gesture input for a Controller.
//
// Thread-safety model:
//   - Enqueue(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Dispatcher struct {
	ctrl     *Controller
	queue    *queue[GestureEvent]
	observer Observer
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithObserver registers fn to run after each applied event, on the Run
// goroutine.
func WithObserver(fn Observer) DispatcherOption {
	return func(d *Dispatcher) {
		d.observer = fn
	}
}

// NewDispatcher creates a Dispatcher feeding ctrl.
func NewDispatcher(ctrl *Controller, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		ctrl:  ctrl,
		queue: newQueue[GestureEvent](),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enqueue submits an event. Returns false once the dispatcher is stopped.
func (d *Dispatcher) Enqueue(ev GestureEvent) bool {
	return d.queue.Enqueue(ev)
}

// Stop closes the input queue. Run returns after draining what is queued.
func (d *Dispatcher) Stop() {
	d.queue.Close()
}

// Run applies queued events in arrival order until ctx is cancelled or the
// dispatcher is stopped and drained.
//
// A failed event is logged and processing continues with the next one.
func (d *Dispatcher) Run(ctx context.Context) error {
	slog.Debug("gesture dispatcher starting")

	for {
		ev, ok := d.queue.TryDequeue()
		if ok {
			t, accepted, err := d.ctrl.apply(ev)
			if err != nil {
				slog.Warn("gesture event failed",
					"kind", ev.Kind,
					"file_id", d.ctrl.FileID(),
					"error", err,
				)
			}
			if d.observer != nil {
				d.observer(ev, t, accepted, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Debug("gesture dispatcher stopping: context cancelled")
			d.queue.Close()
			return ctx.Err()

		case <-d.queue.Wait():
			if d.queue.Drained() {
				slog.Debug("gesture dispatcher stopping: queue closed")
				return nil
			}
		}
	}
}
