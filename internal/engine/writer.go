package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/cropper/internal/crop"
)

// writeOp is a queued save, or a flush marker when flushed is set.
type writeOp struct {
	fileID    string
	transform crop.Transform
	flushed   chan struct{}
}

// writer persists settled transforms in FIFO order on one goroutine.
type writer struct {
	sessions SessionStore
	queue    *queue[writeOp]
	done     chan struct{}
}

func newWriter(sessions SessionStore) *writer {
	return &writer{
		sessions: sessions,
		queue:    newQueue[writeOp](),
		done:     make(chan struct{}),
	}
}

// run drains the queue until it is closed and empty.
// Save failures are logged and processing continues.
func (w *writer) run(ctx context.Context) {
	defer close(w.done)

	for {
		op, ok := w.queue.TryDequeue()
		if ok {
			w.apply(ctx, op)
			continue
		}

		<-w.queue.Wait()
		if w.queue.Drained() {
			return
		}
	}
}

func (w *writer) apply(ctx context.Context, op writeOp) {
	if op.flushed != nil {
		close(op.flushed)
		return
	}
	if err := w.sessions.Save(ctx, op.fileID, op.transform); err != nil {
		slog.Warn("failed to persist crop session",
			"file_id", op.fileID,
			"scale", op.transform.Scale,
			"error", err,
		)
	}
}

func (w *writer) enqueue(fileID string, t crop.Transform) bool {
	return w.queue.Enqueue(writeOp{fileID: fileID, transform: t})
}

// flush blocks until every write queued before the call has been applied.
func (w *writer) flush(ctx context.Context) error {
	marker := make(chan struct{})
	if !w.queue.Enqueue(writeOp{flushed: marker}) {
		// closed: wait for the drain instead
		marker = w.done
	}
	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting writes and waits for the queue to drain.
func (w *writer) close() {
	w.queue.Close()
	<-w.done
}
