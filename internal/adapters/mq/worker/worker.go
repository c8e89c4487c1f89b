// Package worker runs the dispatcher that drains the command queue.
//
// A single InMemoryWorker is the only goroutine allowed to touch the
// curation engine, which makes it the engine's single writer.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/spikecurator/pkg/logger"
	"github.com/okian/spikecurator/pkg/metrics"
)

// Source is where the worker receives items from.
type Source[T any] interface {
	Dequeue(ctx context.Context) <-chan T
}

// Handler processes one item. Errors are logged and counted; the loop
// carries on with the next item.
type Handler[T any] interface {
	Handle(ctx context.Context, item T) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[T any] func(ctx context.Context, item T) error

// Handle calls f.
func (f HandlerFunc[T]) Handle(ctx context.Context, item T) error { return f(ctx, item) }

// Worker processes items until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, Shutdown is called
	// or the source is closed.
	Run(ctx context.Context)

	// Shutdown stops the loop and waits for the item in hand to finish.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for a single dispatcher goroutine.
type InMemoryWorker[T any] struct {
	source  Source[T]
	handler Handler[T]
	name    string

	processed atomic.Int64
	failed    atomic.Int64

	// Shutdown control
	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker[T any](source Source[T], handler Handler[T], opts ...Option) *InMemoryWorker[T] {
	s := settings{name: "dispatcher"}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	return &InMemoryWorker[T]{
		source:   source,
		handler:  handler,
		name:     s.name,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   s.logger.Named(s.name),
	}
}

// Run starts the worker loop.
func (w *InMemoryWorker[T]) Run(ctx context.Context) {
	defer close(w.done)

	items := w.source.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case item, ok := <-items:
			if !ok {
				return
			}
			w.process(ctx, item)
		}
	}
}

func (w *InMemoryWorker[T]) process(ctx context.Context, item T) {
	start := time.Now()
	err := w.handler.Handle(ctx, item)
	w.processed.Add(1)
	if err == nil {
		return
	}

	w.failed.Add(1)
	metrics.RecordErrorByComponent("worker", "handler_error")
	metrics.RecordErrorLatency("worker", "handler_error", float64(time.Since(start).Microseconds())/1000)
	w.logger.Error(ctx, "error processing item", logger.Error(err))
}

// Processed returns how many items have been handled, failed ones included.
func (w *InMemoryWorker[T]) Processed() int64 { return w.processed.Load() }

// Failed returns how many items returned an error.
func (w *InMemoryWorker[T]) Failed() int64 { return w.failed.Load() }

// Done is closed once Run has returned.
func (w *InMemoryWorker[T]) Done() <-chan struct{} { return w.done }

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker[T]) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
