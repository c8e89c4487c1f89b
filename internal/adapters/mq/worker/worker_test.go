package worker_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/spikecurator/internal/adapters/mq/queue"
	worker "github.com/okian/spikecurator/internal/adapters/mq/worker"
	logging "github.com/okian/spikecurator/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// recorder is a handler that remembers what it saw and checks that it is
// never entered by two goroutines at once.
type recorder struct {
	mu      sync.Mutex
	busy    bool
	overlap bool
	seen    []int
	failOn  map[int]error
}

func (r *recorder) Handle(_ context.Context, item int) error {
	r.mu.Lock()
	if r.busy {
		r.overlap = true
	}
	r.busy = true
	r.mu.Unlock()

	time.Sleep(100 * time.Microsecond)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.busy = false
	r.seen = append(r.seen, item)
	return r.failOn[item]
}

func (r *recorder) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.seen...)
}

func (r *recorder) overlapped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overlap
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading from a queue", t, func() {
		_ = logging.InitWithWriter(io.Discard)

		q := queue.NewInMemoryQueue[int](queue.WithCapacity(128))
		rec := &recorder{failOn: map[int]error{3: errors.New("boom")}}
		w := worker.NewInMemoryWorker[int](q, rec, worker.WithName("test-dispatcher"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go w.Run(ctx)

		convey.Convey("When items are enqueued", func() {
			for i := 0; i < 50; i++ {
				convey.So(q.Enqueue(ctx, i), convey.ShouldBeNil)
			}

			convey.Convey("Then they are handled one at a time in arrival order", func() {
				convey.So(waitFor(func() bool { return w.Processed() == 50 }), convey.ShouldBeTrue)
				seen := rec.snapshot()
				for i, v := range seen {
					convey.So(v, convey.ShouldEqual, i)
				}
				convey.So(rec.overlapped(), convey.ShouldBeFalse)
			})

			convey.Convey("And a failing item does not stop the loop", func() {
				convey.So(waitFor(func() bool { return w.Processed() == 50 }), convey.ShouldBeTrue)
				convey.So(w.Failed(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When shutting down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()
			err := w.Shutdown(sctx)

			convey.Convey("Then it should shutdown gracefully", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the queue is closed", func() {
			_ = q.Close()

			convey.Convey("Then the worker stops", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
					t.Error("worker did not stop after queue close")
				}
			})
		})
	})
}

func TestWorkerContextCancel(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		q := queue.NewInMemoryQueue[int]()
		w := worker.NewInMemoryWorker[int](q, worker.HandlerFunc[int](func(context.Context, int) error { return nil }),
			worker.WithLogger(logging.Nop()))
		ctx, cancel := context.WithCancel(context.Background())
		go w.Run(ctx)

		convey.Convey("When the context is cancelled", func() {
			cancel()

			convey.Convey("Then the worker should stop", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
					t.Error("worker did not stop after cancel")
				}
			})
		})
	})
}
