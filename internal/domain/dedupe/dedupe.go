// Package dedupe remembers processed command ids so that a retried request
// is answered with its first outcome instead of being applied twice.
package dedupe

import (
	"container/list"
	"context"
	"sync"

	"github.com/google/uuid"
)

// Deduper records seen command ids and, once known, their outcome.
type Deduper[V any] interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id uuid.UUID) bool

	// Complete stores the outcome for a recorded id. Unknown ids are ignored.
	Complete(ctx context.Context, id uuid.UUID, outcome V)

	// Outcome returns the stored outcome. ok is false while the command is
	// still pending or when id is unknown.
	Outcome(ctx context.Context, id uuid.UUID) (outcome V, ok bool)

	// Unrecord forgets id so it can be retried, e.g. after the command
	// queue refused it.
	Unrecord(ctx context.Context, id uuid.UUID)

	Size() int64
}

type entry[V any] struct {
	id      uuid.UUID
	outcome V
	done    bool
}

// inMemoryDeduper keeps ids in insertion order. In bounded mode the oldest
// id is evicted once maxSize is reached.
type inMemoryDeduper[V any] struct {
	mu      sync.Mutex
	seen    map[uuid.UUID]*list.Element
	order   *list.List // front is newest
	maxSize int        // 0 or negative = unbounded
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper[V any](opts ...Option) Deduper[V] {
	cfg := options{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &inMemoryDeduper[V]{
		seen:    make(map[uuid.UUID]*list.Element),
		order:   list.New(),
		maxSize: cfg.maxSize,
	}
}

func (d *inMemoryDeduper[V]) SeenAndRecord(_ context.Context, id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; exists {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}
	d.seen[id] = d.order.PushFront(&entry[V]{id: id})
	return false
}

func (d *inMemoryDeduper[V]) Complete(_ context.Context, id uuid.UUID, outcome V) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[id]; ok {
		e := el.Value.(*entry[V])
		e.outcome, e.done = outcome, true
	}
}

func (d *inMemoryDeduper[V]) Outcome(_ context.Context, id uuid.UUID) (V, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.seen[id]
	if !ok {
		var zero V
		return zero, false
	}
	e := el.Value.(*entry[V])
	return e.outcome, e.done
}

func (d *inMemoryDeduper[V]) Unrecord(_ context.Context, id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[id]; ok {
		d.order.Remove(el)
		delete(d.seen, id)
	}
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper[V]) evictOldest() {
	back := d.order.Back()
	if back == nil {
		return
	}
	d.order.Remove(back)
	delete(d.seen, back.Value.(*entry[V]).id)
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper[V]) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
