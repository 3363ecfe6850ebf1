// Package debounce coalesces writes keyed by id and flushes them after a
// quiet period.
package debounce

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultMaxPending is the queue size that triggers an immediate flush.
const DefaultMaxPending = 1000

// Batcher is a trailing debouncer. Items added within the delay window are
// merged by key, the last added winning, and handed to the flush function
// once no item has been added for the whole delay.
type Batcher[K comparable, V any] struct {
	delay      time.Duration
	maxPending int
	keyFn      func(V) K
	flushFn    func(ctx context.Context, items []V) error

	lock    sync.Mutex
	pending map[K]V
	order   []K
	timer   *time.Timer
	stopped bool

	flushLock sync.Mutex
}

// New returns a Batcher. A non positive maxPending defaults to
// DefaultMaxPending.
func New[K comparable, V any](
	delay time.Duration,
	maxPending int,
	keyFn func(V) K,
	flushFn func(ctx context.Context, items []V) error,
) *Batcher[K, V] {
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}
	return &Batcher[K, V]{
		delay:      delay,
		maxPending: maxPending,
		keyFn:      keyFn,
		flushFn:    flushFn,
		pending:    make(map[K]V),
	}
}

// Add queues the items and restarts the delay window.
func (b *Batcher[K, V]) Add(items ...V) {
	if len(items) <= 0 {
		return
	}

	b.lock.Lock()
	if b.stopped {
		b.lock.Unlock()
		return
	}
	for _, item := range items {
		b.put(item)
	}
	full := len(b.order) >= b.maxPending
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if !full {
		b.timer = time.AfterFunc(b.delay, b.onTimer)
	}
	b.lock.Unlock()

	if full {
		go b.onTimer()
	}
}

// Len returns the number of pending items.
func (b *Batcher[K, V]) Len() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.order)
}

// Flush drains the queue synchronously.
func (b *Batcher[K, V]) Flush(ctx context.Context) error {
	b.flushLock.Lock()
	defer b.flushLock.Unlock()

	items := b.drain()
	if len(items) <= 0 {
		return nil
	}
	if err := b.flushFn(ctx, items); err != nil {
		b.requeue(items)
		return err
	}
	return nil
}

// Stop flushes the pending items and rejects new ones.
func (b *Batcher[K, V]) Stop(ctx context.Context) error {
	err := b.Flush(ctx)
	b.lock.Lock()
	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.lock.Unlock()
	return err
}

func (b *Batcher[K, V]) onTimer() {
	if err := b.Flush(context.Background()); err != nil {
		log.WithError(err).Warn("debounced flush failed, items are kept for next window")
	}
}

func (b *Batcher[K, V]) put(item V) {
	key := b.keyFn(item)
	if _, ok := b.pending[key]; !ok {
		b.order = append(b.order, key)
	}
	b.pending[key] = item
}

func (b *Batcher[K, V]) drain() []V {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	items := make([]V, 0, len(b.order))
	for _, key := range b.order {
		items = append(items, b.pending[key])
	}
	b.pending = make(map[K]V)
	b.order = nil
	return items
}

// requeue puts back the items of a failed flush ahead of the ones added in
// the meantime, unless newer versions of them were added, and arms the timer
// for another attempt.
func (b *Batcher[K, V]) requeue(items []V) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.stopped {
		return
	}
	order := make([]K, 0, len(items)+len(b.order))
	for _, item := range items {
		key := b.keyFn(item)
		if _, ok := b.pending[key]; ok {
			continue
		}
		order = append(order, key)
		b.pending[key] = item
	}
	b.order = append(order, b.order...)

	if len(b.order) > 0 && b.timer == nil {
		b.timer = time.AfterFunc(b.delay, b.onTimer)
	}
}
