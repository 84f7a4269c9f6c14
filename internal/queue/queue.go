// Package queue implements the unbounded FIFO queues that connect the router,
// the shard processors and the outcome consumers.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/payments-engine/internal/obs"
)

// Queue is an unbounded FIFO with a background broker. Enqueue never blocks;
// the broker moves items, in order, into a buffered output channel.
type Queue[T any] struct {
	name string

	mu      sync.Mutex
	backlog []T
	closed  bool
	notify  chan struct{}
	out     chan T

	enqueued  atomic.Uint64
	processed atomic.Uint64
}

// New creates a Queue with a buffered output channel.
func New[T any](name string, outBuffer int) *Queue[T] {
	if outBuffer <= 0 {
		outBuffer = 64
	}
	return &Queue[T]{
		name:   name,
		notify: make(chan struct{}, 1),
		out:    make(chan T, outBuffer),
	}
}

// Start runs the broker loop. The output channel is closed once intake is
// closed and every queued item has been handed out.
func (q *Queue[T]) Start(ctx context.Context, highWatermark int) {
	go q.broker(ctx, highWatermark)
}

// broker moves backlog items to the output channel.
func (q *Queue[T]) broker(ctx context.Context, highWatermark int) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		item, ok, closed := q.pop()
		if ok {
			if !q.send(ctx, ticker.C, item, highWatermark) {
				return
			}
			continue
		}
		if closed {
			close(q.out)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-q.notify:
		case <-ticker.C:
			q.checkWatermark(highWatermark)
		}
	}
}

// send blocks until item is handed out, checking the watermark on every
// tick while the consumer is slow. It returns false if ctx is done.
func (q *Queue[T]) send(ctx context.Context, tick <-chan time.Time, item T, highWatermark int) bool {
	for {
		select {
		case q.out <- item:
			return true
		case <-ctx.Done():
			return false
		case <-tick:
			q.checkWatermark(highWatermark)
		}
	}
}

// checkWatermark warns while the backlog is above highWatermark.
// The item held by a blocked send is not counted.
func (q *Queue[T]) checkWatermark(highWatermark int) {
	if highWatermark <= 0 {
		return
	}
	if sz := q.BacklogSize(); sz > highWatermark {
		obs.Logger.Warn("queue backlog exceeds high watermark", "queue", q.name, "backlog_size", sz, "high_watermark", highWatermark)
	}
}

// pop removes the head of the backlog.
func (q *Queue[T]) pop() (item T, ok, closed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.backlog) == 0 {
		if cap(q.backlog) > 1024 {
			q.backlog = nil
		}
		return item, false, q.closed
	}
	item = q.backlog[0]
	var zero T
	q.backlog[0] = zero
	q.backlog = q.backlog[1:]
	return item, true, q.closed
}

// Enqueue appends an item into the backlog and notifies the broker.
// It returns false once intake has been closed.
func (q *Queue[T]) Enqueue(item T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.backlog = append(q.backlog, item)
	q.enqueued.Add(1)
	q.mu.Unlock()
	q.wake()
	return true
}

func (q *Queue[T]) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Out exposes the output channel.
func (q *Queue[T]) Out() <-chan T { return q.out }

// BacklogSize returns the number of enqueued-but-not-yet-output items.
func (q *Queue[T]) BacklogSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// QueueDepth returns backlog plus buffered output items.
func (q *Queue[T]) QueueDepth() int {
	q.mu.Lock()
	bl := len(q.backlog)
	q.mu.Unlock()
	return bl + len(q.out)
}

// MarkProcessed increases the processed counter.
func (q *Queue[T]) MarkProcessed() { q.processed.Add(1) }

// Metrics returns counters and sizes for observability.
func (q *Queue[T]) Metrics() (enq, proc uint64, backlog, depth int) {
	enq = q.enqueued.Load()
	proc = q.processed.Load()
	backlog = q.BacklogSize()
	depth = q.QueueDepth()
	return enq, proc, backlog, depth
}

// CloseIntake disallows future enqueues. Items already queued are still
// delivered, after which Out is closed.
func (q *Queue[T]) CloseIntake() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

// IsShuttingDown reports if intake has been closed.
func (q *Queue[T]) IsShuttingDown() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
