// Package queue provides an unbounded FIFO queue whose Push never blocks.
// Consumers drain it with non-blocking TryPop calls and park on Wait between
// drain passes instead of spinning.
package queue

import "sync"

// Queue is an unbounded, concurrency-safe FIFO. The zero value is ready to use.
type Queue[T any] struct {
	mu     sync.Mutex
	once   sync.Once
	items  []T
	signal chan struct{}
}

// New creates an empty Queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// init ensures internal structures are allocated.
func (q *Queue[T]) init() {
	q.once.Do(func() {
		q.signal = make(chan struct{})
	})
}

// Push appends v to the tail of the queue and wakes any goroutine parked on
// a channel returned by Wait.
func (q *Queue[T]) Push(v T) {
	q.init()
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, v)
	close(q.signal)
	q.signal = make(chan struct{})
}

// TryPop removes and returns the head of the queue. It reports false when
// the queue is empty and never blocks.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]

	if len(q.items) == 0 {
		q.items = nil
	}

	return v, true
}

// Len returns the number of pending items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Wait returns a channel that is closed by the next Push. If items are
// already pending the returned channel is closed immediately, so a consumer
// that drains, then waits, never misses an item pushed in between.
func (q *Queue[T]) Wait() <-chan struct{} {
	q.init()
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) > 0 {
		ch := make(chan struct{})
		close(ch)
		return ch
	}

	return q.signal
}
