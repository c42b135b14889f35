package flush

import "sync"

// Queue is a thread-safe FIFO that grows automatically when it approaches
// capacity, so producers on the game thread never block on a full buffer.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []T
	head   int
	tail   int
	count  int
	closed bool

	pushed int64
	popped int64
}

// NewQueue creates a queue with the given initial capacity.
func NewQueue[T any](initialCapacity int) *Queue[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	q := &Queue[T]{buf: make([]T, initialCapacity)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an item. Returns false if the queue is closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	// Grow before the ring fills; leaves headroom for bursts.
	if (q.count+1)*10 >= len(q.buf)*7 {
		q.grow()
	}

	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % len(q.buf)
	q.count++
	q.pushed++

	q.cond.Signal()
	return true
}

// TryPop removes the oldest item without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

// Pop removes the oldest item, blocking until one is available or the queue
// is closed and empty.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}
	return q.popLocked()
}

func (q *Queue[T]) popLocked() (T, bool) {
	var zero T
	if q.count == 0 {
		return zero, false
	}
	item := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.popped++
	return item, true
}

// Drain removes up to max items (all items if max <= 0).
func (q *Queue[T]) Drain(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.count
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}

	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		item, _ := q.popLocked()
		out = append(out, item)
	}
	return out
}

// Close stops accepting new items and wakes blocked readers.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *Queue[T]) grow() {
	bigger := make([]T, len(q.buf)*2)
	if q.count > 0 {
		if q.head < q.tail {
			copy(bigger, q.buf[q.head:q.tail])
		} else {
			n := copy(bigger, q.buf[q.head:])
			copy(bigger[n:], q.buf[:q.tail])
		}
	}
	q.buf = bigger
	q.head = 0
	q.tail = q.count
}
