package queue

import (
	"sync"
	"sync/atomic"
)

// BoundedDropQueue is a fixed-capacity FIFO. When full, the oldest element is
// evicted to admit the newest one, so producers never block.
type BoundedDropQueue[T any] struct {
	mu      sync.Mutex
	items   []T
	head    int
	size    int
	dropped atomic.Uint64
}

func NewBoundedDropQueue[T any](capacity int) *BoundedDropQueue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &BoundedDropQueue[T]{
		items: make([]T, capacity),
	}
}

func (q *BoundedDropQueue[T]) Push(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pushLocked(item) {
		q.dropped.Add(1)
	}
}

// PushAll appends items under a single lock acquisition and returns the
// number of elements evicted to make room.
func (q *BoundedDropQueue[T]) PushAll(items []T) int {
	if len(items) == 0 {
		return 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := 0
	for _, item := range items {
		if q.pushLocked(item) {
			evicted++
		}
	}
	q.dropped.Add(uint64(evicted))

	return evicted
}

func (q *BoundedDropQueue[T]) pushLocked(item T) bool {
	capacity := len(q.items)
	if q.size == capacity {
		// tail slot is the oldest element's slot when full
		q.items[q.head] = item
		q.head = (q.head + 1) % capacity
		return true
	}

	q.items[(q.head+q.size)%capacity] = item
	q.size++
	return false
}

// DrainAll returns every element oldest first and empties the queue.
// The result is never nil.
func (q *BoundedDropQueue[T]) DrainAll() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	capacity := len(q.items)
	out := make([]T, q.size)
	var zero T
	for i := 0; i < q.size; i++ {
		idx := (q.head + i) % capacity
		out[i] = q.items[idx]
		q.items[idx] = zero
	}
	q.head = 0
	q.size = 0

	return out
}

func (q *BoundedDropQueue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *BoundedDropQueue[T]) Capacity() int {
	return len(q.items)
}

// IsFull is a hint that the consumer should drain more often.
func (q *BoundedDropQueue[T]) IsFull() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size == len(q.items)
}

// Dropped reports how many elements have been evicted since construction.
func (q *BoundedDropQueue[T]) Dropped() uint64 {
	return q.dropped.Load()
}
