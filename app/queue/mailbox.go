package queue

import "sync"

// Mailbox is an unbounded FIFO handoff between goroutines. Consumers take
// everything at once with DrainAll so the lock is only held for the swap.
type Mailbox[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
}

func NewMailbox[T any](capacity int) *Mailbox[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Mailbox[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
}

func (m *Mailbox[T]) Push(item T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, item)
}

func (m *Mailbox[T]) PushAll(items []T) {
	if len(items) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, items...)
}

// DrainAll returns the pending items in push order and leaves the mailbox
// empty. Returns nil when nothing is pending.
func (m *Mailbox[T]) DrainAll() []T {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.items) == 0 {
		return nil
	}

	out := m.items
	m.items = make([]T, 0, m.capacity)
	return out
}

func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
