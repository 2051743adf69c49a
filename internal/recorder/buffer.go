package recorder

import (
	"sync"
)

// growableBuffer is a thread-safe queue that doubles its capacity when
// it reaches 70% full, so producers never block. Observer callbacks run
// on the fetch pass's goroutines and must not stall behind the database.
type growableBuffer[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int
	tail     int
	count    int
	capacity int
	closed   bool

	totalReceived int64
	totalSent     int64
}

func newGrowableBuffer[T any](initialCapacity int) *growableBuffer[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &growableBuffer[T]{
		buf:      make([]T, initialCapacity),
		capacity: initialCapacity,
	}
}

// Send adds an item, growing the buffer if at 70% capacity.
// Returns false if the buffer is closed.
func (b *growableBuffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	threshold := (b.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if b.count+1 >= threshold {
		b.grow()
	}

	b.buf[b.tail] = item
	b.tail = (b.tail + 1) % b.capacity
	b.count++
	b.totalReceived++
	return true
}

// TryReceive removes an item without blocking. Returns false when empty.
func (b *growableBuffer[T]) TryReceive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		var zero T
		return zero, false
	}

	item := b.buf[b.head]
	var zero T
	b.buf[b.head] = zero // Clear reference for GC
	b.head = (b.head + 1) % b.capacity
	b.count--
	b.totalSent++
	return item, true
}

// DrainTo removes up to max items (all items if max <= 0).
func (b *growableBuffer[T]) DrainTo(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}

	n := b.count
	if max > 0 && max < n {
		n = max
	}

	result := make([]T, n)
	for i := 0; i < n; i++ {
		result[i] = b.buf[b.head]
		var zero T
		b.buf[b.head] = zero
		b.head = (b.head + 1) % b.capacity
		b.count--
		b.totalSent++
	}
	return result
}

// Close stops accepting new items. Remaining items stay drainable.
func (b *growableBuffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

func (b *growableBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *growableBuffer[T]) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity
}

// grow doubles the capacity. Must be called with lock held.
func (b *growableBuffer[T]) grow() {
	newCapacity := b.capacity * 2
	newBuf := make([]T, newCapacity)

	if b.count > 0 {
		if b.head < b.tail {
			copy(newBuf, b.buf[b.head:b.tail])
		} else {
			n := copy(newBuf, b.buf[b.head:])
			copy(newBuf[n:], b.buf[:b.tail])
		}
	}

	b.buf = newBuf
	b.head = 0
	b.tail = b.count
	b.capacity = newCapacity
}
