package forwarder

import (
	"sync"

	"courtside/internal/securityaudit"
)

// Buffer is a bounded, thread-safe FIFO of events awaiting forwarding.
// When full, the oldest events are dropped to make room for new ones.
type Buffer struct {
	mu       sync.Mutex
	events   []securityaudit.SecurityEvent
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int

	// Stats
	dropped int64
}

// NewBuffer creates a buffer with the given capacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Buffer{
		events:   make([]securityaudit.SecurityEvent, capacity),
		capacity: capacity,
	}
}

// Enqueue adds an event, dropping the oldest if necessary. It reports whether
// an event was dropped.
func (b *Buffer) Enqueue(event securityaudit.SecurityEvent) (dropped bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.capacity {
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
		dropped = true
	}

	b.events[b.head] = event
	b.head = (b.head + 1) % b.capacity
	b.count++
	return dropped
}

// DequeueBatch removes up to n events from the buffer, oldest first.
func (b *Buffer) DequeueBatch(n int) []securityaudit.SecurityEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 || n <= 0 {
		return nil
	}

	n = min(n, b.count)
	result := make([]securityaudit.SecurityEvent, n)
	var zero securityaudit.SecurityEvent
	for i := range n {
		result[i] = b.events[b.tail]
		b.events[b.tail] = zero
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n

	return result
}

// Len returns the current number of events in the buffer.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped returns the total number of dropped events.
func (b *Buffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
