// Package ring provides a bounded, time-ordered, thread-safe event log.
//
// Entries are stamped on insertion and kept in insertion order. Stamps never
// go backwards: an insertion whose time is earlier than the newest entry is
// clamped to the newest entry's time, so insertion order and chronological
// order always agree. When the ring is full the oldest entry is dropped.
//
// All mutations happen under a single mutex. Reads copy the matching entries
// out under the same mutex, so a caller never observes a partially evicted
// state and never holds a reference into internal storage.
package ring

import (
	"sort"
	"sync"
	"time"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 10000

type entry[T any] struct {
	at    time.Time
	value T
}

// Ring is a bounded log of values ordered by their insertion time.
type Ring[T any] struct {
	mu       sync.Mutex
	entries  []entry[T]
	head     int // next write position
	tail     int // oldest entry
	count    int
	capacity int
	last     time.Time

	// Stats
	dropped int64
}

// New creates a ring with the given capacity.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring[T]{
		entries:  make([]entry[T], capacity),
		capacity: capacity,
	}
}

// Append stamps a new entry and stores it, dropping the oldest entry if the
// ring is full. build receives the effective stamp (at, or the newest stamp
// if at is earlier) so the stored value can carry the same time it is indexed
// under. The stored value is returned.
func (r *Ring[T]) Append(at time.Time, build func(stamp time.Time) T) T {
	return r.Update(at, func(stamp time.Time, _ *T) T { return build(stamp) })
}

// Update is like Append but also hands build the newest stored value, if any.
// Used by owners that chain each entry to its predecessor.
func (r *Ring[T]) Update(at time.Time, build func(stamp time.Time, prev *T) T) T {
	r.mu.Lock()
	defer r.mu.Unlock()

	if at.Before(r.last) {
		at = r.last
	}
	var prev *T
	if r.count > 0 {
		p := r.entries[r.index(r.count-1)].value
		prev = &p
	}
	value := build(at, prev)

	if r.count >= r.capacity {
		r.tail = (r.tail + 1) % r.capacity
		r.count--
		r.dropped++
	}

	r.entries[r.head] = entry[T]{at: at, value: value}
	r.head = (r.head + 1) % r.capacity
	r.count++
	r.last = at
	return value
}

// Snapshot returns every retained value, oldest first.
func (r *Ring[T]) Snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyRange(0, r.count)
}

// Since returns the values stamped at or after cutoff, oldest first.
func (r *Ring[T]) Since(cutoff time.Time) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyRange(r.firstAtOrAfter(cutoff), r.count)
}

// Between returns the values stamped within [start, end], oldest first.
// A zero start or end leaves that side of the range open.
func (r *Ring[T]) Between(start, end time.Time) []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	from := 0
	if !start.IsZero() {
		from = r.firstAtOrAfter(start)
	}
	to := r.count
	if !end.IsZero() {
		to = r.firstAfter(end)
	}
	if to < from {
		to = from
	}
	return r.copyRange(from, to)
}

// Newest walks from the newest entry backwards and returns up to limit values
// accepted by match, newest first. A nil match accepts everything.
func (r *Ring[T]) Newest(limit int, match func(T) bool) []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		return []T{}
	}
	result := make([]T, 0, min(limit, r.count))
	for i := r.count - 1; i >= 0 && len(result) < limit; i-- {
		v := r.entries[r.index(i)].value
		if match == nil || match(v) {
			result = append(result, v)
		}
	}
	return result
}

// EvictBefore removes every entry stamped strictly before cutoff and returns
// the number removed. Entries at or after cutoff are untouched.
func (r *Ring[T]) EvictBefore(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.firstAtOrAfter(cutoff)
	var zero entry[T]
	for range n {
		r.entries[r.tail] = zero
		r.tail = (r.tail + 1) % r.capacity
	}
	r.count -= n
	return n
}

// Len returns the number of retained entries.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Dropped returns how many entries were discarded because the ring was full.
func (r *Ring[T]) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// index maps a logical position (0 = oldest) to a slot. Caller holds mu.
func (r *Ring[T]) index(i int) int {
	return (r.tail + i) % r.capacity
}

// firstAtOrAfter binary-searches the first logical position stamped >= t.
func (r *Ring[T]) firstAtOrAfter(t time.Time) int {
	return sort.Search(r.count, func(i int) bool {
		return !r.entries[r.index(i)].at.Before(t)
	})
}

// firstAfter binary-searches the first logical position stamped > t.
func (r *Ring[T]) firstAfter(t time.Time) int {
	return sort.Search(r.count, func(i int) bool {
		return r.entries[r.index(i)].at.After(t)
	})
}

func (r *Ring[T]) copyRange(from, to int) []T {
	result := make([]T, 0, to-from)
	for i := from; i < to; i++ {
		result = append(result, r.entries[r.index(i)].value)
	}
	return result
}
