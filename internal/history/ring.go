// Package history keeps the recent (value, timestamp) samples of the feedback
// loop for display and diagnostics.
package history

import "time"

// DefaultCapacity is the number of samples kept when none is configured.
const DefaultCapacity = 200

// Sample is one recorded batch mean and the time it was taken.
type Sample struct {
	Value float64
	Time  time.Time
}

// Slot is one ring position. Valid is false for slots never written.
type Slot struct {
	Sample
	Valid bool
}

// Buffer is a fixed-capacity ring of samples keyed by a monotonically
// increasing write count modulo its capacity.
// Not safe for concurrent use; the caller must synchronize.
type Buffer struct {
	slots  []Slot
	writes int // total writes; next slot is writes % cap
}

// New creates a Buffer holding the last capacity samples.
// A capacity below 1 is treated as 1.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{slots: make([]Slot, capacity)}
}

// Write records value taken at t, overwriting the oldest sample once full.
func (b *Buffer) Write(value float64, t time.Time) {
	b.slots[b.writes%len(b.slots)] = Slot{Sample: Sample{Value: value, Time: t}, Valid: true}
	b.writes++
}

// Read returns the sample at offset k. Negative offsets count back from the
// most recent write (-1 is the latest, -2 the one before). Non-negative
// offsets address the raw ring slot k mod capacity. The bool is false when
// the addressed slot has never been written.
func (b *Buffer) Read(k int) (Sample, bool) {
	if b.writes == 0 {
		return Sample{}, false
	}
	idx := k
	if k < 0 {
		idx = b.writes + k
	}
	slot := b.slots[mod(idx, len(b.slots))]
	return slot.Sample, slot.Valid
}

// Snapshot returns a copy of every slot in ring order, including unwritten ones.
func (b *Buffer) Snapshot() []Slot {
	out := make([]Slot, len(b.slots))
	copy(out, b.slots)
	return out
}

// Ordered returns the retained samples from oldest to newest.
func (b *Buffer) Ordered() []Sample {
	n := b.Len()
	if n == 0 {
		return nil
	}

	result := make([]Sample, n)
	// Oldest item is at (writes - n) mod capacity
	start := b.writes - n
	for i := 0; i < n; i++ {
		result[i] = b.slots[(start+i)%len(b.slots)].Sample
	}
	return result
}

// Len returns the number of retained samples.
func (b *Buffer) Len() int {
	if b.writes < len(b.slots) {
		return b.writes
	}
	return len(b.slots)
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return len(b.slots)
}

func mod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}
