package pipeline

import (
	"slices"
	"sync"
	"time"

	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
)

// Buffer holds recently ingested readings in arrival order. Ingestion appends
// concurrently; each evaluation cycle reads a copy of one window and then
// prunes.
//
// Storage is a ring: it grows by append until it reaches capacity, after
// which Add overwrites the oldest slot. head is non-zero only while the ring
// is full; Prune always leaves the readings linear again.
type Buffer struct {
	mu       sync.Mutex
	readings []domain.Reading
	head     int
	capacity int
}

// NewBuffer creates a buffer that keeps at most capacity readings, dropping
// the oldest first.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{capacity: max(capacity, 1)}
}

// Add appends r and reports whether an older reading had to be evicted.
func (b *Buffer) Add(r domain.Reading) (evicted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.readings) < b.capacity {
		b.readings = append(b.readings, r)
		return false
	}
	b.readings[b.head] = r
	b.head = (b.head + 1) % len(b.readings)
	return true
}

// at returns the i-th oldest reading. Callers hold mu.
func (b *Buffer) at(i int) domain.Reading {
	return b.readings[(b.head+i)%len(b.readings)]
}

// Snapshot returns copies of the readings inside w.
func (b *Buffer) Snapshot(w domain.Window) []domain.Reading {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.Reading, 0, len(b.readings))
	for i := 0; i < len(b.readings); i++ {
		if r := b.at(i); w.Contains(r.Timestamp) {
			r.Values = slices.Clone(r.Values)
			out = append(out, r)
		}
	}
	return out
}

// Recent returns copies of the newest limit readings, oldest first.
func (b *Buffer) Recent(limit int) []domain.Reading {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := min(max(limit, 0), len(b.readings))
	out := make([]domain.Reading, 0, n)
	for i := len(b.readings) - n; i < len(b.readings); i++ {
		r := b.at(i)
		r.Values = slices.Clone(r.Values)
		out = append(out, r)
	}
	return out
}

// Prune discards readings timestamped before cutoff.
func (b *Buffer) Prune(cutoff time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.head != 0 {
		b.readings = append(b.readings[b.head:], b.readings[:b.head]...)
		b.head = 0
	}
	before := len(b.readings)
	b.readings = slices.DeleteFunc(b.readings, func(r domain.Reading) bool { return r.Timestamp.Before(cutoff) })
	return before - len(b.readings)
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.readings)
}
