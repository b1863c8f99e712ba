// Package buffer implements the bounded in-memory holding area for records
// awaiting delivery. Admission is non-blocking and capped by both entry count
// and estimated byte total; draining is an atomic snapshot-and-clear.
package buffer

import (
	"sync"
	"time"

	"github.com/hyp3rd/logship"
)

// Config bounds the buffer and defines its flush thresholds.
type Config struct {
	// MaxEntries caps the number of buffered records.
	MaxEntries int
	// MaxBytes caps the estimated byte total of buffered records.
	MaxBytes int
	// FlushThreshold is the entry count at which ShouldFlush reports true.
	FlushThreshold int
	// FlushByteThreshold is the byte total at which ShouldFlush reports true.
	FlushByteThreshold int
	// FlushInterval is the elapsed time since the last drain at which
	// ShouldFlush reports true.
	FlushInterval time.Duration
}

// Buffer is a thread-safe bounded accumulator of pending records. All state
// is guarded by a single mutex; no external component holds a reference into
// the record slice.
type Buffer struct {
	mu        sync.Mutex
	records   []logship.Record
	bytes     int
	lastDrain time.Time
	config    Config
	now       func() time.Time
}

// New creates a buffer with the given bounds.
func New(config Config) *Buffer {
	buf := &Buffer{
		config: config,
		now:    time.Now,
	}
	buf.lastDrain = buf.now()

	return buf
}

// Admit appends the record if doing so keeps the buffer within its entry and
// byte limits. It returns false without mutating state when the record does
// not fit. Safe for concurrent callers.
func (b *Buffer) Admit(record logship.Record) bool {
	size := record.EstimateSize()

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.records) >= b.config.MaxEntries || b.bytes+size > b.config.MaxBytes {
		return false
	}

	b.records = append(b.records, record)
	b.bytes += size

	return true
}

// ShouldFlush reports whether any flush condition holds: the entry threshold,
// the byte threshold, or the flush interval since the last drain.
func (b *Buffer) ShouldFlush() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.config.FlushThreshold > 0 && len(b.records) >= b.config.FlushThreshold:
		return true
	case b.config.FlushByteThreshold > 0 && b.bytes >= b.config.FlushByteThreshold:
		return true
	case b.config.FlushInterval > 0 && b.now().Sub(b.lastDrain) >= b.config.FlushInterval:
		return true
	default:
		return false
	}
}

// Drain atomically removes and returns all buffered records in admission
// order, resetting the byte counter and the last-drain timestamp. Concurrent
// Admit calls either land in the returned snapshot or in the next one; no
// record is lost or duplicated.
func (b *Buffer) Drain() []logship.Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	drained := b.records
	b.records = nil
	b.bytes = 0
	b.lastDrain = b.now()

	return drained
}

// Len returns the current number of buffered records.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.records)
}

// Bytes returns the current estimated byte total of buffered records.
func (b *Buffer) Bytes() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.bytes
}
