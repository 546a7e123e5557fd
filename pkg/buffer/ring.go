package buffer

import (
	"fmt"
	"math/bits"
	"sync/atomic"

	"github.com/c360/ringdev/errors"
)

// MaxCapacity is the largest ring that can be created (1 GiB).
const MaxCapacity = 1 << 30

// Ring is a fixed-capacity FIFO byte queue with wraparound cursors.
type Ring struct {
	data []byte
	mask uint64

	// head and tail grow monotonically; occupied = tail - head.
	head atomic.Uint64 // advanced only by the consumer
	tail atomic.Uint64 // advanced only by the producer
}

// RoundUpPowerOfTwo returns the smallest power of two >= n.
func RoundUpPowerOfTwo(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("size must be positive, got %d", n)
	}
	if n > MaxCapacity {
		return 0, fmt.Errorf("size %d exceeds maximum %d", n, MaxCapacity)
	}
	return 1 << bits.Len(uint(n-1)), nil
}

// NewRing allocates a ring holding size bytes, rounded up to a power of two.
// A failure here is fatal to startup.
func NewRing(size int) (*Ring, error) {
	capacity, err := RoundUpPowerOfTwo(size)
	if err != nil {
		return nil, errors.WrapFatal(fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err),
			"Ring", "NewRing", "compute capacity")
	}

	return &Ring{
		data: make([]byte, capacity),
		mask: uint64(capacity - 1),
	}, nil
}

// Cap returns the ring capacity in bytes. It never changes.
func (r *Ring) Cap() int {
	return len(r.data)
}

// Len returns the number of occupied bytes. Called outside the producer and
// consumer it is a best-effort reading, clamped to [0, Cap()].
func (r *Ring) Len() int {
	head := r.head.Load()
	tail := r.tail.Load()
	if tail <= head {
		return 0
	}
	if n := tail - head; n < uint64(len(r.data)) {
		return int(n)
	}
	return len(r.data)
}

// Available returns the number of free bytes.
func (r *Ring) Available() int {
	return len(r.data) - r.Len()
}

// Push copies min(len(p), Available()) bytes into the ring and returns the
// count. It never blocks.
func (r *Ring) Push(p []byte) int {
	tail := r.tail.Load()
	free := uint64(len(r.data)) - (tail - r.head.Load())
	n := min(uint64(len(p)), free)
	if n == 0 {
		return 0
	}

	off := tail & r.mask
	c := copy(r.data[off:], p[:n])
	copy(r.data, p[c:n])

	r.tail.Store(tail + n)
	return int(n)
}

// Pop moves up to len(p) bytes out of the ring into p. Returns 0 when empty.
func (r *Ring) Pop(p []byte) int {
	head, n := r.copyOut(p)
	if n > 0 {
		r.head.Store(head + n)
	}
	return int(n)
}

// Peek copies up to len(p) bytes into p without consuming them.
func (r *Ring) Peek(p []byte) int {
	_, n := r.copyOut(p)
	return int(n)
}

func (r *Ring) copyOut(p []byte) (head, n uint64) {
	head = r.head.Load()
	n = min(uint64(len(p)), r.tail.Load()-head)
	if n == 0 {
		return head, 0
	}

	off := head & r.mask
	c := copy(p[:n], r.data[off:])
	copy(p[c:n], r.data)
	return head, n
}
