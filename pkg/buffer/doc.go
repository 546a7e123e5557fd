// Package buffer provides the byte ring used by the endpoint and its statistics.
//
// # Overview
//
// Ring is a fixed-capacity FIFO byte queue. The capacity is rounded up to a power
// of two at creation so cursor arithmetic is a mask, and it never changes
// afterwards. Cursors grow monotonically; the occupied count is tail - head.
//
// # Quick Start
//
//	ring, err := buffer.NewRing(100) // capacity 128
//	if err != nil {
//		log.Fatal(err) // fatal to startup
//	}
//
//	n := ring.Push([]byte("hello")) // 5
//	out := make([]byte, 16)
//	n = ring.Pop(out)               // 5, out[:5] == "hello"
//
// Push and Pop never block. Push accepts as many bytes as fit; the all-or-nothing
// policy and the blocking behavior belong to the endpoint's write path.
//
// # Concurrency
//
// Ring takes no locks. It is safe for exactly one goroutine pushing and one
// goroutine popping at the same time:
//
//   - the producer copies bytes, then stores tail
//   - the consumer copies bytes, then stores head
//   - each side loads the other's cursor before touching the shared region
//
// Multiple producers or multiple consumers must be serialized by the caller. The
// endpoint does this with the read and write locks of pkg/gate.
//
// # Statistics
//
// Statistics is always on and lock-free for counters. It records writes and reads
// with byte counts, peeks, blocked waits, interrupts, oversize rejections, refused
// opens and peak occupancy. Summary returns a JSON-friendly snapshot.
package buffer
