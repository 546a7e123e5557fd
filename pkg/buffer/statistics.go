package buffer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Statistics tracks endpoint traffic through the ring.
type Statistics struct {
	// Atomic counters for thread-safe updates
	writes        int64
	reads         int64
	peeks         int64
	bytesIn       int64
	bytesOut      int64
	blockedWrites int64
	blockedReads  int64
	interrupts    int64
	oversized     int64
	rejectedOpens int64

	// Protected by mutex
	mu           sync.RWMutex
	startTime    time.Time
	occupancy    int64
	maxOccupancy int64
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{
		startTime: time.Now(),
	}
}

// Write records a completed write of n bytes.
func (s *Statistics) Write(n int) {
	atomic.AddInt64(&s.writes, 1)
	atomic.AddInt64(&s.bytesIn, int64(n))
}

// Read records a completed read of n bytes.
func (s *Statistics) Read(n int) {
	atomic.AddInt64(&s.reads, 1)
	atomic.AddInt64(&s.bytesOut, int64(n))
}

// Peek records a non-destructive read.
func (s *Statistics) Peek() {
	atomic.AddInt64(&s.peeks, 1)
}

// BlockedWrite records a writer that had to wait for space.
func (s *Statistics) BlockedWrite() {
	atomic.AddInt64(&s.blockedWrites, 1)
}

// BlockedRead records a reader that had to wait for data.
func (s *Statistics) BlockedRead() {
	atomic.AddInt64(&s.blockedReads, 1)
}

// Interrupt records a cancelled wait.
func (s *Statistics) Interrupt() {
	atomic.AddInt64(&s.interrupts, 1)
}

// Oversized records a rejected oversized write.
func (s *Statistics) Oversized() {
	atomic.AddInt64(&s.oversized, 1)
}

// RejectedOpen records a refused open.
func (s *Statistics) RejectedOpen() {
	atomic.AddInt64(&s.rejectedOpens, 1)
}

// UpdateOccupancy records the current occupied byte count.
func (s *Statistics) UpdateOccupancy(occupied int64) {
	s.mu.Lock()
	s.occupancy = occupied
	if occupied > s.maxOccupancy {
		s.maxOccupancy = occupied
	}
	s.mu.Unlock()
}

// Writes returns the number of completed writes.
func (s *Statistics) Writes() int64 { return atomic.LoadInt64(&s.writes) }

// Reads returns the number of completed reads.
func (s *Statistics) Reads() int64 { return atomic.LoadInt64(&s.reads) }

// Peeks returns the number of peeks.
func (s *Statistics) Peeks() int64 { return atomic.LoadInt64(&s.peeks) }

// BytesIn returns the total bytes written.
func (s *Statistics) BytesIn() int64 { return atomic.LoadInt64(&s.bytesIn) }

// BytesOut returns the total bytes read.
func (s *Statistics) BytesOut() int64 { return atomic.LoadInt64(&s.bytesOut) }

// BlockedWrites returns how many writes had to wait.
func (s *Statistics) BlockedWrites() int64 { return atomic.LoadInt64(&s.blockedWrites) }

// BlockedReads returns how many reads had to wait.
func (s *Statistics) BlockedReads() int64 { return atomic.LoadInt64(&s.blockedReads) }

// Interrupts returns how many waits were cancelled.
func (s *Statistics) Interrupts() int64 { return atomic.LoadInt64(&s.interrupts) }

// OversizedWrites returns how many writes were rejected for size.
func (s *Statistics) OversizedWrites() int64 { return atomic.LoadInt64(&s.oversized) }

// RejectedOpens returns how many opens were refused.
func (s *Statistics) RejectedOpens() int64 { return atomic.LoadInt64(&s.rejectedOpens) }

// Occupancy returns the last recorded occupied byte count.
func (s *Statistics) Occupancy() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.occupancy
}

// MaxOccupancy returns the peak occupied byte count.
func (s *Statistics) MaxOccupancy() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxOccupancy
}

// Throughput returns the average number of bytes written per second.
func (s *Statistics) Throughput() float64 {
	elapsed := s.Uptime()
	if elapsed <= 0 {
		return 0.0
	}
	return float64(s.BytesIn()) / elapsed.Seconds()
}

// Utilization returns the last recorded occupancy relative to capacity (0.0 to 1.0).
func (s *Statistics) Utilization(capacity int64) float64 {
	if capacity == 0 {
		return 0.0
	}
	return float64(s.Occupancy()) / float64(capacity)
}

// Uptime returns how long the statistics have been collected.
func (s *Statistics) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startTime)
}

// Reset resets all statistics to zero.
func (s *Statistics) Reset() {
	for _, c := range []*int64{
		&s.writes, &s.reads, &s.peeks, &s.bytesIn, &s.bytesOut,
		&s.blockedWrites, &s.blockedReads, &s.interrupts, &s.oversized, &s.rejectedOpens,
	} {
		atomic.StoreInt64(c, 0)
	}

	s.mu.Lock()
	s.startTime = time.Now()
	s.occupancy = 0
	s.maxOccupancy = 0
	s.mu.Unlock()
}

// StatsSummary is a point-in-time snapshot of Statistics.
type StatsSummary struct {
	Writes          int64         `json:"writes"`
	Reads           int64         `json:"reads"`
	Peeks           int64         `json:"peeks"`
	BytesIn         int64         `json:"bytes_in"`
	BytesOut        int64         `json:"bytes_out"`
	BlockedWrites   int64         `json:"blocked_writes"`
	BlockedReads    int64         `json:"blocked_reads"`
	Interrupts      int64         `json:"interrupts"`
	OversizedWrites int64         `json:"oversized_writes"`
	RejectedOpens   int64         `json:"rejected_opens"`
	Occupancy       int64         `json:"occupancy"`
	MaxOccupancy    int64         `json:"max_occupancy"`
	Throughput      float64       `json:"throughput_bytes_per_second"`
	Uptime          time.Duration `json:"uptime"`
}

// Summary returns a snapshot of all statistics.
func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		Writes:          s.Writes(),
		Reads:           s.Reads(),
		Peeks:           s.Peeks(),
		BytesIn:         s.BytesIn(),
		BytesOut:        s.BytesOut(),
		BlockedWrites:   s.BlockedWrites(),
		BlockedReads:    s.BlockedReads(),
		Interrupts:      s.Interrupts(),
		OversizedWrites: s.OversizedWrites(),
		RejectedOpens:   s.RejectedOpens(),
		Occupancy:       s.Occupancy(),
		MaxOccupancy:    s.MaxOccupancy(),
		Throughput:      s.Throughput(),
		Uptime:          s.Uptime(),
	}
}
