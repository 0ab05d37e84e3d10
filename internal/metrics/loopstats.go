package metrics

import (
	"sync"
	"time"

	"github.com/montanaflynn/stats"
)

// LoopStats keeps the most recent durations of a periodic loop.
type LoopStats struct {
	mu       sync.Mutex
	ring     []float64
	next     int
	full     bool
	period   time.Duration
	count    uint64
	overruns uint64
}

// Summary is in seconds.
type Summary struct {
	Count    uint64
	Overruns uint64
	Min      float64
	Mean     float64
	Max      float64
	StdDev   float64
	P99      float64
}

// NewLoopStats keeps size samples; a duration above period counts as an
// overrun. A zero period disables overrun counting.
func NewLoopStats(size int, period time.Duration) *LoopStats {
	if size < 1 {
		size = 1
	}
	return &LoopStats{ring: make([]float64, size), period: period}
}

// Add records d and reports whether it overran the period.
func (s *LoopStats) Add(d time.Duration) bool {
	overrun := s.period > 0 && d > s.period
	s.mu.Lock()
	s.ring[s.next] = d.Seconds()
	s.next++
	if s.next == len(s.ring) {
		s.next = 0
		s.full = true
	}
	s.count++
	if overrun {
		s.overruns++
	}
	s.mu.Unlock()
	return overrun
}

func (s *LoopStats) Summary() Summary {
	s.mu.Lock()
	n := s.next
	if s.full {
		n = len(s.ring)
	}
	data := stats.Float64Data(append([]float64(nil), s.ring[:n]...))
	sum := Summary{Count: s.count, Overruns: s.overruns}
	s.mu.Unlock()

	if len(data) == 0 {
		return sum
	}
	sum.Min, _ = data.Min()
	sum.Max, _ = data.Max()
	sum.Mean, _ = data.Mean()
	sum.StdDev, _ = data.StandardDeviation()
	sum.P99, _ = data.Percentile(99)
	return sum
}

func (s *LoopStats) Reset() {
	s.mu.Lock()
	s.next, s.full, s.count, s.overruns = 0, false, 0, 0
	s.mu.Unlock()
}
