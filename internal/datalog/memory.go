package datalog

import "sync"

// MemorySink keeps records in memory. Teach-and-play uses it to collect
// samples before building a spline.
type MemorySink struct {
	mu      sync.Mutex
	fields  []string
	records [][]float64
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Begin(fields []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields = append([]string(nil), fields...)
	m.records = m.records[:0]
	return nil
}

func (m *MemorySink) Append(record []float64) error {
	rec := make([]float64, len(record))
	copy(rec, record)
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
	return nil
}

func (m *MemorySink) Fields() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.fields...)
}

// Records returns the stored records. The slices must not be modified.
func (m *MemorySink) Records() [][]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]float64, len(m.records))
	copy(out, m.records)
	return out
}

func (m *MemorySink) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
