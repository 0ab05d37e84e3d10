package datalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/san-kum/wamctl/internal/robot"
)

// Sink receives flushed records. Begin is called once from Init with the
// column names; Append is called from Flush and Finish, never from Trigger.
type Sink interface {
	Begin(fields []string) error
	Append(record []float64) error
}

const (
	bufFilling int32 = iota
	bufFull
)

type buffer struct {
	data  []float64
	n     int
	state atomic.Int32
	seq   uint64
}

type field struct {
	name   string
	src    []float64
	scalar *float64
}

// Log samples a fixed set of memory locations into a double buffer.
//
// Trigger is called from a single real-time goroutine and never blocks or
// allocates: when both buffers are waiting to be flushed the record is
// dropped and counted. Flush and Finish run on a different goroutine.
type Log struct {
	fields   []field
	names    []string
	width    int
	capacity int

	bufs   [2]*buffer
	active int
	seq    uint64
	sink   Sink

	triggered atomic.Uint64
	dropped   atomic.Uint64

	flushMu     sync.Mutex
	initialized bool
}

func New() *Log {
	return &Log{}
}

// AddField declares a vector column. src is sampled on every Trigger, so
// the caller must keep its backing array stable.
func (l *Log) AddField(name string, src []float64) error {
	if l.initialized {
		return errors.Wrap(robot.ErrSequence, "datalog: fields are fixed after Init")
	}
	l.fields = append(l.fields, field{name: name, src: src})
	if len(src) == 1 {
		l.names = append(l.names, name)
	} else {
		for i := range src {
			l.names = append(l.names, fmt.Sprintf("%s%d", name, i))
		}
	}
	l.width += len(src)
	return nil
}

// AddScalar declares a single-value column read through p.
func (l *Log) AddScalar(name string, p *float64) error {
	if l.initialized {
		return errors.Wrap(robot.ErrSequence, "datalog: fields are fixed after Init")
	}
	l.fields = append(l.fields, field{name: name, scalar: p})
	l.names = append(l.names, name)
	l.width++
	return nil
}

// Init allocates both buffers of capacity records and opens the sink.
func (l *Log) Init(capacity int, sink Sink) error {
	if l.initialized {
		return errors.Wrap(robot.ErrSequence, "datalog: already initialized")
	}
	if capacity < 1 || l.width == 0 {
		return errors.Wrapf(robot.ErrConfig, "datalog: need capacity > 0 and at least one field (capacity %d, width %d)", capacity, l.width)
	}
	if sink == nil {
		return errors.Wrap(robot.ErrConfig, "datalog: nil sink")
	}
	if err := sink.Begin(l.Fields()); err != nil {
		return errors.Wrap(err, "datalog: open sink")
	}
	for i := range l.bufs {
		l.bufs[i] = &buffer{data: make([]float64, capacity*l.width)}
	}
	l.capacity = capacity
	l.sink = sink
	l.initialized = true
	return nil
}

// Fields returns the expanded column names.
func (l *Log) Fields() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

func (l *Log) Width() int { return l.width }

// Trigger snapshots every field into the active buffer. It reports false
// when the record was dropped.
func (l *Log) Trigger() bool {
	if !l.initialized {
		return false
	}
	b := l.bufs[l.active]
	if b.state.Load() != bufFilling {
		l.dropped.Inc()
		return false
	}
	off := b.n * l.width
	for _, f := range l.fields {
		if f.scalar != nil {
			b.data[off] = *f.scalar
			off++
			continue
		}
		off += copy(b.data[off:], f.src)
	}
	b.n++
	l.triggered.Inc()
	if b.n == l.capacity {
		l.seq++
		b.seq = l.seq
		b.state.Store(bufFull)
		l.active ^= 1
	}
	return true
}

// Flush writes every full buffer to the sink, oldest first.
func (l *Log) Flush() error {
	if !l.initialized {
		return nil
	}
	l.flushMu.Lock()
	defer l.flushMu.Unlock()

	full := make([]*buffer, 0, 2)
	for _, b := range l.bufs {
		if b.state.Load() == bufFull {
			full = append(full, b)
		}
	}
	sort.Slice(full, func(i, j int) bool { return full[i].seq < full[j].seq })

	var err error
	for _, b := range full {
		err = multierr.Append(err, l.drain(b))
		b.n = 0
		b.state.Store(bufFilling)
	}
	return err
}

// Finish flushes full buffers and then the partial one. Call it only once
// Trigger is no longer being called.
func (l *Log) Finish() error {
	if err := l.Flush(); err != nil {
		return err
	}
	if !l.initialized {
		return nil
	}
	l.flushMu.Lock()
	defer l.flushMu.Unlock()
	b := l.bufs[l.active]
	if b.state.Load() == bufFilling && b.n > 0 {
		err := l.drain(b)
		b.n = 0
		return err
	}
	return nil
}

func (l *Log) drain(b *buffer) error {
	for k := 0; k < b.n; k++ {
		rec := b.data[k*l.width : (k+1)*l.width]
		if err := l.sink.Append(rec); err != nil {
			return errors.Wrap(err, "datalog: append")
		}
	}
	return nil
}

// Triggered is the number of records accepted.
func (l *Log) Triggered() uint64 { return l.triggered.Load() }

// Dropped is the number of records lost to backpressure.
func (l *Log) Dropped() uint64 { return l.dropped.Load() }
