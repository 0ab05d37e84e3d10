package datalog

import (
	"errors"
	"testing"

	"go.viam.com/test"

	"github.com/san-kum/wamctl/internal/robot"
)

func newLog(t *testing.T, capacity int) (*Log, *MemorySink, []float64, *float64) {
	t.Helper()
	pos := make([]float64, 2)
	var tm float64
	l := New()
	test.That(t, l.AddScalar("time", &tm), test.ShouldBeNil)
	test.That(t, l.AddField("q", pos), test.ShouldBeNil)
	sink := NewMemorySink()
	test.That(t, l.Init(capacity, sink), test.ShouldBeNil)
	return l, sink, pos, &tm
}

func TestFieldsAndRecords(t *testing.T) {
	l, sink, pos, tm := newLog(t, 2)
	test.That(t, sink.Fields(), test.ShouldResemble, []string{"time", "q0", "q1"})
	test.That(t, l.Width(), test.ShouldEqual, 3)

	for k := 0; k < 4; k++ {
		*tm = float64(k)
		pos[0], pos[1] = float64(10*k), float64(-k)
		test.That(t, l.Trigger(), test.ShouldBeTrue)
	}
	test.That(t, l.Flush(), test.ShouldBeNil)

	recs := sink.Records()
	test.That(t, len(recs), test.ShouldEqual, 4)
	for k, rec := range recs {
		test.That(t, rec, test.ShouldResemble, []float64{float64(k), float64(10 * k), float64(-k)})
	}
}

func TestFlushOnlyWritesFullBuffers(t *testing.T) {
	l, sink, _, _ := newLog(t, 3)
	l.Trigger()
	l.Trigger()
	test.That(t, l.Flush(), test.ShouldBeNil)
	test.That(t, sink.Len(), test.ShouldEqual, 0)

	test.That(t, l.Finish(), test.ShouldBeNil)
	test.That(t, sink.Len(), test.ShouldEqual, 2)
}

func TestDropsWhenBothBuffersFull(t *testing.T) {
	l, sink, _, tm := newLog(t, 2)
	for k := 0; k < 7; k++ {
		*tm = float64(k)
		l.Trigger()
	}
	test.That(t, l.Triggered(), test.ShouldEqual, uint64(4))
	test.That(t, l.Dropped(), test.ShouldEqual, uint64(3))

	test.That(t, l.Flush(), test.ShouldBeNil)
	recs := sink.Records()
	test.That(t, len(recs), test.ShouldEqual, 4)
	for k, rec := range recs {
		test.That(t, rec[0], test.ShouldEqual, float64(k))
	}

	*tm = 42
	test.That(t, l.Trigger(), test.ShouldBeTrue)
	test.That(t, l.Finish(), test.ShouldBeNil)
	test.That(t, sink.Records()[4][0], test.ShouldEqual, 42.0)
}

func TestSchemaIsFixedAfterInit(t *testing.T) {
	l, _, _, _ := newLog(t, 1)
	err := l.AddField("extra", make([]float64, 1))
	test.That(t, errors.Is(err, robot.ErrSequence), test.ShouldBeTrue)
	err = l.Init(1, NewMemorySink())
	test.That(t, errors.Is(err, robot.ErrSequence), test.ShouldBeTrue)
}

func TestInitValidates(t *testing.T) {
	l := New()
	err := l.Init(10, NewMemorySink())
	test.That(t, errors.Is(err, robot.ErrConfig), test.ShouldBeTrue)

	test.That(t, l.AddField("x", make([]float64, 1)), test.ShouldBeNil)
	err = l.Init(0, NewMemorySink())
	test.That(t, errors.Is(err, robot.ErrConfig), test.ShouldBeTrue)
	test.That(t, l.Trigger(), test.ShouldBeFalse)
}
