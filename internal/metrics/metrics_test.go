package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gonum.org/v1/gonum/mat"
)

func TestControlEffort(t *testing.T) {
	c := NewControlEffort()
	if c.Value() != 0 {
		t.Error("empty effort should be zero")
	}
	c.Observe(&Frame{Torque: []float64{1, -2}})
	c.Observe(&Frame{Torque: []float64{0, 1}})
	if got := c.Value(); math.Abs(got-2) > 1e-12 {
		t.Errorf("effort = %v, want 2", got)
	}
	if got := c.Joint(1); math.Abs(got-1.5) > 1e-12 {
		t.Errorf("joint 1 effort = %v, want 1.5", got)
	}
	if c.Peak() != 2 {
		t.Errorf("peak = %v, want 2", c.Peak())
	}
	c.Reset()
	if c.Value() != 0 {
		t.Error("reset should clear")
	}
}

func TestTrackingErrorSkipsIdle(t *testing.T) {
	e := NewTrackingError()
	e.Observe(&Frame{Position: []float64{1}, Reference: []float64{0}})
	if e.Value() != 0 {
		t.Error("idle ticks must not count")
	}
	e.Observe(&Frame{Holding: true, Position: []float64{3, 0}, Reference: []float64{0, 4}})
	e.Observe(&Frame{Holding: true, Position: []float64{0, 0}, Reference: []float64{0, 0}})
	want := math.Sqrt(25.0 / 2)
	if got := e.Value(); math.Abs(got-want) > 1e-12 {
		t.Errorf("rms = %v, want %v", got, want)
	}
	if e.Max() != 5 {
		t.Errorf("max = %v, want 5", e.Max())
	}
}

type fixedInertia struct{ m *mat.Dense }

func (f fixedInertia) EvalJSIM() *mat.Dense { return f.m }

func TestKineticEnergy(t *testing.T) {
	e := NewKineticEnergy(fixedInertia{mat.NewDense(2, 2, []float64{2, 0, 0, 4})})
	e.Observe(&Frame{Velocity: []float64{1, 1}})
	e.Observe(&Frame{Velocity: []float64{0, 0}})
	if got := e.Peak(); math.Abs(got-3) > 1e-12 {
		t.Errorf("peak = %v, want 3", got)
	}
	if got := e.Value(); math.Abs(got-1.5) > 1e-12 {
		t.Errorf("mean = %v, want 1.5", got)
	}
}

func TestLoopStats(t *testing.T) {
	s := NewLoopStats(4, 2*time.Millisecond)
	if s.Summary().Count != 0 {
		t.Fatal("fresh stats should be empty")
	}
	for _, d := range []time.Duration{time.Millisecond, 3 * time.Millisecond, time.Millisecond, time.Millisecond, time.Millisecond} {
		s.Add(d)
	}
	sum := s.Summary()
	if sum.Count != 5 || sum.Overruns != 1 {
		t.Errorf("count/overruns = %d/%d, want 5/1", sum.Count, sum.Overruns)
	}
	// The ring keeps the last four samples: 3ms, 1ms, 1ms, 1ms.
	if math.Abs(sum.Max-0.003) > 1e-12 || math.Abs(sum.Min-0.001) > 1e-12 {
		t.Errorf("min/max = %v/%v", sum.Min, sum.Max)
	}
	if math.Abs(sum.Mean-0.0015) > 1e-12 {
		t.Errorf("mean = %v, want 0.0015", sum.Mean)
	}
}

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectors(reg)
	c.Ticks.Inc()
	c.SetActive([]string{"joint", "orientation"}, "orientation")
	if got := testutil.ToFloat64(c.Ticks); got != 1 {
		t.Errorf("ticks = %v", got)
	}
	if got := testutil.ToFloat64(c.ActiveController.WithLabelValues("orientation")); got != 1 {
		t.Errorf("orientation gauge = %v", got)
	}
	if got := testutil.ToFloat64(c.ActiveController.WithLabelValues("joint")); got != 0 {
		t.Errorf("joint gauge = %v", got)
	}
	obs := c.Stages([]string{"update", "control"})
	obs[1].Observe(1e-5)
	if n := testutil.CollectAndCount(c.StageDuration); n != 2 {
		t.Errorf("stage series = %d, want 2", n)
	}
}
