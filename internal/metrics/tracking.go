package metrics

import "math"

// TrackingError is the RMS of position − reference over ticks where the
// controller is holding and works in joint space.
type TrackingError struct {
	name    string
	sumSq   float64
	samples int
	max     float64
}

func NewTrackingError() *TrackingError {
	return &TrackingError{
		name: "tracking_error",
	}
}

func (e *TrackingError) Name() string {
	return e.name
}

func (e *TrackingError) Observe(f *Frame) {
	if !f.Holding || len(f.Reference) != len(f.Position) {
		return
	}
	var sq float64
	for i, p := range f.Position {
		d := p - f.Reference[i]
		sq += d * d
	}
	e.sumSq += sq
	e.max = math.Max(e.max, math.Sqrt(sq))
	e.samples++
}

func (e *TrackingError) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return math.Sqrt(e.sumSq / float64(e.samples))
}

// Max is the largest per-tick error norm seen.
func (e *TrackingError) Max() float64 { return e.max }

func (e *TrackingError) Reset() {
	e.sumSq = 0
	e.samples = 0
	e.max = 0
}
