package metrics

// Frame is one control tick as seen by observers. Position and Reference
// are in the active controller's space; Velocity and Torque are per joint.
// The slices are views into loop state and are only valid during Observe.
type Frame struct {
	Time       float64
	Position   []float64
	Velocity   []float64
	Torque     []float64
	Reference  []float64
	Controller string
	Holding    bool
}

// Metric accumulates a scalar figure over the ticks it observes.
type Metric interface {
	Name() string
	Observe(f *Frame)
	Value() float64
	Reset()
}
