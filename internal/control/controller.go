package control

import "github.com/san-kum/wamctl/internal/robot"

// Space names the coordinates a controller's position and reference live in.
type Space int

const (
	JointSpace Space = iota
	PositionSpace
	PoseSpace
	OrientationSpace
)

func (s Space) String() string {
	switch s {
	case JointSpace:
		return "joint"
	case PositionSpace:
		return "xyz"
	case PoseSpace:
		return "xyz+quat"
	case OrientationSpace:
		return "quat"
	}
	return "unknown"
}

// Controller is a holding controller that adds its effort into a joint
// torque accumulator.
//
// A controller is either idle (no contribution) or holding. Hold captures
// the current position as the reference and clears the integrator. While
// holding, a refgen may write into Reference. Refresh copies live feedback
// into Position and must run once per tick before the refgen and Eval.
type Controller interface {
	Name() string
	Space() Space
	Idle()
	Hold()
	IsHolding() bool
	Refresh()
	Position() []float64
	Reference() []float64
	Eval(tau []float64, t float64)
}

type base struct {
	name      string
	holding   bool
	position  robot.Vector
	reference robot.Vector
}

func newBase(name string, dim int) base {
	return base{
		name:      name,
		position:  robot.NewVector(dim),
		reference: robot.NewVector(dim),
	}
}

func (b *base) Name() string { return b.name }

func (b *base) Idle() { b.holding = false }

func (b *base) IsHolding() bool { return b.holding }

func (b *base) Position() []float64 { return b.position }

func (b *base) Reference() []float64 { return b.reference }

func (b *base) hold(pid *PID) {
	b.reference.CopyFrom(b.position)
	if pid != nil {
		pid.Reset()
	}
	b.holding = true
}
