package systems

import (
	"go.uber.org/multierr"

	"github.com/san-kum/wamctl/internal/bus"
	"github.com/san-kum/wamctl/internal/gravity"
	"github.com/san-kum/wamctl/internal/kinematics"
	"github.com/san-kum/wamctl/internal/robot"
	"github.com/san-kum/wamctl/internal/spatial"
)

// BusSource reads joint feedback once per cycle.
type BusSource struct {
	Base
	Position *Output[[]float64]
	Velocity *Output[[]float64]
	bus      bus.Bus
	pos, vel []float64
}

func NewBusSource(name string, b bus.Bus) *BusSource {
	s := &BusSource{bus: b, pos: make([]float64, b.DOF()), vel: make([]float64, b.DOF())}
	s.Init(s, name)
	s.Position = NewOutput[[]float64](&s.Base)
	s.Velocity = NewOutput[[]float64](&s.Base)
	return s
}

func (s *BusSource) Operate() {
	if err := s.bus.Update(s.pos, s.vel); err != nil {
		s.Fail(err)
		s.InvalidateOutputs()
		return
	}
	s.Position.SetValue(s.pos)
	s.Velocity.SetValue(s.vel)
}

// BusSink writes joint torques. An undefined input writes nothing.
type BusSink struct {
	Base
	Torque *Input[[]float64]
	bus    bus.Bus
}

func NewBusSink(name string, b bus.Bus) *BusSink {
	s := &BusSink{bus: b}
	s.Init(s, name)
	s.Torque = NewInput[[]float64](&s.Base)
	return s
}

func (s *BusSink) Operate() {
	if err := s.bus.SetTorque(s.Torque.MustValue()); err != nil {
		s.Fail(err)
	}
}

// KinematicsBase runs forward kinematics and publishes the evaluated
// chain for the systems that need poses or Jacobians.
type KinematicsBase struct {
	Base
	Position   *Input[[]float64]
	Velocity   *Input[[]float64]
	Kinematics *Output[*kinematics.Kinematics]
	kin        *kinematics.Kinematics
}

func NewKinematicsBase(name string, kin *kinematics.Kinematics) *KinematicsBase {
	k := &KinematicsBase{kin: kin}
	k.Init(k, name)
	k.Position = NewInput[[]float64](&k.Base)
	k.Velocity = NewInput[[]float64](&k.Base)
	k.Kinematics = NewOutput[*kinematics.Kinematics](&k.Base)
	return k
}

func (k *KinematicsBase) Operate() {
	if err := k.kin.Eval(k.Position.MustValue(), k.Velocity.MustValue()); err != nil {
		k.Fail(err)
		k.InvalidateOutputs()
		return
	}
	k.Kinematics.SetValue(k.kin)
}

// ToolPosition outputs the tool origin in the world frame.
type ToolPosition struct {
	Base
	Kinematics *Input[*kinematics.Kinematics]
	Output     *Output[[]float64]
	buf        []float64
}

func NewToolPosition(name string) *ToolPosition {
	t := &ToolPosition{buf: make([]float64, 3)}
	t.Init(t, name)
	t.Kinematics = NewInput[*kinematics.Kinematics](&t.Base)
	t.Output = NewOutput[[]float64](&t.Base)
	return t
}

func (t *ToolPosition) Operate() {
	spatial.PutVec(t.buf, t.Kinematics.MustValue().ToolPosition())
	t.Output.SetValue(t.buf)
}

// ToolOrientation outputs the tool orientation as a (w, x, y, z) quaternion.
type ToolOrientation struct {
	Base
	Kinematics *Input[*kinematics.Kinematics]
	Output     *Output[[]float64]
	buf        []float64
}

func NewToolOrientation(name string) *ToolOrientation {
	t := &ToolOrientation{buf: make([]float64, 4)}
	t.Init(t, name)
	t.Kinematics = NewInput[*kinematics.Kinematics](&t.Base)
	t.Output = NewOutput[[]float64](&t.Base)
	return t
}

func (t *ToolOrientation) Operate() {
	spatial.PutQuat(t.buf, spatial.RotToQuat(t.Kinematics.MustValue().ToolRotation()))
	t.Output.SetValue(t.buf)
}

// GravityCompensator outputs the joint torques that hold the arm still.
type GravityCompensator struct {
	Base
	Kinematics *Input[*kinematics.Kinematics]
	Output     *Output[[]float64]
	grav       *gravity.Compensator
	buf        []float64
}

func NewGravityCompensator(name string, grav *gravity.Compensator, dof int) *GravityCompensator {
	g := &GravityCompensator{grav: grav, buf: make([]float64, dof)}
	g.Init(g, name)
	g.Kinematics = NewInput[*kinematics.Kinematics](&g.Base)
	g.Output = NewOutput[[]float64](&g.Base)
	return g
}

func (g *GravityCompensator) Operate() {
	for i := range g.buf {
		g.buf[i] = 0
	}
	g.grav.Eval(g.buf)
	g.Output.SetValue(g.buf)
}

// jacobianTranspose maps a 3-vector at the tool to joint torques through
// one half of the tool Jacobian.
type jacobianTranspose struct {
	Base
	Kinematics *Input[*kinematics.Kinematics]
	Input      *Input[[]float64]
	Output     *Output[[]float64]
	row        int
	buf        []float64
}

func (j *jacobianTranspose) init(self System, name string, row, dof int) {
	j.row = row
	j.buf = make([]float64, dof)
	j.Init(self, name)
	j.Kinematics = NewInput[*kinematics.Kinematics](&j.Base)
	j.Input = NewInput[[]float64](&j.Base)
	j.Output = NewOutput[[]float64](&j.Base)
}

func (j *jacobianTranspose) Operate() {
	in := j.Input.MustValue()
	if err := robot.CheckDOF("tool vector", len(in), 3); err != nil {
		j.Fail(err)
		j.InvalidateOutputs()
		return
	}
	for i := range j.buf {
		j.buf[i] = 0
	}
	j.Kinematics.MustValue().MulJacobianT(j.row, spatial.VecFrom(in), 1, j.buf)
	j.Output.SetValue(j.buf)
}

// ToolForceToJointTorque applies τ = Jvᵀ·F.
type ToolForceToJointTorque struct{ jacobianTranspose }

func NewToolForceToJointTorque(name string, dof int) *ToolForceToJointTorque {
	t := &ToolForceToJointTorque{}
	t.init(t, name, 0, dof)
	return t
}

// ToolTorqueToJointTorque applies τ = Jωᵀ·T.
type ToolTorqueToJointTorque struct{ jacobianTranspose }

func NewToolTorqueToJointTorque(name string, dof int) *ToolTorqueToJointTorque {
	t := &ToolTorqueToJointTorque{}
	t.init(t, name, 3, dof)
	return t
}

// ToolOrientationController drives the tool toward a reference
// quaternion: T = kp·θ − kd·ω, with θ the world-frame rotation vector
// from feedback to reference and ω the tool's angular velocity.
type ToolOrientationController struct {
	Base
	Reference  *Input[[]float64]
	Feedback   *Input[[]float64]
	Kinematics *Input[*kinematics.Kinematics]
	Control    *Output[[]float64]
	kp, kd     float64
	buf        []float64
}

func NewToolOrientationController(name string, kp, kd float64) *ToolOrientationController {
	c := &ToolOrientationController{kp: kp, kd: kd, buf: make([]float64, 3)}
	c.Init(c, name)
	c.Reference = NewInput[[]float64](&c.Base)
	c.Feedback = NewInput[[]float64](&c.Base)
	c.Kinematics = NewInput[*kinematics.Kinematics](&c.Base)
	c.Control = NewOutput[[]float64](&c.Base)
	return c
}

func (c *ToolOrientationController) ReferenceInput() *Input[[]float64] { return c.Reference }
func (c *ToolOrientationController) FeedbackInput() *Input[[]float64]  { return c.Feedback }
func (c *ToolOrientationController) ControlOutput() *Output[[]float64] { return c.Control }

func (c *ToolOrientationController) Operate() {
	ref, fb := c.Reference.MustValue(), c.Feedback.MustValue()
	if err := multierr.Combine(
		robot.CheckDOF("reference quaternion", len(ref), 4),
		robot.CheckDOF("feedback quaternion", len(fb), 4),
	); err != nil {
		c.Fail(err)
		c.InvalidateOutputs()
		return
	}
	qr := spatial.Normalize(spatial.QuatFrom(ref))
	qf := spatial.Normalize(spatial.QuatFrom(fb))
	theta := spatial.AngleAxis(spatial.MulConj(qr, qf))
	w := c.Kinematics.MustValue().ToolAngularVelocity()
	spatial.PutVec(c.buf, theta.Mul(c.kp).Sub(w.Mul(c.kd)))
	c.Control.SetValue(c.buf)
}
