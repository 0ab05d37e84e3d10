package control

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/san-kum/wamctl/internal/kinematics"
	"github.com/san-kum/wamctl/internal/robot"
	"github.com/san-kum/wamctl/internal/spatial"
)

const (
	NameCartesianXYZ  = "cartesian_xyz"
	NameCartesianXYZQ = "cartesian_xyz_q"
	NameOrientation   = "orientation"
)

// RotGains are the scalar rotational stiffness P and angular damping D.
type RotGains struct {
	P float64 `yaml:"p"`
	D float64 `yaml:"d"`
}

func (g RotGains) validate() error {
	if math.IsNaN(g.P) || math.IsInf(g.P, 0) || math.IsNaN(g.D) || math.IsInf(g.D, 0) {
		return errors.Wrap(robot.ErrConfig, "control: rotational gain is not finite")
	}
	return nil
}

func xyzPID(gains []Gains) (*PID, error) {
	if len(gains) != 3 {
		return nil, errors.Wrapf(robot.ErrConfig, "control: cartesian gains have %d entries, want 3", len(gains))
	}
	return NewPID(gains)
}

// evalXYZ runs the translational PID on pos/ref and pushes the resulting
// tool force through Jvᵀ.
func evalXYZ(kin *kinematics.Kinematics, pid *PID, pos, ref []float64, t float64, scratch *[3]float64, tau []float64) {
	var e, v [3]float64
	for i := 0; i < 3; i++ {
		e[i] = pos[i] - ref[i]
	}
	vel := kin.ToolVelocity()
	v[0], v[1], v[2] = vel.X, vel.Y, vel.Z
	pid.Update(e[:], v[:], t, scratch[:])
	kin.MulJacobianT(0, spatial.VecFrom(scratch[:]), 1, tau)
}

// orientationTorque normalizes ref in place and returns the world-frame
// restoring torque -P·angleaxis(pos·ref⁻¹) - D·ω.
func orientationTorque(kin *kinematics.Kinematics, g RotGains, pos, ref []float64) r3.Vector {
	qref := spatial.Normalize(spatial.QuatFrom(ref))
	spatial.PutQuat(ref, qref)
	qerr := spatial.MulConj(spatial.QuatFrom(pos), qref)
	return spatial.AngleAxis(qerr).Mul(-g.P).Sub(kin.ToolAngularVelocity().Mul(g.D))
}

func putPose(dst []float64, kin *kinematics.Kinematics) {
	spatial.PutVec(dst, kin.ToolPosition())
	spatial.PutQuat(dst[3:], spatial.RotToQuat(kin.ToolRotation()))
}

// CartesianXYZ holds the tool position. The D term acts on tool velocity.
type CartesianXYZ struct {
	base
	kin     *kinematics.Kinematics
	pid     *PID
	scratch [3]float64
}

func NewCartesianXYZ(kin *kinematics.Kinematics, gains []Gains) (*CartesianXYZ, error) {
	pid, err := xyzPID(gains)
	if err != nil {
		return nil, err
	}
	return &CartesianXYZ{base: newBase(NameCartesianXYZ, 3), kin: kin, pid: pid}, nil
}

func (c *CartesianXYZ) Space() Space { return PositionSpace }

func (c *CartesianXYZ) PID() *PID { return c.pid }

func (c *CartesianXYZ) Refresh() { spatial.PutVec(c.position, c.kin.ToolPosition()) }

func (c *CartesianXYZ) Hold() {
	c.Refresh()
	c.hold(c.pid)
}

func (c *CartesianXYZ) Eval(tau []float64, t float64) {
	if !c.holding {
		return
	}
	evalXYZ(c.kin, c.pid, c.position, c.reference, t, &c.scratch, tau)
}

// CartesianXYZQ holds the tool pose: position with a per-axis PID and
// orientation, as a (w, x, y, z) quaternion, with RotGains.
type CartesianXYZQ struct {
	base
	kin     *kinematics.Kinematics
	pid     *PID
	rot     RotGains
	scratch [3]float64
}

func NewCartesianXYZQ(kin *kinematics.Kinematics, gains []Gains, rot RotGains) (*CartesianXYZQ, error) {
	pid, err := xyzPID(gains)
	if err != nil {
		return nil, err
	}
	if err := rot.validate(); err != nil {
		return nil, err
	}
	return &CartesianXYZQ{base: newBase(NameCartesianXYZQ, 7), kin: kin, pid: pid, rot: rot}, nil
}

func (c *CartesianXYZQ) Space() Space { return PoseSpace }

func (c *CartesianXYZQ) PID() *PID { return c.pid }

func (c *CartesianXYZQ) RotGains() RotGains { return c.rot }

func (c *CartesianXYZQ) Refresh() { putPose(c.position, c.kin) }

func (c *CartesianXYZQ) Hold() {
	c.Refresh()
	c.hold(c.pid)
}

func (c *CartesianXYZQ) Eval(tau []float64, t float64) {
	if !c.holding {
		return
	}
	evalXYZ(c.kin, c.pid, c.position, c.reference, t, &c.scratch, tau)
	torque := orientationTorque(c.kin, c.rot, c.position[3:], c.reference[3:])
	c.kin.MulJacobianT(3, torque, 1, tau)
}

// Orientation holds only the tool orientation.
type Orientation struct {
	base
	kin *kinematics.Kinematics
	rot RotGains
}

func NewOrientation(kin *kinematics.Kinematics, rot RotGains) (*Orientation, error) {
	if err := rot.validate(); err != nil {
		return nil, err
	}
	return &Orientation{base: newBase(NameOrientation, 4), kin: kin, rot: rot}, nil
}

func (c *Orientation) Space() Space { return OrientationSpace }

func (c *Orientation) RotGains() RotGains { return c.rot }

func (c *Orientation) Refresh() {
	spatial.PutQuat(c.position, spatial.RotToQuat(c.kin.ToolRotation()))
}

func (c *Orientation) Hold() {
	c.Refresh()
	c.hold(nil)
}

func (c *Orientation) Eval(tau []float64, t float64) {
	if !c.holding {
		return
	}
	c.kin.MulJacobianT(3, orientationTorque(c.kin, c.rot, c.position, c.reference), 1, tau)
}
