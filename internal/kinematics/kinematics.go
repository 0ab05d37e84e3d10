package kinematics

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/wamctl/internal/robot"
	"github.com/san-kum/wamctl/internal/spatial"
)

// DH holds Denavit-Hartenberg parameters in Spong's convention. Angles are
// given in units of π. For a moving link ThetaPi is an offset added to the
// joint position.
type DH struct {
	AlphaPi float64
	ThetaPi float64
	A       float64
	D       float64
}

type Config struct {
	DOF          int
	BaseRotation spatial.Mat3
	BaseOrigin   r3.Vector
	Moving       []DH
	Toolplate    DH
}

// DefaultConfig returns a config with an identity base and zero DH rows.
func DefaultConfig(dof int) Config {
	return Config{
		DOF:          dof,
		BaseRotation: spatial.Identity(),
		Moving:       make([]DH, dof),
	}
}

// Link is one frame of the chain. Consumers treat every field as read-only;
// Kinematics.Eval is the sole writer.
type Link struct {
	moving      bool
	alpha       float64
	thetaOffset float64
	theta       float64
	a, d        float64
	cosAlpha    float64
	sinAlpha    float64

	// RotToPrev rotates vectors in this frame into the previous frame.
	RotToPrev spatial.Mat3
	// PrevOrigin is this frame's origin expressed in the previous frame.
	PrevOrigin r3.Vector
	// PrevAxisZ is the previous frame's z axis (this link's joint axis)
	// expressed in this frame.
	PrevAxisZ r3.Vector

	RotToWorld spatial.Mat3
	Origin     r3.Vector
	AxisZ      r3.Vector
}

// Moving reports whether the frame is driven by a joint.
func (l *Link) Moving() bool { return l.moving }

// Theta returns the current DH joint angle, offset included.
func (l *Link) Theta() float64 { return l.theta }

func (l *Link) evalToPrev() {
	c, s := math.Cos(l.theta), math.Sin(l.theta)
	l.RotToPrev = spatial.Mat3{
		{c, -s * l.cosAlpha, s * l.sinAlpha},
		{s, c * l.cosAlpha, -c * l.sinAlpha},
		{0, l.sinAlpha, l.cosAlpha},
	}
	l.PrevOrigin = r3.Vector{X: c * l.a, Y: s * l.a, Z: l.d}
	l.PrevAxisZ = l.RotToPrev.Row(2)
}

func (l *Link) evalToWorld(prev *Link) {
	l.RotToWorld = prev.RotToWorld.Mul(l.RotToPrev)
	l.Origin = prev.Origin.Add(prev.RotToWorld.MulVec(l.PrevOrigin))
	l.AxisZ = l.RotToWorld.Col(2)
}

// Kinematics evaluates forward kinematics and the tool Jacobian for a
// serial chain of revolute joints: base, DOF moving links, the toolplate,
// and the tool.
type Kinematics struct {
	dof   int
	chain []*Link

	jacobian *mat.Dense
	jv, jw   mat.Matrix

	toolVel    r3.Vector
	toolAngVel r3.Vector
}

func New(cfg Config) (*Kinematics, error) {
	if cfg.DOF < 1 {
		return nil, errors.Wrapf(robot.ErrConfig, "kinematics: dof must be positive, got %d", cfg.DOF)
	}
	if len(cfg.Moving) != cfg.DOF {
		return nil, errors.Wrapf(robot.ErrConfig, "kinematics: moving is not a list with %d elements", cfg.DOF)
	}
	if cfg.BaseRotation == (spatial.Mat3{}) {
		cfg.BaseRotation = spatial.Identity()
	}

	k := &Kinematics{
		dof:      cfg.DOF,
		chain:    make([]*Link, cfg.DOF+3),
		jacobian: mat.NewDense(6, cfg.DOF, nil),
	}
	k.jv = k.jacobian.Slice(0, 3, 0, cfg.DOF)
	k.jw = k.jacobian.Slice(3, 6, 0, cfg.DOF)

	base := &Link{RotToPrev: cfg.BaseRotation, PrevOrigin: cfg.BaseOrigin}
	base.PrevAxisZ = base.RotToPrev.Row(2)
	base.RotToWorld = base.RotToPrev
	base.Origin = base.PrevOrigin
	base.AxisZ = base.RotToWorld.Col(2)
	k.chain[0] = base

	for j, dh := range cfg.Moving {
		k.chain[j+1] = newDHLink(dh, true)
	}

	toolplate := newDHLink(cfg.Toolplate, false)
	toolplate.theta = toolplate.thetaOffset
	toolplate.evalToPrev()
	k.chain[cfg.DOF+1] = toolplate

	tool := &Link{RotToPrev: spatial.Identity()}
	tool.PrevAxisZ = tool.RotToPrev.Row(2)
	k.chain[cfg.DOF+2] = tool

	zero := make([]float64, cfg.DOF)
	if err := k.Eval(zero, zero); err != nil {
		return nil, err
	}
	return k, nil
}

func newDHLink(dh DH, moving bool) *Link {
	alpha := dh.AlphaPi * math.Pi
	return &Link{
		moving:      moving,
		alpha:       alpha,
		thetaOffset: dh.ThetaPi * math.Pi,
		a:           dh.A,
		d:           dh.D,
		cosAlpha:    math.Cos(alpha),
		sinAlpha:    math.Sin(alpha),
	}
}

// SetTool places the tool frame relative to the toolplate. Call it outside
// the control loop; the next Eval picks it up.
func (k *Kinematics) SetTool(rot spatial.Mat3, offset r3.Vector) {
	tool := k.Tool()
	tool.RotToPrev = rot
	tool.PrevOrigin = offset
	tool.PrevAxisZ = rot.Row(2)
}

// Eval refreshes every transform from the joint positions, then the tool
// Jacobian and tool velocity. It does not allocate.
func (k *Kinematics) Eval(q, qd []float64) error {
	if len(q) != k.dof || len(qd) != k.dof {
		return errors.Wrapf(robot.ErrDimensionMismatch, "kinematics: got %d positions and %d velocities for %d joints", len(q), len(qd), k.dof)
	}

	for j := 0; j < k.dof; j++ {
		link := k.chain[j+1]
		link.theta = q[j] + link.thetaOffset
		link.evalToPrev()
		link.evalToWorld(k.chain[j])
	}
	k.Toolplate().evalToWorld(k.chain[k.dof])
	k.Tool().evalToWorld(k.Toolplate())

	k.EvalJacobian(k.dof, k.Tool().Origin, k.jacobian)

	var v, w r3.Vector
	for j := 0; j < k.dof; j++ {
		v.X += k.jacobian.At(0, j) * qd[j]
		v.Y += k.jacobian.At(1, j) * qd[j]
		v.Z += k.jacobian.At(2, j) * qd[j]
		w.X += k.jacobian.At(3, j) * qd[j]
		w.Y += k.jacobian.At(4, j) * qd[j]
		w.Z += k.jacobian.At(5, j) * qd[j]
	}
	k.toolVel = v
	k.toolAngVel = w
	return nil
}

// EvalJacobian writes into jac (6×DOF) the geometric Jacobian of a world
// point that moves with link limit-1. Columns at or past limit are zero.
func (k *Kinematics) EvalJacobian(limit int, point r3.Vector, jac *mat.Dense) {
	for j := 0; j < k.dof; j++ {
		if j >= limit {
			for r := 0; r < 6; r++ {
				jac.Set(r, j, 0)
			}
			continue
		}
		frame := k.chain[j]
		jv := frame.AxisZ.Cross(point.Sub(frame.Origin))
		jac.Set(0, j, jv.X)
		jac.Set(1, j, jv.Y)
		jac.Set(2, j, jv.Z)
		jac.Set(3, j, frame.AxisZ.X)
		jac.Set(4, j, frame.AxisZ.Y)
		jac.Set(5, j, frame.AxisZ.Z)
	}
}

func (k *Kinematics) DOF() int { return k.dof }

func (k *Kinematics) Base() *Link { return k.chain[0] }

// Link returns moving link j, 0-based.
func (k *Kinematics) Link(j int) *Link { return k.chain[j+1] }

func (k *Kinematics) Toolplate() *Link { return k.chain[k.dof+1] }

func (k *Kinematics) Tool() *Link { return k.chain[k.dof+2] }

// Chain returns every frame from base to tool.
func (k *Kinematics) Chain() []*Link { return k.chain }

func (k *Kinematics) ToolPosition() r3.Vector { return k.Tool().Origin }

func (k *Kinematics) ToolRotation() spatial.Mat3 { return k.Tool().RotToWorld }

func (k *Kinematics) ToolVelocity() r3.Vector { return k.toolVel }

func (k *Kinematics) ToolAngularVelocity() r3.Vector { return k.toolAngVel }

// Jacobian is the 6×DOF tool Jacobian, linear rows first.
func (k *Kinematics) Jacobian() *mat.Dense { return k.jacobian }

// JacobianLinear is a 3×DOF view into the top of Jacobian.
func (k *Kinematics) JacobianLinear() mat.Matrix { return k.jv }

// JacobianAngular is a 3×DOF view into the bottom of Jacobian.
func (k *Kinematics) JacobianAngular() mat.Matrix { return k.jw }

// MulJacobianT adds scale·Jᵀ·f into tau using rows [row, row+3) of the
// tool Jacobian.
func (k *Kinematics) MulJacobianT(row int, f r3.Vector, scale float64, tau []float64) {
	for j := 0; j < k.dof; j++ {
		tau[j] += scale * (k.jacobian.At(row, j)*f.X + k.jacobian.At(row+1, j)*f.Y + k.jacobian.At(row+2, j)*f.Z)
	}
}
