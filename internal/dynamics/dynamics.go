package dynamics

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/wamctl/internal/kinematics"
	"github.com/san-kum/wamctl/internal/robot"
	"github.com/san-kum/wamctl/internal/spatial"
)

// LinkParams are the inertial parameters of one moving link, expressed in
// the link's own frame.
type LinkParams struct {
	Mass    float64
	COM     r3.Vector
	Inertia spatial.Mat3
}

// Link carries the per-tick recursive Newton-Euler state of one frame.
// Vectors are expressed in the link's own frame.
type Link struct {
	Mass    float64
	COM     r3.Vector
	Inertia spatial.Mat3

	Omega     r3.Vector
	OmegaPrev r3.Vector
	Alpha     r3.Vector
	A         r3.Vector

	Fnet  r3.Vector
	Tnet  r3.Vector
	F     r3.Vector
	T     r3.Vector
	FNext r3.Vector

	kin  *kinematics.Link
	prev *Link
	next *Link

	comJacobian *mat.Dense
	comJv       mat.Matrix
	comJw       mat.Matrix
}

// Fixed reports whether the frame is a massless fixed frame (base or toolplate).
func (l *Link) Fixed() bool { return !l.kin.Moving() }

// Dynamics evaluates inverse dynamics and the joint-space inertia matrix of
// the chain described by a Kinematics. It reads the kinematic snapshot and
// never writes it.
type Dynamics struct {
	dof   int
	kin   *kinematics.Kinematics
	chain []*Link

	jsim    *mat.Dense
	scratch struct {
		rir *mat.Dense
		tmp *mat.Dense
		acc *mat.Dense
	}
}

// New builds the chain base, links[0..dof-1], toolplate.
func New(kin *kinematics.Kinematics, params []LinkParams) (*Dynamics, error) {
	if kin == nil {
		return nil, errors.Wrap(robot.ErrConfig, "dynamics: nil kinematics")
	}
	dof := kin.DOF()
	if len(params) != dof {
		return nil, errors.Wrapf(robot.ErrConfig, "dynamics: moving is not a list with %d elements", dof)
	}
	for j, p := range params {
		if p.Mass < 0 {
			return nil, errors.Wrapf(robot.ErrConfig, "dynamics: link %d has negative mass %v", j, p.Mass)
		}
	}

	d := &Dynamics{
		dof:   dof,
		kin:   kin,
		chain: make([]*Link, dof+2),
		jsim:  mat.NewDense(dof, dof, nil),
	}
	d.scratch.rir = mat.NewDense(3, 3, nil)
	d.scratch.tmp = mat.NewDense(3, dof, nil)
	d.scratch.acc = mat.NewDense(dof, dof, nil)

	kchain := kin.Chain()
	for i := range d.chain {
		link := &Link{kin: kchain[i]}
		if i >= 1 && i <= dof {
			p := params[i-1]
			link.Mass = p.Mass
			link.COM = p.COM
			link.Inertia = p.Inertia
			link.comJacobian = mat.NewDense(6, dof, nil)
			link.comJv = link.comJacobian.Slice(0, 3, 0, dof)
			link.comJw = link.comJacobian.Slice(3, 6, 0, dof)
		}
		d.chain[i] = link
	}
	for i, link := range d.chain {
		if i > 0 {
			link.prev = d.chain[i-1]
		}
		if i < len(d.chain)-1 {
			link.next = d.chain[i+1]
		}
	}
	return d, nil
}

func (d *Dynamics) DOF() int { return d.dof }

func (d *Dynamics) Base() *Link { return d.chain[0] }

// Link returns moving link j, 0-based.
func (d *Dynamics) Link(j int) *Link { return d.chain[j+1] }

func (d *Dynamics) Toolplate() *Link { return d.chain[d.dof+1] }

// SetBaseAcceleration sets the linear acceleration of the base origin,
// expressed in the base frame. The base is inertial by default.
func (d *Dynamics) SetBaseAcceleration(a r3.Vector) {
	d.Base().A = a
}

// SetGravity injects a world-frame gravity vector as an upward fictitious
// acceleration of the base, so EvalInverse includes gravity loading.
func (d *Dynamics) SetGravity(g r3.Vector) {
	d.Base().A = d.kin.Base().RotToWorld.TMulVec(g.Mul(-1))
}

// EvalInverse computes the joint torques required to produce qdd at qd for
// the current kinematic snapshot. Results are written into tau. Nothing is
// clamped; NaN in means NaN out.
func (d *Dynamics) EvalInverse(qd, qdd, tau []float64) error {
	if len(qd) != d.dof || len(qdd) != d.dof || len(tau) != d.dof {
		return errors.Wrapf(robot.ErrDimensionMismatch, "dynamics: inverse needs %d-vectors", d.dof)
	}

	for j := 0; j < d.dof; j++ {
		d.Link(j).forward(qd[j], qdd[j])
	}
	d.Toolplate().forwardFixed()

	d.Toolplate().backwardFixed()
	for j := d.dof - 1; j >= 0; j-- {
		tau[j] = d.Link(j).backward()
	}
	d.Base().backwardFixed()
	return nil
}

func (l *Link) forward(vel, acc float64) {
	r := l.kin.RotToPrev
	z := l.kin.PrevAxisZ
	prev := l.prev

	l.OmegaPrev = r.TMulVec(prev.Omega)
	l.Omega = l.OmegaPrev.Add(z.Mul(vel))

	l.Alpha = r.TMulVec(prev.Alpha).
		Add(z.Mul(acc)).
		Add(l.OmegaPrev.Cross(z.Mul(vel)))

	l.A = r.TMulVec(prev.acceleratePoint(l.kin.PrevOrigin))
}

func (l *Link) forwardFixed() {
	r := l.kin.RotToPrev
	prev := l.prev

	l.OmegaPrev = r.TMulVec(prev.Omega)
	l.Omega = l.OmegaPrev
	l.Alpha = r.TMulVec(prev.Alpha)
	l.A = r.TMulVec(prev.acceleratePoint(l.kin.PrevOrigin))
}

// acceleratePoint returns a + α×p + ω×(ω×p) in this link's frame.
func (l *Link) acceleratePoint(p r3.Vector) r3.Vector {
	return l.A.Add(l.Alpha.Cross(p)).Add(l.Omega.Cross(l.Omega.Cross(p)))
}

func (l *Link) backward() float64 {
	l.Fnet = l.acceleratePoint(l.COM).Mul(l.Mass)

	iw := l.Inertia.MulVec(l.Omega)
	l.Tnet = l.Inertia.MulVec(l.Alpha).Add(l.Omega.Cross(iw))

	l.F = l.Fnet
	l.T = l.Tnet.Add(l.COM.Cross(l.Fnet))
	l.addNext()

	return l.kin.PrevAxisZ.Dot(l.T)
}

func (l *Link) backwardFixed() {
	l.Fnet = r3.Vector{}
	l.Tnet = r3.Vector{}
	l.F = r3.Vector{}
	l.T = r3.Vector{}
	l.addNext()
}

func (l *Link) addNext() {
	l.FNext = r3.Vector{}
	if l.next == nil {
		return
	}
	rn := l.next.kin.RotToPrev
	l.FNext = rn.MulVec(l.next.F)
	l.F = l.F.Add(l.FNext)
	l.T = l.T.Add(rn.MulVec(l.next.T)).Add(l.next.kin.PrevOrigin.Cross(l.FNext))
}

// EvalJSIM computes the joint-space inertia matrix for the current
// kinematic snapshot and returns it. The returned matrix is owned by d and
// overwritten by the next call.
func (d *Dynamics) EvalJSIM() *mat.Dense {
	d.jsim.Zero()
	for j := 0; j < d.dof; j++ {
		link := d.Link(j)
		rw := link.kin.RotToWorld

		com := link.kin.Origin.Add(rw.MulVec(link.COM))
		d.kin.EvalJacobian(j+1, com, link.comJacobian)

		d.scratch.acc.Mul(link.comJv.T(), link.comJv)
		d.scratch.acc.Scale(link.Mass, d.scratch.acc)
		d.jsim.Add(d.jsim, d.scratch.acc)

		world := rw.Similar(link.Inertia)
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				d.scratch.rir.Set(r, c, world[r][c])
			}
		}
		d.scratch.tmp.Mul(d.scratch.rir, link.comJw)
		d.scratch.acc.Mul(link.comJw.T(), d.scratch.tmp)
		d.jsim.Add(d.jsim, d.scratch.acc)
	}
	return d.jsim
}

// JSIM returns the matrix computed by the last EvalJSIM.
func (d *Dynamics) JSIM() *mat.Dense { return d.jsim }

// ComJacobian returns the 6×DOF Jacobian at link j's center of mass from
// the last EvalJSIM.
func (d *Dynamics) ComJacobian(j int) *mat.Dense { return d.Link(j).comJacobian }
