package bus

import (
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/wamctl/internal/config"
	"github.com/san-kum/wamctl/internal/dynamics"
	"github.com/san-kum/wamctl/internal/integrators"
	"github.com/san-kum/wamctl/internal/kinematics"
	"github.com/san-kum/wamctl/internal/robot"
)

// Sim is a simulated arm. Each SetTorque holds the torque for one loop
// period and advances the plant
//
//	M(q) q̈ = τ − c(q, q̇) − g(q) − b q̇
//
// with its own kinematics and dynamics instances.
type Sim struct {
	mu sync.Mutex

	dof      int
	kin      *kinematics.Kinematics
	dyn      *dynamics.Dynamics
	integ    integrators.Integrator
	damping  float64
	dt       float64
	substeps int

	x    robot.Vector
	tau  robot.Vector
	t    float64
	fail error

	zero robot.Vector
	bias robot.Vector
	rhs  *mat.VecDense
	qdd  *mat.VecDense
	lu   mat.LU
}

// NewSim builds the plant from cfg, starting at rest at cfg.Home.
func NewSim(cfg *config.Config) (*Sim, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kin, err := kinematics.New(cfg.KinematicsConfig())
	if err != nil {
		return nil, err
	}
	dyn, err := dynamics.New(kin, cfg.LinkParams())
	if err != nil {
		return nil, err
	}
	dyn.SetGravity(cfg.WorldGravity())
	integ, err := integrators.New(cfg.Sim.Integrator)
	if err != nil {
		return nil, err
	}

	n := cfg.DOF
	s := &Sim{
		dof:      n,
		kin:      kin,
		dyn:      dyn,
		integ:    integ,
		damping:  cfg.Sim.Damping,
		dt:       cfg.Period.Seconds() / float64(cfg.Sim.Substeps),
		substeps: cfg.Sim.Substeps,
		x:        robot.NewVector(2 * n),
		tau:      robot.NewVector(n),
		zero:     robot.NewVector(n),
		bias:     robot.NewVector(n),
		rhs:      mat.NewVecDense(n, nil),
		qdd:      mat.NewVecDense(n, nil),
	}
	copy(s.x, cfg.Home)
	return s, nil
}

func (s *Sim) DOF() int { return s.dof }

func (s *Sim) Update(pos, vel []float64) error {
	if len(pos) != s.dof || len(vel) != s.dof {
		return errors.Wrapf(robot.ErrDimensionMismatch, "bus: feedback needs %d-vectors", s.dof)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	copy(pos, s.x[:s.dof])
	copy(vel, s.x[s.dof:])
	return nil
}

func (s *Sim) SetTorque(tau []float64) error {
	if len(tau) != s.dof {
		return errors.Wrapf(robot.ErrDimensionMismatch, "bus: torque needs %d entries", s.dof)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.tau.CopyFrom(tau)
	for i := 0; i < s.substeps; i++ {
		s.integ.Step(s, s.x, s.tau, s.t, s.dt)
		s.t += s.dt
		if s.fail != nil {
			return s.fail
		}
	}
	if !s.x.IsValid() {
		s.fail = errors.Wrap(robot.ErrInvalidState, "bus: simulated state diverged")
		return s.fail
	}
	return nil
}

// Derive implements integrators.Plant over x = [q, q̇].
func (s *Sim) Derive(x, u robot.Vector, t float64, dx robot.Vector) {
	n := s.dof
	q, qd := x[:n], x[n:]
	if err := s.kin.Eval(q, qd); err != nil {
		s.fail = err
		return
	}
	if err := s.dyn.EvalInverse(qd, s.zero, s.bias); err != nil {
		s.fail = err
		return
	}
	for i := 0; i < n; i++ {
		s.rhs.SetVec(i, u[i]-s.bias[i]-s.damping*qd[i])
	}
	s.lu.Factorize(s.dyn.EvalJSIM())
	if err := s.lu.SolveVecTo(s.qdd, false, s.rhs); err != nil {
		s.fail = errors.Wrap(robot.ErrBus, "bus: singular inertia matrix")
		return
	}
	copy(dx[:n], qd)
	for i := 0; i < n; i++ {
		dx[n+i] = s.qdd.AtVec(i)
	}
}

// SetState places the arm at q with velocity qd and clears any failure.
func (s *Sim) SetState(q, qd []float64) error {
	if len(q) != s.dof || len(qd) != s.dof {
		return errors.Wrapf(robot.ErrDimensionMismatch, "bus: state needs %d-vectors", s.dof)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.x, q)
	copy(s.x[s.dof:], qd)
	s.fail = nil
	return nil
}

// Time is the simulated time since construction.
func (s *Sim) Time() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t
}

// Torque returns the last applied torque.
func (s *Sim) Torque() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tau.Clone()
}
