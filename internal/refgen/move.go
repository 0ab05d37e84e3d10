package refgen

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/wamctl/internal/profile"
	"github.com/san-kum/wamctl/internal/robot"
	"github.com/san-kum/wamctl/internal/spline"
)

// Move is a point-to-point trajectory: a two-point arc-length spline timed
// by a trapezoidal velocity profile.
type Move struct {
	lifecycle
	spline  *spline.Spline
	profile *profile.Profile
	dest    []float64
}

// NewMove plans a move from cur to dest. When curVel is non-zero the path
// leaves cur along it and the profile starts at its magnitude.
func NewMove(cur, curVel, dest []float64, vel, acc float64) (*Move, error) {
	if err := robot.CheckDOF("move destination", len(dest), len(cur)); err != nil {
		return nil, err
	}
	if len(cur) == 0 {
		return nil, errors.Wrap(robot.ErrConfig, "move: empty position")
	}
	if curVel != nil {
		if err := robot.CheckDOF("move velocity", len(curVel), len(cur)); err != nil {
			return nil, err
		}
	}

	sp := spline.New(cur, spline.ArcLength)
	if err := sp.Add(dest, 0); err != nil {
		return nil, err
	}
	if err := sp.Init(nil, curVel); err != nil {
		return nil, err
	}

	vInit := 0.0
	if curVel != nil {
		vInit = floats.Norm(curVel, 2)
	}
	length := sp.Length()
	if floats.Distance(cur, dest, 2) == 0 {
		length = 0
	}
	prof, err := profile.New(vel, acc, vInit, length)
	if err != nil {
		return nil, err
	}

	return &Move{
		spline:  sp,
		profile: prof,
		dest:    append([]float64(nil), dest...),
	}, nil
}

func (m *Move) Name() string { return "move" }

func (m *Move) Start() error {
	m.started()
	return nil
}

// Eval reports Finished once t passes the end of the profile, after
// writing the destination into ref.
func (m *Move) Eval(t float64, ref []float64) Status {
	if t > m.profile.Duration() {
		copy(ref, m.dest)
		return m.finish()
	}
	m.evaluating()
	s, _ := m.profile.Eval(t)
	m.spline.Eval(s, ref)
	return Running
}

func (m *Move) TotalTime() float64 { return m.profile.Duration() }

// Destination returns the target position.
func (m *Move) Destination() []float64 { return append([]float64(nil), m.dest...) }

func (m *Move) NumPoints() int { return 2 }
