// Package profile implements the trapezoidal velocity law used to time a
// path: accelerate to a cruise velocity, cruise, then decelerate to rest.
package profile

import (
	"math"

	"github.com/pkg/errors"

	"github.com/san-kum/wamctl/internal/robot"
)

type Phase int

const (
	PhaseBefore Phase = iota
	PhaseRampUp
	PhasePlateau
	PhaseRampDown
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseBefore:
		return "before"
	case PhaseRampUp:
		return "ramp-up"
	case PhasePlateau:
		return "plateau"
	case PhaseRampDown:
		return "ramp-down"
	default:
		return "done"
	}
}

// Profile maps elapsed time to distance along a path of fixed length,
// starting at velocity vInit and ending at rest.
type Profile struct {
	vel   float64
	acc   float64
	vInit float64

	timeEndUp     float64
	sEndUp        float64
	timeStartDown float64
	sStartDown    float64
	timeEnd       float64
	sEnd          float64
	vTop          float64
}

// New plans the profile. When the path is too short to stop from vInit at
// acc, the deceleration is raised so the profile still ends exactly at
// length; when it is too short to reach vel, the plateau is dropped.
func New(vel, acc, vInit, length float64) (*Profile, error) {
	if vel <= 0 || acc <= 0 {
		return nil, errors.Wrapf(robot.ErrConfig, "profile: vel and acc must be positive, got %v and %v", vel, acc)
	}
	if length < 0 || math.IsNaN(length) {
		return nil, errors.Wrapf(robot.ErrConfig, "profile: invalid length %v", length)
	}
	vInit = math.Abs(vInit)

	p := &Profile{vel: vel, acc: acc, vInit: vInit}

	if length < 0.5*vInit*vInit/acc {
		p.timeEnd = 2 * length / vInit
		p.sEnd = length
		p.vTop = vInit
		if p.timeEnd > 0 {
			p.acc = vInit / p.timeEnd
		}
		return p, nil
	}

	if length < (vel*vel-0.5*vInit*vInit)/acc {
		p.vTop = math.Sqrt(length*acc + 0.5*vInit*vInit)
		p.timeEndUp = (p.vTop - vInit) / acc
		p.sEndUp = vInit*p.timeEndUp + 0.5*acc*p.timeEndUp*p.timeEndUp
		p.timeStartDown = p.timeEndUp
		p.sStartDown = p.sEndUp
		p.timeEnd = p.timeStartDown + p.vTop/acc
		p.sEnd = length
		return p, nil
	}

	p.vTop = vel
	p.timeEndUp = math.Abs(vel-vInit) / acc
	p.sEndUp = p.timeEndUp * (vel + vInit) / 2
	p.sStartDown = length - 0.5*vel*vel/acc
	p.timeStartDown = p.timeEndUp + (p.sStartDown-p.sEndUp)/vel
	p.sEnd = length
	p.timeEnd = p.timeStartDown + vel/acc
	return p, nil
}

// Eval returns the distance travelled at time t.
func (p *Profile) Eval(t float64) (float64, Phase) {
	switch {
	case t < 0:
		return 0, PhaseBefore
	case t < p.timeEndUp:
		s := p.vInit * t
		if p.vInit < p.vel {
			s += 0.5 * p.acc * t * t
		} else {
			s -= 0.5 * p.acc * t * t
		}
		return s, PhaseRampUp
	case t < p.timeStartDown:
		return p.sEndUp + p.vel*(t-p.timeEndUp), PhasePlateau
	case t < p.timeEnd:
		dt := t - p.timeEnd
		return p.sEnd - 0.5*p.acc*dt*dt, PhaseRampDown
	default:
		return p.sEnd, PhaseDone
	}
}

// Velocity returns ds/dt at time t.
func (p *Profile) Velocity(t float64) float64 {
	switch {
	case t < 0:
		return 0
	case t < p.timeEndUp:
		if p.vInit < p.vel {
			return p.vInit + p.acc*t
		}
		return p.vInit - p.acc*t
	case t < p.timeStartDown:
		return p.vel
	case t < p.timeEnd:
		return p.acc * (p.timeEnd - t)
	default:
		return 0
	}
}

// Duration is the time at which the profile comes to rest.
func (p *Profile) Duration() float64 { return p.timeEnd }

func (p *Profile) Length() float64 { return p.sEnd }

// PeakVelocity is the highest speed reached.
func (p *Profile) PeakVelocity() float64 { return math.Max(p.vTop, p.vInit) }

// Acceleration is the effective acceleration, which may exceed the
// requested one in the decelerate-only case.
func (p *Profile) Acceleration() float64 { return p.acc }
