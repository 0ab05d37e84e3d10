// Package bus provides the joint I/O devices the control loop talks to.
//
// A real arm sits behind CAN pucks; here the [Sim] plant integrates the
// arm's own rigid-body model, and [Faulty] wraps any [Bus] to inject
// failures in tests.
package bus

import (
	"github.com/pkg/errors"

	"github.com/san-kum/wamctl/internal/robot"
)

// Bus reads joint feedback and writes joint torques.
type Bus interface {
	DOF() int
	Update(pos, vel []float64) error
	SetTorque(tau []float64) error
}

// Faulty fails Update or SetTorque once the call count passes the given
// threshold. A zero threshold never fails.
type Faulty struct {
	Bus
	FailUpdateAfter int
	FailSetAfter    int

	updates, sets int
}

func NewFaulty(inner Bus) *Faulty {
	return &Faulty{Bus: inner}
}

func (f *Faulty) Update(pos, vel []float64) error {
	f.updates++
	if f.FailUpdateAfter > 0 && f.updates > f.FailUpdateAfter {
		return errors.Wrapf(robot.ErrBus, "position read %d failed", f.updates)
	}
	return f.Bus.Update(pos, vel)
}

func (f *Faulty) SetTorque(tau []float64) error {
	f.sets++
	if f.FailSetAfter > 0 && f.sets > f.FailSetAfter {
		return errors.Wrapf(robot.ErrBus, "torque write %d failed", f.sets)
	}
	return f.Bus.SetTorque(tau)
}
