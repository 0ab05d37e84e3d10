// Package gravity computes the gravity-only joint torques of a serial arm
// from per-link first mass moments.
package gravity

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/san-kum/wamctl/internal/kinematics"
	"github.com/san-kum/wamctl/internal/robot"
)

// StandardGravity is the default world gravity vector.
var StandardGravity = r3.Vector{Z: -9.805}

// Compensator adds holding torques for the current pose. Each mu is a
// link's mass times its center of mass, in the link frame, usually
// identified offline.
type Compensator struct {
	kin     *kinematics.Kinematics
	mus     []r3.Vector
	worldG  r3.Vector
	torques []r3.Vector
}

// New fails closed: every link needs a 3-element mu.
func New(kin *kinematics.Kinematics, mus [][]float64) (*Compensator, error) {
	if kin == nil {
		return nil, errors.Wrap(robot.ErrConfig, "gravity: nil kinematics")
	}
	if len(mus) != kin.DOF() {
		return nil, errors.Wrapf(robot.ErrConfig, "gravity: mus has %d entries, want %d", len(mus), kin.DOF())
	}
	c := &Compensator{
		kin:     kin,
		mus:     make([]r3.Vector, len(mus)),
		worldG:  StandardGravity,
		torques: make([]r3.Vector, len(mus)),
	}
	for j, mu := range mus {
		if len(mu) != 3 {
			return nil, errors.Wrapf(robot.ErrConfig, "gravity: mu %d has %d elements, want 3", j, len(mu))
		}
		c.mus[j] = r3.Vector{X: mu[0], Y: mu[1], Z: mu[2]}
	}
	return c, nil
}

func (c *Compensator) SetWorldGravity(g r3.Vector) { c.worldG = g }

func (c *Compensator) WorldGravity() r3.Vector { return c.worldG }

// Mu returns link j's first mass moment.
func (c *Compensator) Mu(j int) r3.Vector { return c.mus[j] }

// Eval adds the gravity torque of each joint into tau. It sweeps from the
// last link to the first and does not depend on velocity.
func (c *Compensator) Eval(tau []float64) {
	dof := c.kin.DOF()
	for j := dof - 1; j >= 0; j-- {
		link := c.kin.Link(j)
		g := link.RotToWorld.TMulVec(c.worldG)
		t := g.Cross(c.mus[j])
		if j < dof-1 {
			t = t.Add(c.kin.Link(j + 1).RotToPrev.MulVec(c.torques[j+1]))
		}
		c.torques[j] = t
		tau[j] += link.RotToPrev.MulVec(t).Z
	}
}
