package control

import (
	"github.com/pkg/errors"

	"github.com/san-kum/wamctl/internal/robot"
)

const NameJoint = "joint"

// Joint is a joint-space PID. The D term acts on joint velocity.
type Joint struct {
	base
	pos, vel []float64
	pid      *PID
	err, out robot.Vector
}

// NewJoint binds to pos and vel, which the caller keeps current.
func NewJoint(pos, vel []float64, gains []Gains) (*Joint, error) {
	if err := robot.CheckDOF("joint velocity", len(vel), len(pos)); err != nil {
		return nil, err
	}
	if len(gains) != len(pos) {
		return nil, errors.Wrapf(robot.ErrConfig, "control: joint gains have %d entries, want %d", len(gains), len(pos))
	}
	pid, err := NewPID(gains)
	if err != nil {
		return nil, err
	}
	n := len(pos)
	return &Joint{
		base: newBase(NameJoint, n),
		pos:  pos,
		vel:  vel,
		pid:  pid,
		err:  robot.NewVector(n),
		out:  robot.NewVector(n),
	}, nil
}

func (c *Joint) Space() Space { return JointSpace }

func (c *Joint) PID() *PID { return c.pid }

func (c *Joint) Refresh() { c.position.CopyFrom(c.pos) }

func (c *Joint) Hold() {
	c.Refresh()
	c.hold(c.pid)
}

func (c *Joint) Eval(tau []float64, t float64) {
	if !c.holding {
		return
	}
	for i := range c.err {
		c.err[i] = c.position[i] - c.reference[i]
	}
	c.pid.Update(c.err, c.vel, t, c.out)
	for i, u := range c.out {
		tau[i] += u
	}
}
