package metrics

import "math"

// ControlEffort averages the commanded joint torque magnitude. Value is the
// per-tick mean of Σ|τ|; Joint and Peak break it down by joint.
type ControlEffort struct {
	perJoint []float64
	peak     float64
	ticks    int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{}
}

func (*ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(f *Frame) {
	if len(c.perJoint) < len(f.Torque) {
		c.perJoint = append(c.perJoint, make([]float64, len(f.Torque)-len(c.perJoint))...)
	}
	for j, tau := range f.Torque {
		mag := math.Abs(tau)
		c.perJoint[j] += mag
		c.peak = math.Max(c.peak, mag)
	}
	c.ticks++
}

func (c *ControlEffort) Value() float64 {
	var total float64
	for j := range c.perJoint {
		total += c.Joint(j)
	}
	return total
}

// Joint is the mean |τ| of joint j, zero for joints never commanded.
func (c *ControlEffort) Joint(j int) float64 {
	if c.ticks == 0 || j >= len(c.perJoint) {
		return 0
	}
	return c.perJoint[j] / float64(c.ticks)
}

// Peak is the largest single-joint |τ| observed.
func (c *ControlEffort) Peak() float64 { return c.peak }

func (c *ControlEffort) Reset() {
	c.perJoint = c.perJoint[:0]
	c.peak = 0
	c.ticks = 0
}
