package systems

import (
	"math"

	"github.com/pkg/errors"

	"github.com/san-kum/wamctl/internal/control"
	"github.com/san-kum/wamctl/internal/robot"
)

// PIDController is a discrete per-axis PID on reference minus feedback.
// The integrator advances with the previous cycle's error, and the
// derivative is a backward difference over the manager's period. Without
// a manager the period is zero and only the proportional term acts.
type PIDController struct {
	Base
	Reference *Input[[]float64]
	Feedback  *Input[[]float64]
	Control   *Output[[]float64]

	gains      []control.Gains
	ctrlLimit  []float64
	err        []float64
	errPrev    []float64
	integrator []float64
	out        []float64
}

func NewPIDController(name string, gains []control.Gains) (*PIDController, error) {
	if _, err := control.NewPID(gains); err != nil {
		return nil, err
	}
	n := len(gains)
	p := &PIDController{
		gains:      append([]control.Gains(nil), gains...),
		ctrlLimit:  make([]float64, n),
		err:        make([]float64, n),
		errPrev:    make([]float64, n),
		integrator: make([]float64, n),
		out:        make([]float64, n),
	}
	p.Init(p, name)
	p.Reference = NewInput[[]float64](&p.Base)
	p.Feedback = NewInput[[]float64](&p.Base)
	p.Control = NewOutput[[]float64](&p.Base)
	return p, nil
}

func (p *PIDController) ReferenceInput() *Input[[]float64] { return p.Reference }
func (p *PIDController) FeedbackInput() *Input[[]float64]  { return p.Feedback }
func (p *PIDController) ControlOutput() *Output[[]float64] { return p.Control }

func (p *PIDController) Dim() int { return len(p.gains) }

// SetControlLimit clamps each output to [-limit, limit]. Zero disables
// the clamp for that axis.
func (p *PIDController) SetControlLimit(limit []float64) error {
	if err := robot.CheckDOF("control limit", len(limit), len(p.gains)); err != nil {
		return err
	}
	for i, v := range limit {
		if v < 0 || math.IsNaN(v) {
			return errors.Wrapf(robot.ErrConfig, "control limit %d is %g", i, v)
		}
	}
	copy(p.ctrlLimit, limit)
	return nil
}

func (p *PIDController) ResetIntegrator() {
	for i := range p.integrator {
		p.integrator[i] = 0
	}
}

func (p *PIDController) SetIntegratorState(state []float64) error {
	if err := robot.CheckDOF("integrator state", len(state), len(p.integrator)); err != nil {
		return err
	}
	copy(p.integrator, state)
	return nil
}

func (p *PIDController) Integrator() []float64 { return append([]float64(nil), p.integrator...) }

func (p *PIDController) Operate() {
	ref, fb := p.Reference.MustValue(), p.Feedback.MustValue()
	if len(ref) != len(p.gains) || len(fb) != len(p.gains) {
		p.Fail(errors.Wrapf(robot.ErrDimensionMismatch,
			"reference %d and feedback %d, want %d", len(ref), len(fb), len(p.gains)))
		p.InvalidateOutputs()
		return
	}
	ts := p.Period()
	for i, g := range p.gains {
		p.err[i] = ref[i] - fb[i]
		u := g.Kp * p.err[i]
		if ts > 0 {
			p.integrator[i] += g.Ki * ts * p.errPrev[i]
			if g.Limit > 0 {
				p.integrator[i] = saturate(p.integrator[i], g.Limit)
			}
			u += p.integrator[i] + g.Kd*(p.err[i]-p.errPrev[i])/ts
		}
		if p.ctrlLimit[i] > 0 {
			u = saturate(u, p.ctrlLimit[i])
		}
		p.out[i] = u
	}
	copy(p.errPrev, p.err)
	p.Control.SetValue(p.out)
}

func saturate(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}
