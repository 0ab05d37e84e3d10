package control

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/san-kum/wamctl/internal/robot"
)

// Gains holds one axis' PID gains. A positive Limit clamps the integrator
// to [-Limit, Limit]; zero leaves it unbounded.
type Gains struct {
	Kp    float64 `yaml:"p"`
	Ki    float64 `yaml:"i"`
	Kd    float64 `yaml:"d"`
	Limit float64 `yaml:"limit,omitempty"`
}

func (g Gains) validate() error {
	for _, v := range []float64{g.Kp, g.Ki, g.Kd, g.Limit} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrap(robot.ErrConfig, "gain is not finite")
		}
	}
	if g.Limit < 0 {
		return errors.Wrapf(robot.ErrConfig, "integrator limit %g is negative", g.Limit)
	}
	return nil
}

// PID is a per-axis PID law with no cross-coupling. The first Update after
// construction or Reset seeds the time cache, so its integration step is zero.
type PID struct {
	gains      []Gains
	integrator robot.Vector
	lastTime   float64
	first      bool
}

func NewPID(gains []Gains) (*PID, error) {
	if len(gains) == 0 {
		return nil, errors.Wrap(robot.ErrConfig, "control: no gains")
	}
	for i, g := range gains {
		if err := g.validate(); err != nil {
			return nil, errors.Wrapf(err, "control: axis %d", i)
		}
	}
	return &PID{
		gains:      append([]Gains(nil), gains...),
		integrator: robot.NewVector(len(gains)),
		first:      true,
	}, nil
}

func (p *PID) Dim() int { return len(p.gains) }

// Update integrates e over the elapsed time and writes
// -(Kp·e + Ki·I + Kd·v) into out. It does not allocate.
func (p *PID) Update(e, v []float64, t float64, out []float64) {
	if p.first {
		p.lastTime = t
		p.first = false
	}
	dt := t - p.lastTime
	p.lastTime = t

	for i, g := range p.gains {
		integ := p.integrator[i] + e[i]*dt
		if g.Limit > 0 {
			integ = math.Max(-g.Limit, math.Min(g.Limit, integ))
		}
		p.integrator[i] = integ
		out[i] = -(g.Kp*e[i] + g.Ki*integ + g.Kd*v[i])
	}
}

// Reset clears the integrator and the time cache.
func (p *PID) Reset() {
	p.integrator.Zero()
	p.lastTime = 0
	p.first = true
}

// Integrator returns a view of the integrator state.
func (p *PID) Integrator() []float64 { return p.integrator }

func (p *PID) Gains() []Gains { return append([]Gains(nil), p.gains...) }

// GetParams returns tunable parameters for live adjustment, keyed
// "kp.0", "ki.0", "kd.0", "limit.0", ...
func (p *PID) GetParams() map[string]float64 {
	params := make(map[string]float64, 4*len(p.gains))
	for i, g := range p.gains {
		params[fmt.Sprintf("kp.%d", i)] = g.Kp
		params[fmt.Sprintf("ki.%d", i)] = g.Ki
		params[fmt.Sprintf("kd.%d", i)] = g.Kd
		params[fmt.Sprintf("limit.%d", i)] = g.Limit
	}
	return params
}

// SetParam adjusts one gain by its GetParams key.
func (p *PID) SetParam(name string, value float64) error {
	term, idx, ok := strings.Cut(name, ".")
	if !ok {
		return errors.Wrapf(robot.ErrConfig, "control: malformed parameter %q", name)
	}
	i, err := strconv.Atoi(idx)
	if err != nil || i < 0 || i >= len(p.gains) {
		return errors.Wrapf(robot.ErrConfig, "control: no axis %q", idx)
	}
	g := p.gains[i]
	switch term {
	case "kp":
		g.Kp = value
	case "ki":
		g.Ki = value
	case "kd":
		g.Kd = value
	case "limit":
		g.Limit = value
	default:
		return errors.Wrapf(robot.ErrConfig, "control: unknown term %q", term)
	}
	if err := g.validate(); err != nil {
		return err
	}
	p.gains[i] = g
	return nil
}
