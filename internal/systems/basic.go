package systems

import (
	"github.com/pkg/errors"

	"github.com/san-kum/wamctl/internal/robot"
)

// Constant outputs a fixed value.
type Constant[T any] struct {
	Base
	Output *Output[T]
}

func NewConstant[T any](name string, v T) *Constant[T] {
	c := &Constant[T]{}
	c.Init(c, name)
	c.Output = NewOutputWithValue(&c.Base, v)
	return c
}

func (c *Constant[T]) Operate() {}

// ExposedOutput publishes a value set from outside the graph, such as a
// setpoint chosen by an operator.
type ExposedOutput[T any] struct {
	Base
	Output *Output[T]
}

func NewExposedOutput[T any](name string) *ExposedOutput[T] {
	e := &ExposedOutput[T]{}
	e.Init(e, name)
	e.Output = NewOutput[T](&e.Base)
	return e
}

func (e *ExposedOutput[T]) SetValue(v T) {
	mu := e.mutex()
	mu.Lock()
	defer mu.Unlock()
	e.Output.SetValue(v)
}

func (e *ExposedOutput[T]) SetUndefined() {
	mu := e.mutex()
	mu.Lock()
	defer mu.Unlock()
	e.Output.SetUndefined()
}

func (e *ExposedOutput[T]) Operate() {}

// Callback applies fn to each input value.
type Callback[I, O any] struct {
	Base
	Input  *Input[I]
	Output *Output[O]
	fn     func(I) O
}

func NewCallback[I, O any](name string, fn func(I) O) *Callback[I, O] {
	c := &Callback[I, O]{fn: fn}
	c.Init(c, name)
	c.Input = NewInput[I](&c.Base)
	c.Output = NewOutput[O](&c.Base)
	return c
}

func (c *Callback[I, O]) Operate() {
	c.Output.SetValue(c.fn(c.Input.MustValue()))
}

// Gain scales a vector element by element.
type Gain struct {
	Base
	Input  *Input[[]float64]
	Output *Output[[]float64]
	gain   []float64
	buf    []float64
}

// NewGain takes one gain per element, or a single gain for every element.
func NewGain(name string, gain ...float64) (*Gain, error) {
	if len(gain) == 0 {
		return nil, errors.Wrap(robot.ErrConfig, "systems: gain needs at least one value")
	}
	g := &Gain{gain: append([]float64(nil), gain...)}
	g.Init(g, name)
	g.Input = NewInput[[]float64](&g.Base)
	g.Output = NewOutput[[]float64](&g.Base)
	return g, nil
}

func (g *Gain) Operate() {
	in := g.Input.MustValue()
	if len(g.gain) > 1 && len(g.gain) != len(in) {
		g.Fail(robot.CheckDOF("gain input", len(in), len(g.gain)))
		g.InvalidateOutputs()
		return
	}
	g.buf = resize(g.buf, len(in))
	for i, v := range in {
		k := g.gain[0]
		if len(g.gain) > 1 {
			k = g.gain[i]
		}
		g.buf[i] = k * v
	}
	g.Output.SetValue(g.buf)
}

// Summer adds its inputs with the signs given by its polarity string,
// one '+' or '-' per input.
type Summer struct {
	Base
	Inputs []*Input[[]float64]
	Output *Output[[]float64]
	signs  []float64
	buf    []float64
}

func NewSummer(name, polarity string, dim int) (*Summer, error) {
	if polarity == "" {
		return nil, errors.Wrap(robot.ErrConfig, "systems: empty polarity")
	}
	if dim < 1 {
		return nil, errors.Wrapf(robot.ErrConfig, "systems: summer dimension %d", dim)
	}
	s := &Summer{buf: make([]float64, dim)}
	s.Init(s, name)
	for _, c := range polarity {
		switch c {
		case '+':
			s.signs = append(s.signs, 1)
		case '-':
			s.signs = append(s.signs, -1)
		default:
			return nil, errors.Wrapf(robot.ErrConfig, "systems: polarity %q has invalid sign %q", polarity, c)
		}
		s.Inputs = append(s.Inputs, NewInput[[]float64](&s.Base))
	}
	s.Output = NewOutput[[]float64](&s.Base)
	return s, nil
}

func (s *Summer) Operate() {
	for i := range s.buf {
		s.buf[i] = 0
	}
	for k, in := range s.Inputs {
		v := in.MustValue()
		if len(v) != len(s.buf) {
			s.Fail(robot.CheckDOF("summer input", len(v), len(s.buf)))
			s.InvalidateOutputs()
			return
		}
		for i := range s.buf {
			s.buf[i] += s.signs[k] * v[i]
		}
	}
	s.Output.SetValue(s.buf)
}

func resize(buf []float64, n int) []float64 {
	if cap(buf) < n {
		return make([]float64, n)
	}
	return buf[:n]
}
