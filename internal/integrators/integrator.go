package integrators

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/san-kum/wamctl/internal/robot"
)

// Plant is a first-order system ẋ = f(x, u, t). Derive writes f into dx.
type Plant interface {
	Derive(x, u robot.Vector, t float64, dx robot.Vector)
}

// Integrator advances x in place by one step of dt.
type Integrator interface {
	Step(p Plant, x, u robot.Vector, t, dt float64)
}

var factories = map[string]func() Integrator{
	"euler":    func() Integrator { return NewEuler() },
	"rk4":      func() Integrator { return NewRK4() },
	"verlet":   func() Integrator { return NewVerlet() },
	"leapfrog": func() Integrator { return NewLeapfrog() },
}

func New(name string) (Integrator, error) {
	fn, ok := factories[name]
	if !ok {
		return nil, errors.Wrapf(robot.ErrConfig, "unknown integrator: %s", name)
	}
	return fn(), nil
}

func Names() []string {
	names := lo.Keys(factories)
	sort.Strings(names)
	return names
}
