package control

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/san-kum/wamctl/internal/robot"
)

// ErrUnknownController is returned when selecting a name not in the registry.
var ErrUnknownController = errors.New("control: unknown controller")

// Registry is an ordered set of controllers with one active entry.
type Registry struct {
	controllers []Controller
	active      int
}

// NewRegistry activates the first controller.
func NewRegistry(controllers ...Controller) (*Registry, error) {
	if len(controllers) == 0 {
		return nil, errors.Wrap(robot.ErrConfig, "control: empty registry")
	}
	seen := make(map[string]bool, len(controllers))
	for _, c := range controllers {
		if seen[c.Name()] {
			return nil, errors.Wrapf(robot.ErrConfig, "control: duplicate controller %q", c.Name())
		}
		seen[c.Name()] = true
	}
	return &Registry{controllers: controllers}, nil
}

func (r *Registry) Active() Controller { return r.controllers[r.active] }

func (r *Registry) Get(name string) (Controller, error) {
	_, i, ok := lo.FindIndexOf(r.controllers, func(c Controller) bool { return c.Name() == name })
	if !ok {
		return nil, errors.Wrapf(ErrUnknownController, "%s", name)
	}
	return r.controllers[i], nil
}

// Use makes name the active controller.
func (r *Registry) Use(name string) (Controller, error) {
	_, i, ok := lo.FindIndexOf(r.controllers, func(c Controller) bool { return c.Name() == name })
	if !ok {
		return nil, errors.Wrapf(ErrUnknownController, "%s", name)
	}
	r.active = i
	return r.controllers[i], nil
}

// Toggle advances to the next controller, wrapping around.
func (r *Registry) Toggle() Controller {
	r.active = (r.active + 1) % len(r.controllers)
	return r.controllers[r.active]
}

func (r *Registry) Names() []string {
	return lo.Map(r.controllers, func(c Controller, _ int) string { return c.Name() })
}

func (r *Registry) All() []Controller { return r.controllers }
