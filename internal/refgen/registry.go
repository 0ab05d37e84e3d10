package refgen

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/san-kum/wamctl/internal/robot"
)

// Options tune loaders whose playback timing is not stored with the samples.
type Options struct {
	Velocity     float64
	Acceleration float64
}

// Registry maps a stored trajectory kind to the refgen that plays it.
type Registry struct {
	loaders   map[string]func([]Sample, Options) (Refgen, error)
	teachable map[string]func(dof int, opts Options) (Refgen, error)
}

func NewRegistry(capacity int) *Registry {
	r := &Registry{
		loaders:   make(map[string]func([]Sample, Options) (Refgen, error)),
		teachable: make(map[string]func(int, Options) (Refgen, error)),
	}

	r.loaders[KindTeachplay] = func(s []Sample, _ Options) (Refgen, error) {
		return LoadTeachplay(s)
	}
	r.loaders[KindTeachplayConst] = func(s []Sample, o Options) (Refgen, error) {
		vel, acc := constRates(o)
		return LoadTeachplayConst(s, vel, acc)
	}

	r.teachable[KindTeachplay] = func(dof int, _ Options) (Refgen, error) {
		return NewTeachplay(dof, capacity)
	}
	r.teachable[KindTeachplayConst] = func(dof int, o Options) (Refgen, error) {
		vel, acc := constRates(o)
		return NewTeachplayConst(dof, capacity, vel, acc)
	}
	return r
}

func constRates(o Options) (float64, float64) {
	vel, acc := o.Velocity, o.Acceleration
	if vel <= 0 {
		vel = DefaultConstVelocity
	}
	if acc <= 0 {
		acc = DefaultConstAcceleration
	}
	return vel, acc
}

// Load rebuilds a playback refgen of the given kind.
func (r *Registry) Load(kind string, samples []Sample, opts Options) (Refgen, error) {
	fn, ok := r.loaders[kind]
	if !ok {
		return nil, errors.Wrapf(robot.ErrConfig, "unknown refgen kind: %s", kind)
	}
	return fn(samples, opts)
}

// NewTeachable returns an empty teachable refgen of the given kind.
func (r *Registry) NewTeachable(kind string, dof int, opts Options) (Refgen, error) {
	fn, ok := r.teachable[kind]
	if !ok {
		return nil, errors.Wrapf(robot.ErrConfig, "unknown refgen kind: %s", kind)
	}
	return fn(dof, opts)
}

func (r *Registry) Kinds() []string {
	kinds := lo.Keys(r.loaders)
	sort.Strings(kinds)
	return kinds
}
