package integrators

import "github.com/san-kum/wamctl/internal/robot"

type Euler struct {
	dx robot.Vector
}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(p Plant, x, u robot.Vector, t, dt float64) {
	if len(e.dx) != len(x) {
		e.dx = robot.NewVector(len(x))
	}
	p.Derive(x, u, t, e.dx)
	x.AddScaled(dt, e.dx)
}
