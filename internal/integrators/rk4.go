package integrators

import "github.com/san-kum/wamctl/internal/robot"

type RK4 struct {
	k1, k2, k3, k4 robot.Vector
	scratch        robot.Vector
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = robot.NewVector(n)
		r.k2 = robot.NewVector(n)
		r.k3 = robot.NewVector(n)
		r.k4 = robot.NewVector(n)
		r.scratch = robot.NewVector(n)
	}
}

func (r *RK4) Step(p Plant, x, u robot.Vector, t, dt float64) {
	n := len(x)
	r.ensureScratch(n)

	p.Derive(x, u, t, r.k1)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k1[i]
	}
	p.Derive(r.scratch, u, t+dt*0.5, r.k2)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k2[i]
	}
	p.Derive(r.scratch, u, t+dt*0.5, r.k3)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*r.k3[i]
	}
	p.Derive(r.scratch, u, t+dt, r.k4)

	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		x[i] += dt6 * (r.k1[i] + 2*r.k2[i] + 2*r.k3[i] + r.k4[i])
	}
}
