package integrators

import "github.com/san-kum/wamctl/internal/robot"

// Verlet is velocity Verlet for states laid out as [positions, velocities].
type Verlet struct {
	dx, dxNew robot.Vector
	scratch   robot.Vector
}

func NewVerlet() *Verlet {
	return &Verlet{}
}

func (v *Verlet) ensureScratch(n int) {
	if len(v.scratch) != n {
		v.scratch = robot.NewVector(n)
		v.dx = robot.NewVector(n)
		v.dxNew = robot.NewVector(n)
	}
}

func (v *Verlet) Step(p Plant, x, u robot.Vector, t, dt float64) {
	n := len(x)
	half := n / 2
	v.ensureScratch(n)

	p.Derive(x, u, t, v.dx)
	dt2 := dt * dt

	for i := 0; i < half; i++ {
		v.scratch[i] = x[i] + x[half+i]*dt + 0.5*v.dx[half+i]*dt2
		v.scratch[half+i] = x[half+i]
	}

	p.Derive(v.scratch, u, t+dt, v.dxNew)

	halfDt := 0.5 * dt
	for i := 0; i < half; i++ {
		x[i] = v.scratch[i]
		x[half+i] += (v.dx[half+i] + v.dxNew[half+i]) * halfDt
	}
}

// Leapfrog is kick-drift-kick for states laid out as [positions, velocities].
type Leapfrog struct {
	dx      robot.Vector
	scratch robot.Vector
}

func NewLeapfrog() *Leapfrog {
	return &Leapfrog{}
}

func (l *Leapfrog) Step(p Plant, x, u robot.Vector, t, dt float64) {
	n := len(x)
	half := n / 2

	if len(l.scratch) != n {
		l.scratch = robot.NewVector(n)
		l.dx = robot.NewVector(n)
	}

	p.Derive(x, u, t, l.dx)
	halfDt := dt * 0.5

	for i := 0; i < half; i++ {
		l.scratch[half+i] = x[half+i] + l.dx[half+i]*halfDt
	}
	for i := 0; i < half; i++ {
		l.scratch[i] = x[i] + l.scratch[half+i]*dt
	}

	p.Derive(l.scratch, u, t+dt, l.dx)

	for i := 0; i < half; i++ {
		x[i] = l.scratch[i]
		x[half+i] = l.scratch[half+i] + l.dx[half+i]*halfDt
	}
}
