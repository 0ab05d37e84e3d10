package integrators

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/wamctl/internal/robot"
)

// oscillator is ẍ = -x + u.
type oscillator struct{}

func (oscillator) Derive(x, u robot.Vector, t float64, dx robot.Vector) {
	dx[0] = x[1]
	dx[1] = -x[0]
	if len(u) > 0 {
		dx[1] += u[0]
	}
}

func TestIntegratorAccuracy(t *testing.T) {
	tests := []struct {
		name string
		tol  float64
	}{
		{"euler", 1e-2},
		{"rk4", 1e-8},
		{"verlet", 1e-4},
		{"leapfrog", 1e-4},
	}
	const dt = 0.01
	const steps = 100
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			integ, err := New(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			x := robot.Vector{1, 0}
			for i := 0; i < steps; i++ {
				integ.Step(oscillator{}, x, nil, float64(i)*dt, dt)
			}
			wantX := math.Cos(steps * dt)
			wantV := -math.Sin(steps * dt)
			if math.Abs(x[0]-wantX) > tt.tol || math.Abs(x[1]-wantV) > tt.tol {
				t.Errorf("got (%.8f, %.8f), want (%.8f, %.8f)", x[0], x[1], wantX, wantV)
			}
		})
	}
}

func TestIntegratorControl(t *testing.T) {
	integ := NewRK4()
	x := robot.Vector{0, 0}
	integ.Step(oscillator{}, x, robot.Vector{1}, 0, 0.01)
	if x[1] <= 0 {
		t.Errorf("positive input should accelerate, got v=%v", x[1])
	}
}

func TestNewUnknown(t *testing.T) {
	if _, err := New("rk45"); !errors.Is(err, robot.ErrConfig) {
		t.Errorf("got %v, want ErrConfig", err)
	}
	if got := Names(); len(got) != 4 || got[0] != "euler" {
		t.Errorf("names = %v", got)
	}
}
