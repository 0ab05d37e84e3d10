package robot

import (
	"errors"
	"math"
	"testing"
)

func TestVectorArithmetic(t *testing.T) {
	a := Vector{1, 2, 3}
	b := Vector{0.5, 0.5, 0.5}

	if got := a.Add(b); !got.Equal([]float64{1.5, 2.5, 3.5}, 1e-12) {
		t.Errorf("Add = %v", got)
	}
	if got := a.Sub(b); !got.Equal([]float64{0.5, 1.5, 2.5}, 1e-12) {
		t.Errorf("Sub = %v", got)
	}
	if got := a.Scale(2); !got.Equal([]float64{2, 4, 6}, 1e-12) {
		t.Errorf("Scale = %v", got)
	}
	if a[0] != 1 {
		t.Error("allocating helpers must not mutate the receiver")
	}
}

func TestVectorInPlace(t *testing.T) {
	v := NewVector(3)
	v.CopyFrom([]float64{1, 1, 1})
	v.AddScaled(-2, []float64{1, 2, 3})
	if !v.Equal([]float64{-1, -3, -5}, 1e-12) {
		t.Errorf("AddScaled = %v", v)
	}
	v.Zero()
	if v.Norm() != 0 {
		t.Errorf("Zero left %v", v)
	}
}

func TestVectorIsValid(t *testing.T) {
	tests := []struct {
		name string
		v    Vector
		want bool
	}{
		{"finite", Vector{1, -2}, true},
		{"nan", Vector{math.NaN()}, false},
		{"inf", Vector{0, math.Inf(-1)}, false},
		{"empty", Vector{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckDOF(t *testing.T) {
	if err := CheckDOF("q", 4, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := CheckDOF("q", 3, 4)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("got %v, want ErrDimensionMismatch", err)
	}
}

func TestTickErrorUnwrap(t *testing.T) {
	err := &TickError{Tick: 3, Time: 0.006, Stage: "UPDATE", Wrapped: ErrBus}
	if !errors.Is(err, ErrBus) {
		t.Error("TickError should unwrap to ErrBus")
	}
}
