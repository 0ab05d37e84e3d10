package robot

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Vector is a joint-space or task-space quantity. The allocating helpers are
// meant for setup and tooling; the in-place ones are safe inside a tick.
type Vector []float64

func NewVector(n int) Vector {
	return make(Vector, n)
}

func (v Vector) Clone() Vector {
	c := make(Vector, len(v))
	copy(c, v)
	return c
}

func (v Vector) IsValid() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func (v Vector) Norm() float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Norm(v, 2)
}

func (v Vector) Add(other Vector) Vector {
	result := v.Clone()
	for i := range result {
		if i < len(other) {
			result[i] += other[i]
		}
	}
	return result
}

func (v Vector) Sub(other Vector) Vector {
	result := v.Clone()
	for i := range result {
		if i < len(other) {
			result[i] -= other[i]
		}
	}
	return result
}

func (v Vector) Scale(factor float64) Vector {
	result := v.Clone()
	for i := range result {
		result[i] *= factor
	}
	return result
}

// CopyFrom copies src into v without allocating.
func (v Vector) CopyFrom(src []float64) {
	copy(v, src)
}

// Zero clears v in place.
func (v Vector) Zero() {
	for i := range v {
		v[i] = 0
	}
}

// AddScaled sets v += s*other in place.
func (v Vector) AddScaled(s float64, other []float64) {
	n := len(v)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		v[i] += s * other[i]
	}
}

// Equal reports whether v and other agree element-wise within tol.
func (v Vector) Equal(other []float64, tol float64) bool {
	if len(v) != len(other) {
		return false
	}
	return floats.EqualApprox(v, other, tol)
}

func (v Vector) String() string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.4f", x)
	}
	return "<" + strings.Join(parts, ", ") + ">"
}
