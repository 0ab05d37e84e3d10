package spatial

import (
	"math"

	"github.com/golang/geo/r3"
)

// Mat3 is a row-major 3x3 matrix used for rotations and inertia tensors.
// It is a value type so the control loop never allocates for it.
type Mat3 [3][3]float64

func Identity() Mat3 {
	return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

func Diag(x, y, z float64) Mat3 {
	return Mat3{{x, 0, 0}, {0, y, 0}, {0, 0, z}}
}

// FromRows builds a matrix from three row vectors.
func FromRows(r0, r1, r2 r3.Vector) Mat3 {
	return Mat3{{r0.X, r0.Y, r0.Z}, {r1.X, r1.Y, r1.Z}, {r2.X, r2.Y, r2.Z}}
}

// FromCols builds a matrix from three column vectors.
func FromCols(c0, c1, c2 r3.Vector) Mat3 {
	return Mat3{{c0.X, c1.X, c2.X}, {c0.Y, c1.Y, c2.Y}, {c0.Z, c1.Z, c2.Z}}
}

func RotX(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{{1, 0, 0}, {0, c, -s}, {0, s, c}}
}

func RotY(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{{c, 0, s}, {0, 1, 0}, {-s, 0, c}}
}

func RotZ(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
}

// Row returns row i.
func (m Mat3) Row(i int) r3.Vector {
	return r3.Vector{X: m[i][0], Y: m[i][1], Z: m[i][2]}
}

// Col returns column j.
func (m Mat3) Col(j int) r3.Vector {
	return r3.Vector{X: m[0][j], Y: m[1][j], Z: m[2][j]}
}

// MulVec returns m·v.
func (m Mat3) MulVec(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// TMulVec returns mᵀ·v.
func (m Mat3) TMulVec(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[0][0]*v.X + m[1][0]*v.Y + m[2][0]*v.Z,
		Y: m[0][1]*v.X + m[1][1]*v.Y + m[2][1]*v.Z,
		Z: m[0][2]*v.X + m[1][2]*v.Y + m[2][2]*v.Z,
	}
}

// Mul returns m·n.
func (m Mat3) Mul(n Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[i][0]*n[0][j] + m[i][1]*n[1][j] + m[i][2]*n[2][j]
		}
	}
	return out
}

func (m Mat3) T() Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[j][i]
		}
	}
	return out
}

// Similar returns m·n·mᵀ, the frame change applied to an inertia tensor.
func (m Mat3) Similar(n Mat3) Mat3 {
	return m.Mul(n).Mul(m.T())
}

// ApproxEqual reports element-wise agreement within tol.
func (m Mat3) ApproxEqual(n Mat3, tol float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(m[i][j]-n[i][j]) > tol {
				return false
			}
		}
	}
	return true
}

// VecFrom converts a length-3 slice. Shorter slices are zero padded.
func VecFrom(s []float64) r3.Vector {
	var v r3.Vector
	if len(s) > 0 {
		v.X = s[0]
	}
	if len(s) > 1 {
		v.Y = s[1]
	}
	if len(s) > 2 {
		v.Z = s[2]
	}
	return v
}

// PutVec writes v into dst[0:3].
func PutVec(dst []float64, v r3.Vector) {
	dst[0], dst[1], dst[2] = v.X, v.Y, v.Z
}
