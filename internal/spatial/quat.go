package spatial

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Quaternions use the (w, x, y, z) layout, stored in gonum's quat.Number
// as (Real, Imag, Jmag, Kmag).

// singularSin is the sin(angle/2) below which the rotation axis is undefined.
const singularSin = 0.0005

// RotToQuat converts a rotation matrix to a unit quaternion. It branches on
// the largest of the trace and the three diagonal elements so the square
// root argument stays well away from zero.
func RotToQuat(m Mat3) quat.Number {
	tr := m[0][0] + m[1][1] + m[2][2]
	var q quat.Number
	switch {
	case tr > m[0][0] && tr > m[1][1] && tr > m[2][2]:
		s := 2 * math.Sqrt(1+tr)
		q = quat.Number{
			Real: 0.25 * s,
			Imag: (m[2][1] - m[1][2]) / s,
			Jmag: (m[0][2] - m[2][0]) / s,
			Kmag: (m[1][0] - m[0][1]) / s,
		}
	case m[0][0] >= m[1][1] && m[0][0] >= m[2][2]:
		s := 2 * math.Sqrt(1+m[0][0]-m[1][1]-m[2][2])
		q = quat.Number{
			Real: (m[2][1] - m[1][2]) / s,
			Imag: 0.25 * s,
			Jmag: (m[0][1] + m[1][0]) / s,
			Kmag: (m[0][2] + m[2][0]) / s,
		}
	case m[1][1] >= m[2][2]:
		s := 2 * math.Sqrt(1+m[1][1]-m[0][0]-m[2][2])
		q = quat.Number{
			Real: (m[0][2] - m[2][0]) / s,
			Imag: (m[0][1] + m[1][0]) / s,
			Jmag: 0.25 * s,
			Kmag: (m[1][2] + m[2][1]) / s,
		}
	default:
		s := 2 * math.Sqrt(1+m[2][2]-m[0][0]-m[1][1])
		q = quat.Number{
			Real: (m[1][0] - m[0][1]) / s,
			Imag: (m[0][2] + m[2][0]) / s,
			Jmag: (m[1][2] + m[2][1]) / s,
			Kmag: 0.25 * s,
		}
	}
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	return q
}

// QuatToRot converts a unit quaternion to a rotation matrix.
func QuatToRot(q quat.Number) Mat3 {
	q = Normalize(q)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return Mat3{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
}

// Normalize scales q to unit length. The zero quaternion maps to identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// MulConj returns a·b⁻¹ for unit quaternions, the rotation taking b to a.
func MulConj(a, b quat.Number) quat.Number {
	return quat.Mul(a, quat.Conj(b))
}

// AngleAxis returns the rotation vector (axis scaled by angle) of a unit
// quaternion, with the angle wrapped into (-π, π]. Near the identity the axis
// is undefined and the zero vector is returned.
func AngleAxis(q quat.Number) r3.Vector {
	w := math.Max(-1, math.Min(1, q.Real))
	sinHalf := math.Sqrt(1 - w*w)
	if sinHalf < singularSin {
		return r3.Vector{}
	}
	angle := 2 * math.Acos(w)
	if angle > math.Pi {
		angle -= 2 * math.Pi
	}
	k := angle / sinHalf
	return r3.Vector{X: q.Imag * k, Y: q.Jmag * k, Z: q.Kmag * k}
}

// QuatFrom reads a (w, x, y, z) slice.
func QuatFrom(s []float64) quat.Number {
	return quat.Number{Real: s[0], Imag: s[1], Jmag: s[2], Kmag: s[3]}
}

// PutQuat writes q into dst[0:4] as (w, x, y, z).
func PutQuat(dst []float64, q quat.Number) {
	dst[0], dst[1], dst[2], dst[3] = q.Real, q.Imag, q.Jmag, q.Kmag
}
