package spatial

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

const tol = 1e-12

func TestMat3Products(t *testing.T) {
	r := RotZ(math.Pi / 2)
	v := r.MulVec(r3.Vector{X: 1})
	if math.Abs(v.X) > tol || math.Abs(v.Y-1) > tol {
		t.Errorf("RotZ(π/2)·x = %v, want y", v)
	}
	back := r.TMulVec(v)
	if math.Abs(back.X-1) > tol {
		t.Errorf("Rᵀ·R·x = %v, want x", back)
	}
	if !r.Mul(r.T()).ApproxEqual(Identity(), tol) {
		t.Error("R·Rᵀ should be identity")
	}
}

func TestSimilarRotatesInertia(t *testing.T) {
	inertia := Diag(1, 2, 3)
	got := RotZ(math.Pi / 2).Similar(inertia)
	want := Diag(2, 1, 3)
	if !got.ApproxEqual(want, 1e-12) {
		t.Errorf("Similar = %v, want %v", got, want)
	}
}

func TestRotToQuatRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		m    Mat3
	}{
		{"identity", Identity()},
		{"z90", RotZ(math.Pi / 2)},
		{"x180", RotX(math.Pi)},
		{"y179", RotY(179 * math.Pi / 180)},
		{"mixed", RotX(0.3).Mul(RotY(-1.2)).Mul(RotZ(2.9))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := RotToQuat(tt.m)
			if math.Abs(quat.Abs(q)-1) > 1e-12 {
				t.Fatalf("|q| = %v", quat.Abs(q))
			}
			if !QuatToRot(q).ApproxEqual(tt.m, 1e-9) {
				t.Errorf("round trip mismatch for %s", tt.name)
			}
		})
	}
}

func TestAngleAxis(t *testing.T) {
	ref := RotToQuat(RotX(0.4))
	pos := RotToQuat(RotZ(0.25).Mul(RotX(0.4)))

	aa := AngleAxis(MulConj(pos, ref))
	if math.Abs(aa.Z-0.25) > 1e-9 || math.Abs(aa.X) > 1e-9 || math.Abs(aa.Y) > 1e-9 {
		t.Errorf("AngleAxis = %v, want (0, 0, 0.25)", aa)
	}

	if got := AngleAxis(MulConj(ref, ref)); got != (r3.Vector{}) {
		t.Errorf("identity error should give zero vector, got %v", got)
	}

	// 3π/2 about z wraps to -π/2
	aa = AngleAxis(RotToQuat(RotZ(1.5 * math.Pi)))
	if math.Abs(aa.Z+math.Pi/2) > 1e-9 {
		t.Errorf("wrapped angle = %v, want -π/2", aa.Z)
	}
}

func TestNormalizeZero(t *testing.T) {
	if got := Normalize(quat.Number{}); got != (quat.Number{Real: 1}) {
		t.Errorf("Normalize(0) = %v", got)
	}
}
