package metrics

import "gonum.org/v1/gonum/mat"

// InertiaSource evaluates the joint-space inertia matrix at the current
// configuration.
type InertiaSource interface {
	EvalJSIM() *mat.Dense
}

// KineticEnergy averages ½ q̇ᵀ M(q) q̇ over observed ticks and tracks the peak.
type KineticEnergy struct {
	name    string
	src     InertiaSource
	qd      *mat.VecDense
	tmp     *mat.VecDense
	total   float64
	peak    float64
	samples int
}

func NewKineticEnergy(src InertiaSource) *KineticEnergy {
	return &KineticEnergy{
		name: "kinetic_energy",
		src:  src,
	}
}

func (e *KineticEnergy) Name() string { return e.name }

func (e *KineticEnergy) Observe(f *Frame) {
	n := len(f.Velocity)
	if e.qd == nil || e.qd.Len() != n {
		e.qd = mat.NewVecDense(n, nil)
		e.tmp = mat.NewVecDense(n, nil)
	}
	for i, v := range f.Velocity {
		e.qd.SetVec(i, v)
	}
	e.tmp.MulVec(e.src.EvalJSIM(), e.qd)
	ke := 0.5 * mat.Dot(e.qd, e.tmp)
	e.total += ke
	if ke > e.peak {
		e.peak = ke
	}
	e.samples++
}

func (e *KineticEnergy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.total / float64(e.samples)
}

func (e *KineticEnergy) Peak() float64 { return e.peak }

func (e *KineticEnergy) Reset() {
	e.total = 0
	e.peak = 0
	e.samples = 0
}
