// Package spline interpolates a multi-dimensional path through waypoints
// with one cubic per coordinate.
package spline

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"github.com/san-kum/wamctl/internal/robot"
)

// Mode selects how the spline is parameterized.
type Mode int

const (
	// ArcLength parameterizes by cumulative Euclidean distance between
	// waypoints.
	ArcLength Mode = iota
	// External uses a caller-supplied, strictly increasing parameter per
	// waypoint, typically time.
	External
)

// zeroSegment is the parameter step given to repeated waypoints so the
// knots stay strictly increasing.
const zeroSegment = 1e-5

var ErrInitialized = errors.New("spline: already initialized")

type Spline struct {
	mode   Mode
	dim    int
	points [][]float64
	params []float64
	fits   []interp.PiecewiseCubic
	length float64
	ready  bool
}

// New starts a spline at start. In External mode the start has parameter 0.
func New(start []float64, mode Mode) *Spline {
	s := &Spline{
		mode:   mode,
		dim:    len(start),
		points: make([][]float64, len(start)),
		params: []float64{0},
	}
	for i, v := range start {
		s.points[i] = []float64{v}
	}
	return s
}

// Add appends a waypoint. param is ignored in ArcLength mode.
func (s *Spline) Add(point []float64, param float64) error {
	if s.ready {
		return ErrInitialized
	}
	if err := robot.CheckDOF("spline point", len(point), s.dim); err != nil {
		return err
	}
	if s.mode == External && param <= s.params[len(s.params)-1] {
		return errors.Wrapf(robot.ErrSequence, "spline: parameter %v does not increase past %v", param, s.params[len(s.params)-1])
	}
	for i, v := range point {
		s.points[i] = append(s.points[i], v)
	}
	s.params = append(s.params, param)
	return nil
}

// Init fits the cubics. A non-nil start replaces the first waypoint. A
// non-zero direction clamps the initial slope to that unit direction and
// leaves the end natural; otherwise both ends are natural.
func (s *Spline) Init(start, direction []float64) error {
	if start != nil {
		if err := robot.CheckDOF("spline start", len(start), s.dim); err != nil {
			return err
		}
		for i, v := range start {
			s.points[i][0] = v
		}
	}

	var slope []float64
	if direction != nil {
		if err := robot.CheckDOF("spline direction", len(direction), s.dim); err != nil {
			return err
		}
		if n := floats.Norm(direction, 2); n > 0 {
			slope = make([]float64, s.dim)
			floats.ScaleTo(slope, 1/n, direction)
		}
	}

	n := len(s.params)
	if s.mode == ArcLength {
		for k := 1; k < n; k++ {
			d := 0.0
			for i := 0; i < s.dim; i++ {
				diff := s.points[i][k] - s.points[i][k-1]
				d += diff * diff
			}
			d = math.Sqrt(d)
			if d == 0 {
				d = zeroSegment
			}
			s.params[k] = s.params[k-1] + d
		}
	}
	s.length = s.params[n-1]

	s.fits = make([]interp.PiecewiseCubic, s.dim)
	if n >= 2 {
		m := make([]float64, n)
		for i := 0; i < s.dim; i++ {
			start := math.NaN()
			if slope != nil {
				start = slope[i]
			}
			solveSlopes(s.params, s.points[i], start, m)
			s.fits[i].FitWithDerivatives(s.params, s.points[i], m)
		}
	}
	s.ready = true
	return nil
}

// solveSlopes fills m with the knot derivatives of a C2 cubic through
// (xs, ys). A NaN start leaves the first end natural; otherwise the first
// derivative is clamped to start. The last end is always natural.
func solveSlopes(xs, ys []float64, start float64, m []float64) {
	n := len(xs)
	a := make([]float64, n)
	b := make([]float64, n)
	c := make([]float64, n)
	d := make([]float64, n)

	delta := func(k int) float64 { return (ys[k+1] - ys[k]) / (xs[k+1] - xs[k]) }

	if math.IsNaN(start) {
		b[0], c[0], d[0] = 2, 1, 3*delta(0)
	} else {
		b[0], d[0] = 1, start
	}
	for k := 1; k < n-1; k++ {
		h0 := xs[k] - xs[k-1]
		h1 := xs[k+1] - xs[k]
		a[k] = 1 / h0
		b[k] = 2 * (1/h0 + 1/h1)
		c[k] = 1 / h1
		d[k] = 3 * (delta(k-1)/h0 + delta(k)/h1)
	}
	a[n-1], b[n-1], d[n-1] = 1, 2, 3*delta(n-2)

	// Thomas algorithm; the system is diagonally dominant.
	c[0] /= b[0]
	d[0] /= b[0]
	for k := 1; k < n; k++ {
		w := b[k] - a[k]*c[k-1]
		c[k] /= w
		d[k] = (d[k] - a[k]*d[k-1]) / w
	}
	m[n-1] = d[n-1]
	for k := n - 2; k >= 0; k-- {
		m[k] = d[k] - c[k]*m[k+1]
	}
}

// Eval writes the point at parameter p into out, clamping p to
// [0, Length]. It does not allocate.
func (s *Spline) Eval(p float64, out []float64) {
	if p < 0 {
		p = 0
	}
	if p > s.length {
		p = s.length
	}
	if len(s.params) < 2 || !s.ready {
		for i := range out {
			out[i] = s.points[i][0]
		}
		return
	}
	for i := range out {
		out[i] = s.fits[i].Predict(p)
	}
}

// Tangent writes d(point)/dp at p into out.
func (s *Spline) Tangent(p float64, out []float64) {
	p = math.Max(0, math.Min(p, s.length))
	if len(s.params) < 2 || !s.ready {
		for i := range out {
			out[i] = 0
		}
		return
	}
	for i := range out {
		out[i] = s.fits[i].PredictDerivative(p)
	}
}

func (s *Spline) Length() float64 { return s.length }

func (s *Spline) NumPoints() int { return len(s.params) }

func (s *Spline) Dim() int { return s.dim }

func (s *Spline) Mode() Mode { return s.mode }

// Point returns waypoint k and its parameter.
func (s *Spline) Point(k int) ([]float64, float64) {
	out := make([]float64, s.dim)
	for i := range out {
		out[i] = s.points[i][k]
	}
	return out, s.params[k]
}

// Start returns a copy of the first waypoint.
func (s *Spline) Start() []float64 {
	p, _ := s.Point(0)
	return p
}
