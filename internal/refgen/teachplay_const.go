package refgen

import (
	"github.com/pkg/errors"

	"github.com/san-kum/wamctl/internal/profile"
	"github.com/san-kum/wamctl/internal/robot"
	"github.com/san-kum/wamctl/internal/spline"
)

const (
	KindTeachplayConst = "teachplay_const"

	DefaultConstVelocity     = 0.5
	DefaultConstAcceleration = 0.5
)

var errNotTaught = errors.Wrap(robot.ErrNoTrajectory, "refgen: nothing taught")

// TeachplayConst replays the taught path at a constant cruise velocity,
// ignoring the recorded timing.
type TeachplayConst struct {
	lifecycle
	dof     int
	vel     float64
	acc     float64
	rec     *recorder
	samples []Sample
	spline  *spline.Spline
	profile *profile.Profile
	start   []float64
}

func NewTeachplayConst(dof, capacity int, vel, acc float64) (*TeachplayConst, error) {
	if vel <= 0 || acc <= 0 {
		return nil, errors.Wrapf(robot.ErrConfig, "teachplay_const: vel and acc must be positive, got %v and %v", vel, acc)
	}
	rec, err := newRecorder(dof, capacity)
	if err != nil {
		return nil, err
	}
	return &TeachplayConst{dof: dof, vel: vel, acc: acc, rec: rec}, nil
}

func LoadTeachplayConst(samples []Sample, vel, acc float64) (*TeachplayConst, error) {
	if len(samples) == 0 {
		_, err := normalize(samples, 0)
		return nil, err
	}
	t, err := NewTeachplayConst(len(samples[0].Position), 0, vel, acc)
	if err != nil {
		return nil, err
	}
	if err := t.build(samples); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *TeachplayConst) build(samples []Sample) error {
	norm, err := normalize(samples, t.dof)
	if err != nil {
		return err
	}
	sp := spline.New(norm[0].Position, spline.ArcLength)
	for _, s := range norm[1:] {
		if err := sp.Add(s.Position, 0); err != nil {
			return err
		}
	}
	if err := sp.Init(nil, nil); err != nil {
		return err
	}
	length := sp.Length()
	if len(norm) < 2 {
		length = 0
	}
	prof, err := profile.New(t.vel, t.acc, 0, length)
	if err != nil {
		return err
	}
	t.samples = norm
	t.spline = sp
	t.profile = prof
	t.start = sp.Start()
	t.state = Uninitialized
	return nil
}

func (t *TeachplayConst) Name() string { return KindTeachplayConst }

func (t *TeachplayConst) Kind() string { return KindTeachplayConst }

func (t *TeachplayConst) TeachInit() error { return t.rec.init() }

func (t *TeachplayConst) TeachStart() error { return t.rec.start() }

func (t *TeachplayConst) TeachTrigger(tm float64, pos []float64) { t.rec.trigger(tm, pos) }

func (t *TeachplayConst) TeachFlush() error { return t.rec.flush() }

func (t *TeachplayConst) TeachEnd() error {
	samples, err := t.rec.end()
	if err != nil {
		return err
	}
	return t.build(samples)
}

func (t *TeachplayConst) Start() error {
	if t.spline == nil {
		return errNotTaught
	}
	t.started()
	return nil
}

func (t *TeachplayConst) Eval(tm float64, ref []float64) Status {
	if t.spline == nil {
		return t.finish()
	}
	if tm > t.profile.Duration() {
		t.spline.Eval(t.spline.Length(), ref)
		return t.finish()
	}
	t.evaluating()
	s, _ := t.profile.Eval(tm)
	t.spline.Eval(s, ref)
	return Running
}

func (t *TeachplayConst) StartPosition() []float64 { return append([]float64(nil), t.start...) }

func (t *TeachplayConst) TotalTime() float64 {
	if t.profile == nil {
		return 0
	}
	return t.profile.Duration()
}

func (t *TeachplayConst) NumPoints() int { return len(t.samples) }

func (t *TeachplayConst) Samples() []Sample { return cloneSamples(t.samples) }
