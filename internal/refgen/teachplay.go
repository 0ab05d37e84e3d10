package refgen

import (
	"github.com/san-kum/wamctl/internal/spline"
)

const KindTeachplay = "teachplay"

// Teachplay replays a taught trajectory at its recorded timing through a
// time-parameterized spline.
type Teachplay struct {
	lifecycle
	dof     int
	rec     *recorder
	samples []Sample
	spline  *spline.Spline
	start   []float64
}

// NewTeachplay returns an empty refgen ready to be taught.
func NewTeachplay(dof, capacity int) (*Teachplay, error) {
	rec, err := newRecorder(dof, capacity)
	if err != nil {
		return nil, err
	}
	return &Teachplay{dof: dof, rec: rec}, nil
}

// LoadTeachplay builds a playback refgen from stored samples.
func LoadTeachplay(samples []Sample) (*Teachplay, error) {
	if len(samples) == 0 {
		_, err := normalize(samples, 0)
		return nil, err
	}
	t, err := NewTeachplay(len(samples[0].Position), 0)
	if err != nil {
		return nil, err
	}
	if err := t.build(samples); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Teachplay) build(samples []Sample) error {
	norm, err := normalize(samples, t.dof)
	if err != nil {
		return err
	}
	sp := spline.New(norm[0].Position, spline.External)
	for _, s := range norm[1:] {
		if err := sp.Add(s.Position, s.Time); err != nil {
			return err
		}
	}
	if err := sp.Init(nil, nil); err != nil {
		return err
	}
	t.samples = norm
	t.spline = sp
	t.start = sp.Start()
	t.state = Uninitialized
	return nil
}

func (t *Teachplay) Name() string { return KindTeachplay }

func (t *Teachplay) Kind() string { return KindTeachplay }

func (t *Teachplay) TeachInit() error { return t.rec.init() }

func (t *Teachplay) TeachStart() error { return t.rec.start() }

func (t *Teachplay) TeachTrigger(tm float64, pos []float64) { t.rec.trigger(tm, pos) }

func (t *Teachplay) TeachFlush() error { return t.rec.flush() }

// TeachEnd freezes the log and converts it to a playback spline.
func (t *Teachplay) TeachEnd() error {
	samples, err := t.rec.end()
	if err != nil {
		return err
	}
	return t.build(samples)
}

// TeachDropped reports samples lost while teaching.
func (t *Teachplay) TeachDropped() uint64 { return t.rec.dropped() }

func (t *Teachplay) Start() error {
	if t.spline == nil {
		return errNotTaught
	}
	t.started()
	return nil
}

func (t *Teachplay) Eval(tm float64, ref []float64) Status {
	if t.spline == nil {
		return t.finish()
	}
	if tm > t.spline.Length() {
		t.spline.Eval(t.spline.Length(), ref)
		return t.finish()
	}
	t.evaluating()
	t.spline.Eval(tm, ref)
	return Running
}

func (t *Teachplay) StartPosition() []float64 { return append([]float64(nil), t.start...) }

func (t *Teachplay) TotalTime() float64 {
	if t.spline == nil {
		return 0
	}
	return t.spline.Length()
}

func (t *Teachplay) NumPoints() int { return len(t.samples) }

func (t *Teachplay) Samples() []Sample { return cloneSamples(t.samples) }

func cloneSamples(in []Sample) []Sample {
	out := make([]Sample, len(in))
	for i, s := range in {
		out[i] = Sample{Time: s.Time, Position: append([]float64(nil), s.Position...)}
	}
	return out
}
