package refgen

import (
	"github.com/pkg/errors"

	"github.com/san-kum/wamctl/internal/datalog"
	"github.com/san-kum/wamctl/internal/robot"
)

// DefaultTeachCapacity is the per-buffer record count of a teach log.
const DefaultTeachCapacity = 1000

// recorder collects (time, position) samples through a datalog.Log.
type recorder struct {
	dof      int
	capacity int
	log      *datalog.Log
	sink     *datalog.MemorySink
	time     float64
	pos      []float64
	started  bool
}

func newRecorder(dof, capacity int) (*recorder, error) {
	if dof < 1 {
		return nil, errors.Wrapf(robot.ErrConfig, "teach: dof must be positive, got %d", dof)
	}
	if capacity < 1 {
		capacity = DefaultTeachCapacity
	}
	return &recorder{dof: dof, capacity: capacity, pos: make([]float64, dof)}, nil
}

func (r *recorder) init() error {
	r.log = datalog.New()
	r.sink = datalog.NewMemorySink()
	if err := r.log.AddScalar("time", &r.time); err != nil {
		return err
	}
	if err := r.log.AddField("pos", r.pos); err != nil {
		return err
	}
	r.started = false
	return r.log.Init(r.capacity, r.sink)
}

func (r *recorder) start() error {
	if r.log == nil {
		return errors.Wrap(robot.ErrSequence, "teach: start before init")
	}
	r.started = true
	return nil
}

func (r *recorder) trigger(t float64, pos []float64) {
	if !r.started {
		return
	}
	r.time = t
	copy(r.pos, pos)
	r.log.Trigger()
}

func (r *recorder) flush() error {
	if r.log == nil {
		return nil
	}
	return r.log.Flush()
}

func (r *recorder) end() ([]Sample, error) {
	if r.log == nil {
		return nil, errors.Wrap(robot.ErrSequence, "teach: end before init")
	}
	r.started = false
	if err := r.log.Finish(); err != nil {
		return nil, err
	}
	recs := r.sink.Records()
	samples := make([]Sample, len(recs))
	for i, rec := range recs {
		samples[i] = Sample{Time: rec[0], Position: append([]float64(nil), rec[1:]...)}
	}
	r.log = nil
	return samples, nil
}

func (r *recorder) dropped() uint64 {
	if r.log == nil {
		return 0
	}
	return r.log.Dropped()
}

// normalize rebases sample times to the first sample and drops samples
// whose time does not increase.
func normalize(samples []Sample, dof int) ([]Sample, error) {
	if len(samples) == 0 {
		return nil, errors.Wrap(robot.ErrNoTrajectory, "teach: no samples")
	}
	t0 := samples[0].Time
	out := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if err := robot.CheckDOF("sample", len(s.Position), dof); err != nil {
			return nil, err
		}
		t := s.Time - t0
		if len(out) > 0 && t <= out[len(out)-1].Time {
			continue
		}
		out = append(out, Sample{Time: t, Position: append([]float64(nil), s.Position...)})
	}
	return out, nil
}
