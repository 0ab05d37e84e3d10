package wam

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/san-kum/wamctl/internal/refgen"
	"github.com/san-kum/wamctl/internal/robot"
)

// TrajectoryStore persists taught trajectories by name.
type TrajectoryStore interface {
	SaveTrajectory(name, kind string, samples []refgen.Sample) error
	LoadTrajectory(name string) (string, []refgen.Sample, error)
}

// TeachStart records the active controller's position into a new
// teachplay refgen. The arm must be idle so it can be moved by hand.
func (s *Session) TeachStart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.canTeach(); err != nil {
		return err
	}
	r, err := s.refgens.NewTeachable(refgen.KindTeachplay, len(s.controllers.Active().Position()), s.teachOptions())
	if err != nil {
		return err
	}
	return s.beginTeach(r)
}

// TeachStartWith records into r, which must implement refgen.Teachable.
func (s *Session) TeachStartWith(r refgen.Refgen) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.canTeach(); err != nil {
		return err
	}
	return s.beginTeach(r)
}

func (s *Session) canTeach() error {
	switch {
	case s.teaching.Load():
		return errors.Wrap(robot.ErrSequence, "already teaching")
	case s.motion != nil:
		return errors.Wrap(robot.ErrSequence, "teach while a refgen runs")
	case s.controllers.Active().IsHolding():
		return errors.Wrap(robot.ErrSequence, "teach while holding")
	}
	return nil
}

func (s *Session) teachOptions() refgen.Options {
	return refgen.Options{Velocity: s.cfg.Teach.Velocity, Acceleration: s.cfg.Teach.Acceleration}
}

func (s *Session) beginTeach(r refgen.Refgen) error {
	t, ok := r.(refgen.Teachable)
	if !ok {
		return errors.Wrapf(robot.ErrNotTeachable, "%s", r.Name())
	}
	if err := t.TeachInit(); err != nil {
		return err
	}
	if err := t.TeachStart(); err != nil {
		return err
	}
	s.teach = t
	s.taught = r
	s.teachStart = s.elapsed
	s.teachTicks = 0
	s.teaching.Store(true)
	s.logger.Info("teach started", zap.String("refgen", r.Name()), zap.Uint64("decimation", s.decimation))
	return nil
}

// TeachEnd stops recording and builds the taught trajectory.
func (s *Session) TeachEnd() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.teaching.Load() {
		return errors.Wrap(robot.ErrSequence, "not teaching")
	}
	s.teaching.Store(false)
	t := s.teach
	s.teach = nil

	s.teachMu.Lock()
	err := t.TeachEnd()
	s.teachMu.Unlock()
	if err != nil {
		s.taught = nil
		return errors.Wrap(err, "teach end")
	}
	fields := []zap.Field{zap.String("refgen", s.taught.Name())}
	if tt, ok := s.taught.(refgen.Timed); ok {
		fields = append(fields, zap.Float64("duration", tt.TotalTime()))
	}
	s.logger.Info("teach ended", fields...)
	return nil
}

func (s *Session) IsTeaching() bool { return s.teaching.Load() }

// Taught returns the last taught or loaded refgen, or nil.
func (s *Session) Taught() refgen.Refgen {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taught
}

// Playback runs the taught refgen, moving to its start first.
func (s *Session) Playback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taught == nil {
		return errors.Wrap(robot.ErrNoTrajectory, "nothing taught or loaded")
	}
	return s.use(s.taught)
}

// SaveTaught writes the taught trajectory to st under name.
func (s *Session) SaveTaught(st TrajectoryStore, name string) error {
	s.mu.Lock()
	r := s.taught
	err := s.taughtIdle()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if r == nil {
		return errors.Wrap(robot.ErrNoTrajectory, "nothing taught or loaded")
	}
	rec, ok := r.(refgen.Recorded)
	if !ok {
		return errors.Wrapf(robot.ErrNotTeachable, "%s cannot be saved", r.Name())
	}
	if err := st.SaveTrajectory(name, rec.Kind(), rec.Samples()); err != nil {
		return err
	}
	s.logger.Info("trajectory saved", zap.String("name", name), zap.String("kind", rec.Kind()))
	return nil
}

// LoadTaught replaces the taught refgen with the trajectory stored under
// name.
func (s *Session) LoadTaught(st TrajectoryStore, name string) error {
	s.mu.Lock()
	err := s.taughtIdle()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	kind, samples, err := st.LoadTrajectory(name)
	if err != nil {
		return err
	}
	r, err := s.refgens.Load(kind, samples, s.teachOptions())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.taughtIdle(); err != nil {
		return err
	}
	s.taught = r
	s.logger.Info("trajectory loaded", zap.String("name", name), zap.String("kind", kind), zap.Int("samples", len(samples)))
	return nil
}

// taughtIdle rejects persistence while the taught refgen is recording or
// queued.
func (s *Session) taughtIdle() error {
	if s.teaching.Load() {
		return errors.Wrap(robot.ErrSequence, "trajectory is being taught")
	}
	if s.taught != nil && s.motion != nil && s.motion.contains(s.taught) {
		return errors.Wrap(robot.ErrSequence, "trajectory is playing")
	}
	return nil
}
