package wam

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/wamctl/internal/datalog"
	"github.com/san-kum/wamctl/internal/robot"
)

// Run ticks the session every period until ctx is done or a tick fails.
// A second goroutine flushes the attached log and the teach recorder every
// flush interval. Run returns nil when ctx ends it and the *robot.TickError
// of the failing tick otherwise.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.Wrap(robot.ErrSequence, "session is already running")
	}
	defer s.running.Store(false)

	s.logger.Info("control loop started", zap.Duration("period", s.period))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.loop(gctx) })
	g.Go(func() error { return s.flushLoop(gctx) })
	err := g.Wait()
	if ferr := s.Flush(); ferr != nil {
		s.logger.Warn("final flush failed", zap.Error(ferr))
	}

	sum := s.stats.Summary()
	fields := []zap.Field{
		zap.Uint64("ticks", sum.Count),
		zap.Uint64("overruns", sum.Overruns),
		zap.Duration("mean", seconds(sum.Mean)),
		zap.Duration("max", seconds(sum.Max)),
	}
	if err != nil {
		s.logger.Error("control loop stopped", append(fields, zap.Error(err))...)
		return err
	}
	s.logger.Info("control loop stopped", fields...)
	return nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func (s *Session) loop(ctx context.Context) error {
	ticker := s.clock.Ticker(s.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if err := s.Tick(now); err != nil {
				return err
			}
		}
	}
}

func (s *Session) flushLoop(ctx context.Context) error {
	ticker := s.clock.Ticker(s.cfg.Log.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				s.logger.Warn("flush failed", zap.Error(err))
			}
		}
	}
}

// Flush drains full buffers of the attached log and the teach recorder.
// It never blocks the control loop for longer than a pointer read.
func (s *Session) Flush() error {
	s.mu.Lock()
	l, t := s.log, s.teach
	s.mu.Unlock()

	var err error
	if l != nil {
		err = multierr.Append(err, l.Flush())
		s.countDropped(l)
	}
	if t != nil {
		s.teachMu.Lock()
		err = multierr.Append(err, t.TeachFlush())
		s.teachMu.Unlock()
	}
	return err
}

func (s *Session) countDropped(l *datalog.Log) {
	d := l.Dropped()
	if prev := s.logDropped.Swap(d); d > prev {
		s.collectors.DroppedRecords.Add(float64(d - prev))
	}
}

// AttachLog samples time, joint positions, velocities and torques into
// sink on every tick. A capacity below one uses the configured capacity.
func (s *Session) AttachLog(sink datalog.Sink, capacity int) (*datalog.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.log != nil {
		return nil, errors.Wrap(robot.ErrSequence, "a log is already attached")
	}
	if capacity < 1 {
		capacity = s.cfg.Log.Capacity
	}
	l := datalog.New()
	err := multierr.Combine(
		l.AddScalar("time", &s.elapsed),
		l.AddField("pos", s.jpos),
		l.AddField("vel", s.jvel),
		l.AddField("tau", s.jtor),
	)
	if err != nil {
		return nil, err
	}
	if err := l.Init(capacity, sink); err != nil {
		return nil, err
	}
	s.log = l
	s.logDropped.Store(0)
	s.logger.Debug("log attached", zap.Strings("fields", l.Fields()), zap.Int("capacity", capacity))
	return l, nil
}

// DetachLog stops sampling and writes every pending record to the sink.
func (s *Session) DetachLog() error {
	s.mu.Lock()
	l := s.log
	s.log = nil
	s.mu.Unlock()
	if l == nil {
		return nil
	}
	err := l.Finish()
	s.countDropped(l)
	return err
}

// Snapshot is a copy of the loop state after the last tick.
type Snapshot struct {
	Tick        uint64
	Time        float64
	Controller  string
	Space       string
	Holding     bool
	Moving      bool
	Teaching    bool
	GravityComp bool

	JointPosition []float64
	JointVelocity []float64
	Torque        []float64
	Position      []float64
	Reference     []float64
	ToolPosition  [3]float64

	Stages map[string]time.Duration
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctrl := s.controllers.Active()
	tool := s.kin.ToolPosition()
	snap := Snapshot{
		Tick:          s.tick,
		Time:          s.elapsed,
		Controller:    ctrl.Name(),
		Space:         ctrl.Space().String(),
		Holding:       ctrl.IsHolding(),
		Moving:        s.motion != nil,
		Teaching:      s.teaching.Load(),
		GravityComp:   s.gcomp.Load(),
		JointPosition: s.jpos.Clone(),
		JointVelocity: s.jvel.Clone(),
		Torque:        s.jtor.Clone(),
		Position:      append([]float64(nil), ctrl.Position()...),
		Reference:     append([]float64(nil), ctrl.Reference()...),
		ToolPosition:  [3]float64{tool.X, tool.Y, tool.Z},
		Stages:        make(map[string]time.Duration, NumStages),
	}
	for i, name := range StageNames {
		snap.Stages[name] = s.timings[i]
	}
	return snap
}

// Close cancels any trajectory, ends teaching, idles the controller and
// detaches the log. Stop Run before calling it.
func (s *Session) Close() error {
	s.mu.Lock()
	s.endMotion(ErrMoveCancelled)
	s.controllers.Active().Idle()
	teaching := s.teaching.Load()
	ticks := s.tick
	s.mu.Unlock()

	var err error
	if teaching {
		if terr := s.TeachEnd(); terr != nil && !errors.Is(terr, robot.ErrNoTrajectory) {
			err = multierr.Append(err, terr)
		}
	}
	err = multierr.Append(err, s.DetachLog())
	s.logger.Info("session closed", zap.Uint64("ticks", ticks))
	return err
}
