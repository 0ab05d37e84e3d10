package wam

import (
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/wamctl/internal/refgen"
	"github.com/san-kum/wamctl/internal/robot"
)

// motion is the refgen queue. Each step gets its start time on the first
// tick that evaluates it.
type motion struct {
	steps []*step
	cur   int
	done  chan struct{}
	err   error
}

type step struct {
	r       refgen.Refgen
	start   float64
	started bool
}

func newMotion(rs ...refgen.Refgen) *motion {
	m := &motion{done: make(chan struct{})}
	for _, r := range rs {
		m.steps = append(m.steps, &step{r: r})
	}
	return m
}

func (m *motion) contains(r refgen.Refgen) bool {
	for _, st := range m.steps[m.cur:] {
		if st.r == r {
			return true
		}
	}
	return false
}

// Tick runs one control cycle at wall time now:
//
//	read feedback, forward kinematics, controller refresh, refgen,
//	controller effort, teach sample, gravity compensation, torque write,
//	log sample.
//
// Feedback and torque failures end the tick with a *robot.TickError.
func (s *Session) Tick(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.epoch = now
		s.started = true
	}
	s.elapsed = now.Sub(s.epoch).Seconds()
	s.tick++
	begin := s.clock.Now()
	mark := begin

	if err := s.bus.Update(s.jpos, s.jvel); err != nil {
		s.collectors.BusErrors.Inc()
		return s.tickError(StageUpdate, err)
	}
	mark = s.lap(StageUpdate, mark)

	if err := s.kin.Eval(s.jpos, s.jvel); err != nil {
		return s.tickError(StageKinematics, err)
	}
	ctrl := s.controllers.Active()
	ctrl.Refresh()
	mark = s.lap(StageKinematics, mark)

	if s.motion != nil {
		s.evalMotion(ctrl.Reference())
	}
	mark = s.lap(StageRefgen, mark)

	s.jtor.Zero()
	ctrl.Eval(s.jtor, s.elapsed)
	mark = s.lap(StageControl, mark)

	if s.teaching.Load() {
		if s.teachTicks%s.decimation == 0 {
			s.teach.TeachTrigger(s.elapsed-s.teachStart, ctrl.Position())
		}
		s.teachTicks++
	}
	mark = s.lap(StageTeach, mark)

	if s.gcomp.Load() {
		s.grav.Eval(s.jtor)
	}
	mark = s.lap(StageGcomp, mark)

	if err := s.bus.SetTorque(s.jtor); err != nil {
		s.collectors.BusErrors.Inc()
		return s.tickError(StageSetTorque, err)
	}
	mark = s.lap(StageSetTorque, mark)

	if s.log != nil {
		s.log.Trigger()
	}
	s.lap(StageLog, mark)

	if len(s.metrics) > 0 {
		s.frame.Time = s.elapsed
		s.frame.Position = ctrl.Position()
		s.frame.Velocity = s.jvel
		s.frame.Torque = s.jtor
		s.frame.Reference = ctrl.Reference()
		s.frame.Controller = ctrl.Name()
		s.frame.Holding = ctrl.IsHolding()
		for _, m := range s.metrics {
			m.Observe(&s.frame)
		}
	}

	s.collectors.Ticks.Inc()
	if s.stats.Add(s.clock.Since(begin)) {
		s.collectors.Overruns.Inc()
	}
	return nil
}

func (s *Session) lap(stage int, mark time.Time) time.Time {
	now := s.clock.Now()
	d := now.Sub(mark)
	s.timings[stage] = d
	s.stageObs[stage].Observe(d.Seconds())
	return now
}

func (s *Session) tickError(stage int, err error) error {
	return &robot.TickError{Tick: s.tick, Time: s.elapsed, Stage: StageNames[stage], Wrapped: err}
}

// evalMotion advances the queue. A finished step hands over to the next
// one within the same tick so the reference never stalls.
func (s *Session) evalMotion(ref []float64) {
	m := s.motion
	for m.cur < len(m.steps) {
		st := m.steps[m.cur]
		if !st.started {
			st.start = s.elapsed
			st.started = true
		}
		if st.r.Eval(s.elapsed-st.start, ref) == refgen.Running {
			return
		}
		s.collectors.RefgenCompletions.WithLabelValues(st.r.Name()).Inc()
		m.cur++
		if m.cur == len(m.steps) {
			break
		}
		if err := m.steps[m.cur].r.Start(); err != nil {
			s.logger.Warn("refgen failed to start", zap.String("refgen", m.steps[m.cur].r.Name()), zap.Error(err))
			s.endMotion(err)
			return
		}
	}
	s.endMotion(nil)
}

// endMotion clears the queue and releases WaitMove callers. The active
// controller keeps holding the last reference.
func (s *Session) endMotion(err error) {
	m := s.motion
	if m == nil {
		return
	}
	m.err = err
	close(m.done)
	s.motion = nil
	s.moving.Store(false)
}
