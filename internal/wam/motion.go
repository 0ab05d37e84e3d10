package wam

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/san-kum/wamctl/internal/control"
	"github.com/san-kum/wamctl/internal/refgen"
	"github.com/san-kum/wamctl/internal/robot"
)

// Idle drops any trajectory and stops the active controller's effort.
func (s *Session) Idle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endMotion(ErrMoveCancelled)
	s.controllers.Active().Idle()
	s.logger.Debug("idle", zap.String("controller", s.controllers.Active().Name()))
}

// Hold drops any trajectory and holds the current position.
func (s *Session) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endMotion(ErrMoveCancelled)
	s.controllers.Active().Hold()
	s.logger.Debug("hold", zap.String("controller", s.controllers.Active().Name()))
}

func (s *Session) IsHolding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controllers.Active().IsHolding()
}

func (s *Session) SetGravityComp(on bool) { s.gcomp.Store(on) }

func (s *Session) GravityComp() bool { return s.gcomp.Load() }

// SetVelocity sets the cruise velocity of later moves.
func (s *Session) SetVelocity(v float64) error {
	if err := positive("velocity", v); err != nil {
		return err
	}
	s.velocity.Store(v)
	return nil
}

// SetAcceleration sets the ramp acceleration of later moves.
func (s *Session) SetAcceleration(a float64) error {
	if err := positive("acceleration", a); err != nil {
		return err
	}
	s.acceleration.Store(a)
	return nil
}

func (s *Session) Velocity() float64 { return s.velocity.Load() }

func (s *Session) Acceleration() float64 { return s.acceleration.Load() }

func positive(what string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return errors.Wrapf(robot.ErrConfig, "%s must be positive and finite, got %v", what, v)
	}
	return nil
}

// MoveTo replaces any running trajectory with a move of the active
// controller's reference to dest. The move continues from the current
// reference when holding, and from the measured position otherwise.
func (s *Session) MoveTo(dest []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveTo(dest)
}

func (s *Session) moveTo(dest []float64) error {
	if s.teaching.Load() {
		return errors.Wrap(robot.ErrSequence, "move while teaching")
	}
	ctrl := s.controllers.Active()
	if err := robot.CheckDOF("destination", len(dest), len(ctrl.Position())); err != nil {
		return err
	}
	m, err := refgen.NewMove(s.startPoint(ctrl), nil, dest, s.velocity.Load(), s.acceleration.Load())
	if err != nil {
		return err
	}
	return s.begin(ctrl, m)
}

// MoveHome moves to the configured home position. The joint controller
// must be active.
func (s *Session) MoveHome() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctrl := s.controllers.Active(); ctrl.Space() != control.JointSpace {
		return errors.Wrapf(robot.ErrSequence, "move home needs a joint-space controller, %s is active", ctrl.Name())
	}
	return s.moveTo(s.cfg.Home)
}

// MoveIsDone reports whether no trajectory is queued.
func (s *Session) MoveIsDone() bool { return !s.moving.Load() }

// WaitMove blocks until the current trajectory ends. It returns
// ErrMoveCancelled if the trajectory was replaced or cleared, and the
// refgen's error if a queued step could not start.
func (s *Session) WaitMove(ctx context.Context) error {
	s.mu.Lock()
	m := s.motion
	s.mu.Unlock()
	if m == nil {
		return nil
	}
	select {
	case <-m.done:
		return m.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Use runs r on the active controller. A refgen with a fixed start
// position is preceded by a move there.
func (s *Session) Use(r refgen.Refgen) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.use(r)
}

func (s *Session) use(r refgen.Refgen) error {
	if s.teaching.Load() {
		return errors.Wrap(robot.ErrSequence, "refgen while teaching")
	}
	if s.motion != nil {
		return errors.Wrap(robot.ErrSequence, "a refgen is already running")
	}
	ctrl := s.controllers.Active()
	sp, ok := r.(refgen.StartPositioner)
	if !ok {
		return s.begin(ctrl, r)
	}
	target := sp.StartPosition()
	if err := robot.CheckDOF(r.Name()+" start", len(target), len(ctrl.Position())); err != nil {
		return err
	}
	m, err := refgen.NewMove(s.startPoint(ctrl), nil, target, s.velocity.Load(), s.acceleration.Load())
	if err != nil {
		return err
	}
	return s.begin(ctrl, m, r)
}

func (s *Session) startPoint(ctrl control.Controller) []float64 {
	if ctrl.IsHolding() {
		return append([]float64(nil), ctrl.Reference()...)
	}
	return append([]float64(nil), ctrl.Position()...)
}

// begin starts the first refgen, replaces the queue, and makes sure the
// controller holds so the refgen can drive its reference.
func (s *Session) begin(ctrl control.Controller, rs ...refgen.Refgen) error {
	if err := rs[0].Start(); err != nil {
		return err
	}
	s.endMotion(ErrMoveCancelled)
	if !ctrl.IsHolding() {
		ctrl.Hold()
	}
	s.motion = newMotion(rs...)
	s.moving.Store(true)
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Name()
	}
	s.logger.Debug("refgen queued", zap.Strings("refgens", names), zap.String("controller", ctrl.Name()))
	return nil
}

// UseController makes name the active controller. A holding controller
// hands over by idling while the new one holds the current position.
func (s *Session) UseController(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.canSwitch(); err != nil {
		return err
	}
	prev := s.controllers.Active()
	next, err := s.controllers.Use(name)
	if err != nil {
		return err
	}
	s.handOver(prev, next)
	return nil
}

// ToggleController advances to the next controller and returns its name.
func (s *Session) ToggleController() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.canSwitch(); err != nil {
		return "", err
	}
	prev := s.controllers.Active()
	next := s.controllers.Toggle()
	s.handOver(prev, next)
	return next.Name(), nil
}

// Controller returns the active controller's name.
func (s *Session) Controller() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controllers.Active().Name()
}

// Controllers lists the available controllers in toggle order.
func (s *Session) Controllers() []string {
	return s.controllers.Names()
}

func (s *Session) canSwitch() error {
	if s.motion != nil {
		return errors.Wrap(robot.ErrSequence, "switch controller while a refgen runs")
	}
	if s.teaching.Load() {
		return errors.Wrap(robot.ErrSequence, "switch controller while teaching")
	}
	return nil
}

func (s *Session) handOver(prev, next control.Controller) {
	if prev != next {
		holding := prev.IsHolding()
		prev.Idle()
		next.Refresh()
		if holding {
			next.Hold()
		}
	}
	s.collectors.SetActive(s.controllers.Names(), next.Name())
	s.logger.Info("controller selected", zap.String("controller", next.Name()), zap.Stringer("space", next.Space()))
}
