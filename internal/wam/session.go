package wam

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/san-kum/wamctl/internal/config"
	"github.com/san-kum/wamctl/internal/control"
	"github.com/san-kum/wamctl/internal/datalog"
	"github.com/san-kum/wamctl/internal/dynamics"
	"github.com/san-kum/wamctl/internal/gravity"
	"github.com/san-kum/wamctl/internal/kinematics"
	"github.com/san-kum/wamctl/internal/metrics"
	"github.com/san-kum/wamctl/internal/refgen"
	"github.com/san-kum/wamctl/internal/robot"
	"github.com/san-kum/wamctl/internal/spatial"
)

// Bus reads joint feedback and writes joint torques.
type Bus interface {
	DOF() int
	Update(pos, vel []float64) error
	SetTorque(tau []float64) error
}

// Stages of one control tick, in execution order.
const (
	StageUpdate = iota
	StageKinematics
	StageRefgen
	StageControl
	StageTeach
	StageGcomp
	StageSetTorque
	StageLog
	NumStages
)

// StageNames labels the stage timings.
var StageNames = [NumStages]string{"update", "kinematics", "refgen", "control", "teach", "gcomp", "setjtor", "log"}

// ErrMoveCancelled is reported by WaitMove when the trajectory it waited
// on was replaced or cleared before it finished.
var ErrMoveCancelled = errors.New("wam: move cancelled")

const loopStatsSize = 1000

// Session is one arm under control: its model, the controller set, the
// refgen queue, and the teach and log state shared between the control
// loop and client calls.
//
// Tick and every client operation serialize on one mutex. Client
// operations only flip state and return; trajectories and teaching run in
// later ticks.
type Session struct {
	mu sync.Mutex

	cfg     *config.Config
	bus     Bus
	logger  *zap.Logger
	clock   clock.Clock
	period  time.Duration
	dof     int
	refgens *refgen.Registry

	jpos, jvel, jtor robot.Vector

	kin         *kinematics.Kinematics
	dyn         *dynamics.Dynamics
	grav        *gravity.Compensator
	controllers *control.Registry

	motion *motion

	teach      refgen.Teachable
	taught     refgen.Refgen
	teachStart float64
	teachTicks uint64
	decimation uint64
	teachMu    sync.Mutex

	log *datalog.Log

	velocity     atomic.Float64
	acceleration atomic.Float64
	gcomp        atomic.Bool
	teaching     atomic.Bool
	moving       atomic.Bool
	running      atomic.Bool

	epoch   time.Time
	started bool
	tick    uint64
	elapsed float64

	timings    [NumStages]time.Duration
	stats      *metrics.LoopStats
	registerer prometheus.Registerer
	collectors *metrics.Collectors
	stageObs   []prometheus.Observer
	metrics    []metrics.Metric
	frame      metrics.Frame
	logDropped atomic.Uint64
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithClock replaces the wall clock that paces Run and times the stages.
func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithRegisterer registers the session's Prometheus series with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Session) { s.registerer = reg }
}

func WithMetrics(ms ...metrics.Metric) Option {
	return func(s *Session) { s.metrics = append(s.metrics, ms...) }
}

// New builds the arm model and the controller set from cfg and reads the
// first feedback from bus. The joint controller starts active and idle.
func New(cfg *config.Config, bus Bus, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if bus.DOF() != cfg.DOF {
		return nil, errors.Wrapf(robot.ErrConfig, "bus has %d joints, config has %d", bus.DOF(), cfg.DOF)
	}

	s := &Session{
		cfg:        cfg,
		bus:        bus,
		logger:     zap.NewNop(),
		clock:      clock.New(),
		period:     cfg.Period,
		dof:        cfg.DOF,
		refgens:    refgen.NewRegistry(cfg.Teach.Capacity),
		jpos:       robot.NewVector(cfg.DOF),
		jvel:       robot.NewVector(cfg.DOF),
		jtor:       robot.NewVector(cfg.DOF),
		decimation: uint64(cfg.Teach.Decimation),
		stats:      metrics.NewLoopStats(loopStatsSize, cfg.Period),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registerer == nil {
		s.registerer = prometheus.NewRegistry()
	}
	s.collectors = metrics.NewCollectors(s.registerer)
	s.stageObs = s.collectors.Stages(StageNames[:])
	s.velocity.Store(cfg.Velocity)
	s.acceleration.Store(cfg.Acceleration)
	s.gcomp.Store(cfg.GravityComp)

	var err error
	if s.kin, err = kinematics.New(cfg.KinematicsConfig()); err != nil {
		return nil, err
	}
	s.kin.SetTool(spatial.Identity(), cfg.ToolOffset())
	if s.dyn, err = dynamics.New(s.kin, cfg.LinkParams()); err != nil {
		return nil, err
	}
	s.dyn.SetGravity(cfg.WorldGravity())
	if s.grav, err = gravity.New(s.kin, cfg.Gravity.Mus); err != nil {
		return nil, err
	}
	s.grav.SetWorldGravity(cfg.WorldGravity())

	if err := s.buildControllers(); err != nil {
		return nil, err
	}
	if err := s.sense(); err != nil {
		return nil, err
	}
	for _, c := range s.controllers.All() {
		c.Refresh()
	}
	s.collectors.SetActive(s.controllers.Names(), s.controllers.Active().Name())

	s.logger.Info("session ready",
		zap.Int("dof", s.dof),
		zap.Duration("period", s.period),
		zap.Strings("controllers", s.controllers.Names()),
		zap.Bool("gravity_comp", cfg.GravityComp),
	)
	return s, nil
}

func (s *Session) buildControllers() error {
	c := s.cfg.Controllers
	joint, err := control.NewJoint(s.jpos, s.jvel, c.Joint)
	if err != nil {
		return err
	}
	xyz, err := control.NewCartesianXYZ(s.kin, c.CartesianXYZ)
	if err != nil {
		return err
	}
	xyzq, err := control.NewCartesianXYZQ(s.kin, c.CartesianXYZQ.XYZ, c.CartesianXYZQ.Rot)
	if err != nil {
		return err
	}
	orient, err := control.NewOrientation(s.kin, c.Orientation)
	if err != nil {
		return err
	}
	s.controllers, err = control.NewRegistry(joint, xyz, xyzq, orient)
	return err
}

// sense reads the bus and refreshes the kinematics.
func (s *Session) sense() error {
	if err := s.bus.Update(s.jpos, s.jvel); err != nil {
		return err
	}
	return s.kin.Eval(s.jpos, s.jvel)
}

func (s *Session) DOF() int { return s.dof }

func (s *Session) Period() time.Duration { return s.period }

func (s *Session) Config() *config.Config { return s.cfg }

// Kinematics and Dynamics are evaluated by the control loop. Read them
// from an observer or while the loop is stopped.
func (s *Session) Kinematics() *kinematics.Kinematics { return s.kin }

func (s *Session) Dynamics() *dynamics.Dynamics { return s.dyn }

func (s *Session) Refgens() *refgen.Registry { return s.refgens }

// AddMetric attaches an observer that sees every tick.
func (s *Session) AddMetric(m metrics.Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, m)
}

// Metrics returns the current value of every attached metric.
func (s *Session) Metrics() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.metrics))
	for _, m := range s.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

func (s *Session) Collectors() *metrics.Collectors { return s.collectors }

// LoopStats summarizes recent tick durations.
func (s *Session) LoopStats() metrics.Summary {
	return s.stats.Summary()
}
