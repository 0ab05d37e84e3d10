package wam_test

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/san-kum/wamctl/internal/bus"
	"github.com/san-kum/wamctl/internal/config"
	"github.com/san-kum/wamctl/internal/control"
	"github.com/san-kum/wamctl/internal/datalog"
	"github.com/san-kum/wamctl/internal/metrics"
	"github.com/san-kum/wamctl/internal/refgen"
	"github.com/san-kum/wamctl/internal/robot"
	"github.com/san-kum/wamctl/internal/storage"
	"github.com/san-kum/wamctl/internal/wam"
)

type harness struct {
	cfg *config.Config
	sim *bus.Sim
	s   *wam.Session
	now time.Time
}

func newHarness(cfg *config.Config, wrap func(wam.Bus) wam.Bus, opts ...wam.Option) *harness {
	GinkgoHelper()
	sim, err := bus.NewSim(cfg)
	Expect(err).NotTo(HaveOccurred())
	var b wam.Bus = sim
	if wrap != nil {
		b = wrap(sim)
	}
	s, err := wam.New(cfg, b, opts...)
	Expect(err).NotTo(HaveOccurred())
	return &harness{cfg: cfg, sim: sim, s: s, now: time.Unix(1000, 0)}
}

func (h *harness) tick(n int) {
	GinkgoHelper()
	for i := 0; i < n; i++ {
		Expect(h.s.Tick(h.now)).To(Succeed())
		h.now = h.now.Add(h.cfg.Period)
	}
}

// untilDone ticks until the refgen queue drains and returns the tick count.
func (h *harness) untilDone(max int) int {
	GinkgoHelper()
	for i := 0; i < max; i++ {
		if h.s.MoveIsDone() {
			return i
		}
		h.tick(1)
	}
	Fail("trajectory did not finish")
	return max
}

func position(h *harness) float64 {
	return h.s.Snapshot().JointPosition[0]
}

var _ = Describe("Session", func() {
	var h *harness

	BeforeEach(func() {
		h = newHarness(config.GetPreset("link1"), nil)
	})

	Describe("construction", func() {
		It("rejects a bus with a different joint count", func() {
			sim, err := bus.NewSim(config.GetPreset("link1"))
			Expect(err).NotTo(HaveOccurred())
			_, err = wam.New(config.GetPreset("wam4"), sim)
			Expect(err).To(MatchError(robot.ErrConfig))
		})

		It("rejects an invalid config", func() {
			cfg := config.GetPreset("link1")
			cfg.Period = 0
			_, err := wam.New(cfg, h.sim)
			Expect(err).To(MatchError(robot.ErrConfig))
		})

		It("starts idle on the joint controller", func() {
			snap := h.s.Snapshot()
			Expect(snap.Controller).To(Equal(control.NameJoint))
			Expect(snap.Holding).To(BeFalse())
			Expect(snap.GravityComp).To(BeTrue())
			Expect(h.s.MoveIsDone()).To(BeTrue())
			Expect(h.s.Controllers()).To(Equal([]string{
				control.NameJoint, control.NameCartesianXYZ, control.NameCartesianXYZQ, control.NameOrientation,
			}))
		})
	})

	Describe("holding", func() {
		It("holds a horizontal link against gravity", func() {
			cfg := config.GetPreset("link1")
			cfg.Gravity.World = [3]float64{0, 0, -9.81}
			h = newHarness(cfg, nil)
			h.s.Hold()
			h.tick(500)

			snap := h.s.Snapshot()
			Expect(snap.JointPosition[0]).To(BeNumerically("~", 0, 1e-6))
			Expect(snap.Torque[0]).To(BeNumerically("~", -0.981, 1e-4))

			tau := make([]float64, 1)
			Expect(h.s.Dynamics().EvalInverse([]float64{0}, []float64{0}, tau)).To(Succeed())
			Expect(tau[0]).To(BeNumerically("~", -0.981, 1e-6))
		})

		It("lets the link fall when idle without gravity compensation", func() {
			h.s.SetGravityComp(false)
			h.tick(50)
			Expect(position(h)).To(BeNumerically(">", 0.01))
		})

		It("times every stage", func() {
			h.tick(3)
			snap := h.s.Snapshot()
			Expect(snap.Tick).To(BeEquivalentTo(3))
			Expect(snap.Time).To(BeNumerically("~", 0.004, 1e-12))
			Expect(snap.Stages).To(HaveLen(wam.NumStages))
			Expect(snap.Stages).To(HaveKey("setjtor"))
			Expect(testutil.ToFloat64(h.s.Collectors().Ticks)).To(Equal(3.0))
			Expect(h.s.LoopStats().Count).To(BeEquivalentTo(3))
		})
	})

	Describe("moves", func() {
		It("moves to a destination and settles there", func() {
			Expect(h.s.MoveTo([]float64{0.3})).To(Succeed())
			Expect(h.s.IsHolding()).To(BeTrue())
			Expect(h.s.MoveIsDone()).To(BeFalse())

			n := h.untilDone(5000)
			Expect(n).To(BeNumerically(">", 100))
			Expect(h.s.Snapshot().Reference[0]).To(BeNumerically("~", 0.3, 1e-12))
			h.tick(1000)
			Expect(position(h)).To(BeNumerically("~", 0.3, 1e-3))
			Expect(h.s.WaitMove(context.Background())).To(Succeed())
			Expect(testutil.ToFloat64(h.s.Collectors().RefgenCompletions.WithLabelValues("move"))).To(Equal(1.0))
		})

		It("replaces a running move", func() {
			Expect(h.s.MoveTo([]float64{0.3})).To(Succeed())
			h.tick(100)
			Expect(h.s.MoveTo([]float64{-0.2})).To(Succeed())
			h.untilDone(5000)
			h.tick(1000)
			Expect(position(h)).To(BeNumerically("~", -0.2, 1e-3))
		})

		It("stops waiting when the context ends", func() {
			Expect(h.s.MoveTo([]float64{0.3})).To(Succeed())
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			Expect(h.s.WaitMove(ctx)).To(MatchError(context.Canceled))
		})

		It("moves home on the joint controller only", func() {
			Expect(h.s.MoveTo([]float64{0.2})).To(Succeed())
			h.untilDone(5000)
			Expect(h.s.MoveHome()).To(Succeed())
			h.untilDone(5000)
			h.tick(500)
			Expect(position(h)).To(BeNumerically("~", 0, 1e-3))
		})

		It("validates the destination and the rates", func() {
			Expect(h.s.MoveTo([]float64{0.1, 0.2})).To(MatchError(robot.ErrDimensionMismatch))
			Expect(h.s.SetVelocity(0)).To(MatchError(robot.ErrConfig))
			Expect(h.s.SetAcceleration(-1)).To(MatchError(robot.ErrConfig))
			Expect(h.s.SetVelocity(1.5)).To(Succeed())
			Expect(h.s.Velocity()).To(Equal(1.5))
		})

		It("clears the queue on idle", func() {
			Expect(h.s.MoveTo([]float64{0.3})).To(Succeed())
			h.tick(10)
			h.s.Idle()
			Expect(h.s.MoveIsDone()).To(BeTrue())
			Expect(h.s.IsHolding()).To(BeFalse())
		})
	})

	Describe("refgens", func() {
		var tp refgen.Refgen

		BeforeEach(func() {
			var err error
			tp, err = h.s.Refgens().Load(refgen.KindTeachplay, []refgen.Sample{
				{Time: 0, Position: []float64{0.2}},
				{Time: 0.5, Position: []float64{0.3}},
				{Time: 1, Position: []float64{0.4}},
			}, refgen.Options{})
			Expect(err).NotTo(HaveOccurred())
		})

		It("moves to the refgen's start before running it", func() {
			Expect(h.s.Use(tp)).To(Succeed())
			h.untilDone(5000)
			Expect(testutil.ToFloat64(h.s.Collectors().RefgenCompletions.WithLabelValues("move"))).To(Equal(1.0))
			Expect(testutil.ToFloat64(h.s.Collectors().RefgenCompletions.WithLabelValues(refgen.KindTeachplay))).To(Equal(1.0))
			h.tick(1000)
			Expect(position(h)).To(BeNumerically("~", 0.4, 1e-3))
		})

		It("refuses conflicting requests while a refgen runs", func() {
			Expect(h.s.Use(tp)).To(Succeed())
			h.tick(5)
			Expect(h.s.Use(tp)).To(MatchError(robot.ErrSequence))
			Expect(h.s.UseController(control.NameCartesianXYZ)).To(MatchError(robot.ErrSequence))
			_, err := h.s.ToggleController()
			Expect(err).To(MatchError(robot.ErrSequence))
			Expect(h.s.TeachStart()).To(MatchError(robot.ErrSequence))
		})
	})

	Describe("teaching", func() {
		BeforeEach(func() {
			cfg := config.GetPreset("link1")
			cfg.Teach.Decimation = 8
			h = newHarness(cfg, nil)
		})

		// demonstrate moves the link by hand at 0.5 rad/s for n ticks.
		demonstrate := func(n int) {
			for k := 0; k < n; k++ {
				q := 0.5 * float64(k) * h.cfg.Period.Seconds()
				Expect(h.sim.SetState([]float64{q}, []float64{0.5})).To(Succeed())
				h.tick(1)
			}
		}

		It("records a demonstration and plays it back", func() {
			Expect(h.s.TeachStart()).To(Succeed())
			Expect(h.s.IsTeaching()).To(BeTrue())
			demonstrate(500)
			Expect(h.s.Flush()).To(Succeed())
			Expect(h.s.TeachEnd()).To(Succeed())
			Expect(h.s.IsTeaching()).To(BeFalse())

			taught := h.s.Taught()
			Expect(taught).NotTo(BeNil())
			Expect(taught.(refgen.Timed).TotalTime()).To(BeNumerically("~", 0.992, 1e-9))
			Expect(taught.(refgen.Recorded).Samples()).To(HaveLen(63))

			Expect(h.s.Playback()).To(Succeed())
			h.untilDone(10000)
			h.tick(1000)
			Expect(position(h)).To(BeNumerically("~", 0.496, 1e-3))
		})

		It("enforces the teach sequence", func() {
			Expect(h.s.TeachEnd()).To(MatchError(robot.ErrSequence))
			Expect(h.s.Playback()).To(MatchError(robot.ErrNoTrajectory))

			h.s.Hold()
			Expect(h.s.TeachStart()).To(MatchError(robot.ErrSequence))
			h.s.Idle()

			Expect(h.s.TeachStart()).To(Succeed())
			Expect(h.s.TeachStart()).To(MatchError(robot.ErrSequence))
			Expect(h.s.MoveTo([]float64{0.1})).To(MatchError(robot.ErrSequence))
			Expect(h.s.UseController(control.NameOrientation)).To(MatchError(robot.ErrSequence))
			Expect(h.s.Playback()).To(MatchError(robot.ErrSequence))
		})

		It("rejects a refgen that cannot be taught", func() {
			m, err := refgen.NewMove([]float64{0}, nil, []float64{1}, 0.5, 0.5)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.s.TeachStartWith(m)).To(MatchError(robot.ErrNotTeachable))
			Expect(h.s.IsTeaching()).To(BeFalse())
		})

		It("teaches into a caller-supplied refgen", func() {
			tc, err := refgen.NewTeachplayConst(1, 100, 0.5, 0.5)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.s.TeachStartWith(tc)).To(Succeed())
			demonstrate(200)
			Expect(h.s.TeachEnd()).To(Succeed())
			Expect(h.s.Taught()).To(BeIdenticalTo(refgen.Refgen(tc)))
		})

		It("saves and loads the taught trajectory", func() {
			st := storage.New(GinkgoT().TempDir())
			Expect(h.s.SaveTaught(st, "wave")).To(MatchError(robot.ErrNoTrajectory))

			Expect(h.s.TeachStart()).To(Succeed())
			demonstrate(300)
			Expect(h.s.SaveTaught(st, "wave")).To(MatchError(robot.ErrSequence))
			Expect(h.s.TeachEnd()).To(Succeed())
			Expect(h.s.SaveTaught(st, "wave")).To(Succeed())

			before := h.s.Taught().(refgen.Recorded).Samples()
			Expect(h.s.LoadTaught(st, "wave")).To(Succeed())
			after := h.s.Taught().(refgen.Recorded).Samples()
			Expect(after).To(HaveLen(len(before)))
			Expect(after[len(after)-1].Position[0]).To(BeNumerically("~", before[len(before)-1].Position[0], 1e-12))
			Expect(h.s.LoadTaught(st, "missing")).To(MatchError(robot.ErrNoTrajectory))

			Expect(h.s.Playback()).To(Succeed())
			h.tick(5)
			Expect(h.s.SaveTaught(st, "wave2")).To(MatchError(robot.ErrSequence))
			Expect(h.s.LoadTaught(st, "wave")).To(MatchError(robot.ErrSequence))
		})
	})

	Describe("controllers", func() {
		BeforeEach(func() {
			h = newHarness(config.GetPreset("wam4"), nil)
		})

		It("hands the hold over to the next controller", func() {
			h.s.Hold()
			name, err := h.s.ToggleController()
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal(control.NameCartesianXYZ))

			snap := h.s.Snapshot()
			Expect(snap.Holding).To(BeTrue())
			Expect(snap.Space).To(Equal("xyz"))
			Expect(snap.Reference).To(HaveLen(3))
			for i := range snap.Reference {
				Expect(snap.Reference[i]).To(BeNumerically("~", snap.ToolPosition[i], 1e-12))
			}
			Expect(testutil.ToFloat64(h.s.Collectors().ActiveController.WithLabelValues(control.NameCartesianXYZ))).To(Equal(1.0))
			Expect(testutil.ToFloat64(h.s.Collectors().ActiveController.WithLabelValues(control.NameJoint))).To(Equal(0.0))
		})

		It("selects controllers by name", func() {
			Expect(h.s.UseController(control.NameCartesianXYZQ)).To(Succeed())
			Expect(h.s.Controller()).To(Equal(control.NameCartesianXYZQ))
			Expect(h.s.UseController("impedance")).To(MatchError(control.ErrUnknownController))
			Expect(h.s.MoveHome()).To(MatchError(robot.ErrSequence))
			dest := h.s.Snapshot().Position
			Expect(dest).To(HaveLen(7))
			dest[0] += 0.05
			Expect(h.s.MoveTo(dest)).To(Succeed())
		})

		It("logs the selection", func() {
			core, logs := observer.New(zap.InfoLevel)
			sim, err := bus.NewSim(h.cfg)
			Expect(err).NotTo(HaveOccurred())
			s, err := wam.New(h.cfg, sim, wam.WithLogger(zap.New(core)))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.UseController(control.NameOrientation)).To(Succeed())
			Expect(logs.FilterMessage("controller selected").Len()).To(Equal(1))
		})
	})

	Describe("observers and logging", func() {
		It("feeds attached metrics every tick", func() {
			tracking := metrics.NewTrackingError()
			h.s.AddMetric(tracking)
			h.s.AddMetric(metrics.NewKineticEnergy(h.s.Dynamics()))
			Expect(h.s.MoveTo([]float64{0.3})).To(Succeed())
			h.untilDone(5000)

			m := h.s.Metrics()
			Expect(m).To(HaveKey("tracking_error"))
			Expect(m["kinetic_energy"]).To(BeNumerically(">", 0))
			Expect(tracking.Max()).To(BeNumerically(">", 0))
		})

		It("samples the joint state into an attached log", func() {
			sink := datalog.NewMemorySink()
			l, err := h.s.AttachLog(sink, 64)
			Expect(err).NotTo(HaveOccurred())
			Expect(l.Fields()).To(Equal([]string{"time", "pos", "vel", "tau"}))
			_, err = h.s.AttachLog(sink, 64)
			Expect(err).To(MatchError(robot.ErrSequence))

			h.tick(40)
			Expect(h.s.Flush()).To(Succeed())
			Expect(h.s.DetachLog()).To(Succeed())
			recs := sink.Records()
			Expect(recs).To(HaveLen(40))
			Expect(recs[39][0]).To(BeNumerically("~", 0.078, 1e-12))
		})
	})

	Describe("bus failures", func() {
		It("reports a failed torque write with its tick and stage", func() {
			h = newHarness(config.GetPreset("link1"), func(b wam.Bus) wam.Bus {
				f := bus.NewFaulty(b)
				f.FailSetAfter = 3
				return f
			})
			h.tick(3)
			err := h.s.Tick(h.now)
			Expect(err).To(MatchError(robot.ErrBus))

			var te *robot.TickError
			Expect(errors.As(err, &te)).To(BeTrue())
			Expect(te.Tick).To(BeEquivalentTo(4))
			Expect(te.Stage).To(Equal("setjtor"))
			Expect(testutil.ToFloat64(h.s.Collectors().BusErrors)).To(Equal(1.0))
		})

		It("reports a failed feedback read", func() {
			h = newHarness(config.GetPreset("link1"), func(b wam.Bus) wam.Bus {
				f := bus.NewFaulty(b)
				f.FailUpdateAfter = 2
				return f
			})
			h.tick(1)
			err := h.s.Tick(h.now)
			var te *robot.TickError
			Expect(errors.As(err, &te)).To(BeTrue())
			Expect(te.Stage).To(Equal("update"))
		})
	})

	Describe("Run", func() {
		var mock *clock.Mock

		BeforeEach(func() {
			mock = clock.NewMock()
		})

		start := func(s *wam.Session) (context.CancelFunc, chan error) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- s.Run(ctx) }()
			return cancel, done
		}

		It("ticks on the clock and stops cleanly", func() {
			sim, err := bus.NewSim(h.cfg)
			Expect(err).NotTo(HaveOccurred())
			s, err := wam.New(h.cfg, sim, wam.WithClock(mock))
			Expect(err).NotTo(HaveOccurred())
			s.Hold()

			cancel, done := start(s)
			Eventually(func() uint64 {
				mock.Add(h.cfg.Period)
				return s.Snapshot().Tick
			}).Should(BeNumerically(">=", 5))
			Expect(s.Run(context.Background())).To(MatchError(robot.ErrSequence))

			cancel()
			Eventually(done).Should(Receive(BeNil()))
			Expect(s.Close()).To(Succeed())
		})

		It("ends with the tick error of a failing bus", func() {
			sim, err := bus.NewSim(h.cfg)
			Expect(err).NotTo(HaveOccurred())
			f := bus.NewFaulty(sim)
			f.FailSetAfter = 5
			s, err := wam.New(h.cfg, f, wam.WithClock(mock))
			Expect(err).NotTo(HaveOccurred())

			cancel, done := start(s)
			defer cancel()
			var runErr error
			Eventually(func() bool {
				mock.Add(h.cfg.Period)
				select {
				case runErr = <-done:
					return true
				default:
					return false
				}
			}).Should(BeTrue())
			Expect(runErr).To(MatchError(robot.ErrBus))
			Expect(runErr).To(BeAssignableToTypeOf(&robot.TickError{}))
		})
	})
})
