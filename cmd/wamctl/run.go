package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/wamctl/internal/bus"
	"github.com/san-kum/wamctl/internal/logging"
	"github.com/san-kum/wamctl/internal/metrics"
	"github.com/san-kum/wamctl/internal/robot"
	"github.com/san-kum/wamctl/internal/storage"
	"github.com/san-kum/wamctl/internal/wam"
)

// maxWaitTicks bounds a lockstep wait at ten simulated minutes of 2 ms ticks.
const maxWaitTicks = 300000

// stepper lets the scenario wait for motions the same way whether ticks
// come from the wall clock or are stepped in place.
type stepper interface {
	wait(ctx context.Context) error
	pause(ctx context.Context, ticks int) error
}

type lockstep struct {
	s      *wam.Session
	now    time.Time
	period time.Duration
}

func (l *lockstep) tick(n int) error {
	for i := 0; i < n; i++ {
		if err := l.s.Tick(l.now); err != nil {
			return err
		}
		l.now = l.now.Add(l.period)
	}
	return nil
}

func (l *lockstep) wait(ctx context.Context) error {
	for i := 0; !l.s.MoveIsDone(); i++ {
		if i == maxWaitTicks {
			return errors.Wrap(robot.ErrSequence, "trajectory did not finish")
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.tick(1); err != nil {
			return err
		}
	}
	return nil
}

func (l *lockstep) pause(ctx context.Context, ticks int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.tick(ticks)
}

// demonstrate drives the simulated arm by hand: every joint swings
// 0.3 rad around its current position over one sine period.
func (l *lockstep) demonstrate(sim *bus.Sim, seconds float64) error {
	q0 := l.s.Snapshot().JointPosition
	q := make([]float64, len(q0))
	qd := make([]float64, len(q0))
	n := int(seconds / l.period.Seconds())
	w := 2 * math.Pi / seconds
	for k := 0; k < n; k++ {
		t := float64(k) * l.period.Seconds()
		for j := range q {
			q[j] = q0[j] + 0.3*math.Sin(w*t)
			qd[j] = 0.3 * w * math.Cos(w*t)
		}
		if err := sim.SetState(q, qd); err != nil {
			return err
		}
		if err := l.tick(1); err != nil {
			return err
		}
	}
	return nil
}

type wallClock struct {
	s      *wam.Session
	period time.Duration
}

func (w *wallClock) wait(ctx context.Context) error { return w.s.WaitMove(ctx) }

func (w *wallClock) pause(ctx context.Context, ticks int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(ticks) * w.period):
		return nil
	}
}

func runName() string {
	if configFile != "" {
		return strings.TrimSuffix(filepath.Base(configFile), filepath.Ext(configFile))
	}
	return preset
}

func runSession(cmd *cobra.Command, args []string) error {
	if realtime && teachSeconds > 0 {
		return errors.New("--teach needs stepped mode; drop --realtime")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	sim, err := bus.NewSim(cfg)
	if err != nil {
		return err
	}
	tracking := metrics.NewTrackingError()
	effort := metrics.NewControlEffort()
	s, err := wam.New(cfg, sim, wam.WithLogger(logger), wam.WithMetrics(tracking, effort))
	if err != nil {
		return err
	}
	s.AddMetric(metrics.NewKineticEnergy(s.Dynamics()))
	if velocity > 0 {
		if err := s.SetVelocity(velocity); err != nil {
			return err
		}
	}
	if acceleration > 0 {
		if err := s.SetAcceleration(acceleration); err != nil {
			return err
		}
	}
	if controller != "" {
		if err := s.UseController(controller); err != nil {
			return err
		}
	}

	rw, err := st.CreateRun(storage.RunMetadata{
		Preset:     runName(),
		DOF:        cfg.DOF,
		Period:     cfg.Period.Seconds(),
		Integrator: cfg.Sim.Integrator,
		Controller: s.Controller(),
	})
	if err != nil {
		return err
	}
	lg, err := s.AttachLog(rw, 0)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	start := time.Now()
	var scenarioErr error
	if realtime {
		ws := &wallClock{s: s, period: cfg.Period}
		g, gctx := errgroup.WithContext(ctx)
		runCtx, cancel := context.WithCancel(gctx)
		g.Go(func() error { return s.Run(runCtx) })
		g.Go(func() error {
			defer cancel()
			return scenario(runCtx, s, st, sim, ws)
		})
		scenarioErr = g.Wait()
	} else {
		ls := &lockstep{s: s, now: time.Now(), period: cfg.Period}
		scenarioErr = scenario(ctx, s, st, sim, ls)
	}
	elapsed := time.Since(start)

	snap := s.Snapshot()
	err = multierr.Combine(scenarioErr, s.Close())
	m := s.Metrics()
	sum := s.LoopStats()
	m["tick_mean_us"] = sum.Mean * 1e6
	m["tick_max_us"] = sum.Max * 1e6
	err = multierr.Append(err, rw.Close(m, lg.Dropped()))
	logger.Info("run stored", zap.String("id", rw.ID()), zap.Uint64("dropped", lg.Dropped()))

	p := &panel{title: "run " + rw.ID()}
	p.add("ticks", "%d", snap.Tick)
	p.add("simulated", "%.3fs", snap.Time)
	p.add("wall", "%v", elapsed.Round(time.Millisecond))
	p.add("controller", "%s", snap.Controller)
	p.add("joints", "%s", formatVector(snap.JointPosition))
	p.add("tool", "%s", formatVector(snap.ToolPosition[:]))
	p.add("tracking max", "%.6f", tracking.Max())
	p.add("control effort", "%.4f (peak %.3f)", effort.Value(), effort.Peak())
	p.add("tick mean/p99", "%.1fµs / %.1fµs", sum.Mean*1e6, sum.P99*1e6)
	p.add("overruns", "%d", sum.Overruns)
	if err != nil {
		p.add("status", "%s", errStyle.Render(err.Error()))
	} else {
		p.add("status", "%s", okStyle.Render("ok"))
	}
	fmt.Println(p.String())
	return err
}

// scenario moves home, visits the waypoints, optionally teaches or loads
// a trajectory and plays it, then holds for the settle time.
func scenario(ctx context.Context, s *wam.Session, st *storage.Store, sim *bus.Sim, step stepper) error {
	if err := s.MoveHome(); err == nil {
		if err := step.wait(ctx); err != nil {
			return err
		}
	} else if !errors.Is(err, robot.ErrSequence) {
		return err
	}

	for _, wp := range waypoints {
		dest, err := parseVector(wp, len(s.Snapshot().Position))
		if err != nil {
			return err
		}
		if err := s.MoveTo(dest); err != nil {
			return err
		}
		if err := step.wait(ctx); err != nil {
			return err
		}
	}

	if teachSeconds > 0 {
		ls := step.(*lockstep)
		s.Idle()
		if err := s.TeachStart(); err != nil {
			return err
		}
		if err := ls.demonstrate(sim, teachSeconds); err != nil {
			return err
		}
		if err := multierr.Append(s.Flush(), s.TeachEnd()); err != nil {
			return err
		}
		if saveAs != "" {
			if err := s.SaveTaught(st, saveAs); err != nil {
				return err
			}
		}
		if err := s.Playback(); err != nil {
			return err
		}
		if err := step.wait(ctx); err != nil {
			return err
		}
	}

	if playName != "" {
		if err := s.LoadTaught(st, playName); err != nil {
			return err
		}
		if err := s.Playback(); err != nil {
			return err
		}
		if err := step.wait(ctx); err != nil {
			return err
		}
	}

	return step.pause(ctx, settleTicks)
}
