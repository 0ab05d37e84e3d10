package main

import (
	"fmt"
	"math/rand"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/wamctl/internal/bus"
	"github.com/san-kum/wamctl/internal/dynamics"
	"github.com/san-kum/wamctl/internal/gravity"
	"github.com/san-kum/wamctl/internal/kinematics"
	"github.com/san-kum/wamctl/internal/metrics"
	"github.com/san-kum/wamctl/internal/wam"
)

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	kin, err := kinematics.New(cfg.KinematicsConfig())
	if err != nil {
		return err
	}
	dyn, err := dynamics.New(kin, cfg.LinkParams())
	if err != nil {
		return err
	}
	dyn.SetGravity(cfg.WorldGravity())
	grav, err := gravity.New(kin, cfg.Gravity.Mus)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(42))
	n := cfg.DOF
	q, qd, qdd, tau := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	randomize := func() {
		for j := 0; j < n; j++ {
			q[j] = rng.Float64()*2 - 1
			qd[j] = rng.Float64() - 0.5
			qdd[j] = rng.Float64() - 0.5
		}
	}

	measure := func(fn func() error) (metrics.Summary, error) {
		stats := metrics.NewLoopStats(benchIters, 0)
		for i := 0; i < benchIters; i++ {
			randomize()
			start := time.Now()
			if err := fn(); err != nil {
				return metrics.Summary{}, err
			}
			stats.Add(time.Since(start))
		}
		return stats.Summary(), nil
	}

	benches := []struct {
		name string
		fn   func() error
	}{
		{"kinematics", func() error { return kin.Eval(q, qd) }},
		{"inverse dynamics", func() error {
			if err := kin.Eval(q, qd); err != nil {
				return err
			}
			return dyn.EvalInverse(qd, qdd, tau)
		}},
		{"jsim", func() error {
			if err := kin.Eval(q, qd); err != nil {
				return err
			}
			dyn.EvalJSIM()
			return nil
		}},
		{"gravity", func() error {
			if err := kin.Eval(q, qd); err != nil {
				return err
			}
			grav.Eval(tau)
			return nil
		}},
	}

	fmt.Printf("benchmarking %s (%d dof, %d iterations)\n\n", runName(), n, benchIters)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tMIN\tMEAN\tP99\tMAX\tPER SEC")
	row := func(name string, s metrics.Summary) {
		rate := 0.0
		if s.Mean > 0 {
			rate = 1 / s.Mean
		}
		fmt.Fprintf(w, "%s\t%v\t%v\t%v\t%v\t%.0f\n", name, us(s.Min), us(s.Mean), us(s.P99), us(s.Max), rate)
	}
	for _, b := range benches {
		sum, err := measure(b.fn)
		if err != nil {
			return err
		}
		row(b.name, sum)
	}

	sim, err := bus.NewSim(cfg)
	if err != nil {
		return err
	}
	s, err := wam.New(cfg, sim)
	if err != nil {
		return err
	}
	s.Hold()
	now := time.Now()
	for i := 0; i < benchIters; i++ {
		if err := s.Tick(now); err != nil {
			return err
		}
		now = now.Add(cfg.Period)
	}
	sum := s.LoopStats()
	row("session tick", sum)
	if err := w.Flush(); err != nil {
		return err
	}

	snap := s.Snapshot()
	fmt.Println()
	p := &panel{title: "last tick stages"}
	for _, name := range wam.StageNames {
		p.add(name, "%v", snap.Stages[name])
	}
	p.add("overruns", "%d of %d", sum.Overruns, sum.Count)
	fmt.Println(p.String())
	return s.Close()
}

func us(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second)).Round(100 * time.Nanosecond)
}
