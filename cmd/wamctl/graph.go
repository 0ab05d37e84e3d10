package main

import (
	"fmt"

	"github.com/guptarohit/asciigraph"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/wamctl/internal/bus"
	"github.com/san-kum/wamctl/internal/logging"
	"github.com/san-kum/wamctl/internal/systems"
)

func runGraph(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	sim, err := bus.NewSim(cfg)
	if err != nil {
		return err
	}
	em, err := systems.NewExecutionManager(cfg.Period, systems.WithLogger(logger))
	if err != nil {
		return err
	}
	arm, err := systems.NewArm(cfg, sim, em)
	if err != nil {
		return err
	}
	if err := arm.Manage(); err != nil {
		return err
	}
	order, err := em.Validate()
	if err != nil {
		return err
	}
	names := lo.Map(order, func(sys systems.System, _ int) string {
		return sys.Name()
	})
	logger.Debug("graph order", zap.Strings("systems", names))

	if err := em.RunExecutionCycle(); err != nil {
		return err
	}
	if target != "" {
		q, err := parseVector(target, cfg.DOF)
		if err != nil {
			return err
		}
		err = arm.TrackJoint(q)
	} else {
		err = arm.Hold()
	}
	if err != nil {
		return err
	}

	trace := make([][]float64, cfg.DOF)
	for i := 0; i < cycles; i++ {
		if err := em.RunExecutionCycle(); err != nil {
			return err
		}
		q, _ := arm.Source.Position.Value()
		for j := range trace {
			trace[j] = append(trace[j], q[j])
		}
	}

	for j, data := range trace {
		fmt.Println(asciigraph.Plot(data,
			asciigraph.Height(8),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("q%d vs cycle", j)),
		))
		fmt.Println()
	}

	q, _ := arm.Source.Position.Value()
	tool, _ := arm.ToolPosition.Output.Value()
	p := &panel{title: "systems graph"}
	p.add("systems", "%d", len(order))
	p.add("order", "%s", dimStyle.Render(fmt.Sprint(names)))
	p.add("tracking", "%s", arm.Supervisor.Active())
	p.add("cycles", "%d", em.Cycles())
	p.add("joints", "%s", formatVector(q))
	p.add("tool", "%s", formatVector(tool))
	p.add("torque", "%s", formatVector(sim.Torque()))
	p.add("sim time", "%.3fs", sim.Time())
	fmt.Println(p.String())
	return nil
}
