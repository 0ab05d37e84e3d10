package systems_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/wamctl/internal/bus"
	"github.com/san-kum/wamctl/internal/config"
	"github.com/san-kum/wamctl/internal/control"
	"github.com/san-kum/wamctl/internal/robot"
	"github.com/san-kum/wamctl/internal/systems"
)

var _ = Describe("SupervisoryController", func() {
	var (
		em      *systems.ExecutionManager
		sc      *systems.SupervisoryController
		pid     *systems.PIDController
		adapter *systems.Gain
		out     *systems.Summer
		ref     *systems.ExposedOutput[[]float64]
		fb      *systems.Constant[[]float64]

		position = systems.NewTag[[]float64]("position")
		force    = systems.NewTag[[]float64]("force")
	)

	BeforeEach(func() {
		em = newManager()
		sc = systems.NewSupervisoryController("sc")
		var err error
		pid, err = systems.NewPIDController("pid", []control.Gains{{Kp: 3}})
		Expect(err).NotTo(HaveOccurred())
		adapter, err = systems.NewGain("adapter", 2)
		Expect(err).NotTo(HaveOccurred())
		out, err = systems.NewSummer("out", "+", 1)
		Expect(err).NotTo(HaveOccurred())
		ref = systems.NewExposedOutput[[]float64]("ref")
		ref.SetValue([]float64{1})
		fb = systems.NewConstant("fb", []float64{0})

		Expect(systems.Connect(sc.Output, out.Inputs[0])).To(Succeed())
		Expect(em.StartManaging(out, true)).To(Succeed())
	})

	It("wires feedback, controller and adapter for the reference kind", func() {
		Expect(systems.RegisterFeedback(sc, position, fb.Output)).To(Succeed())
		Expect(systems.RegisterAdapter(sc, force, adapter.Input, adapter.Output)).To(Succeed())
		Expect(systems.RegisterController[[]float64, []float64](sc, position, pid, force)).To(Succeed())
		Expect(sc.Controllers()).To(Equal([]string{"position"}))

		Expect(em.RunExecutionCycle()).To(Succeed())
		_, ok := out.Output.Value()
		Expect(ok).To(BeFalse(), "nothing is tracked yet")

		Expect(systems.TrackReferenceSignal(sc, position, ref.Output)).To(Succeed())
		Expect(sc.Active()).To(Equal("position"))
		Expect(pid.Feedback.IsConnected()).To(BeTrue())

		Expect(em.RunExecutionCycle()).To(Succeed())
		Expect(value(out.Output)).To(Equal([]float64{6}))
	})

	It("rejects duplicate registrations", func() {
		Expect(systems.RegisterFeedback(sc, position, fb.Output)).To(Succeed())
		Expect(systems.RegisterFeedback(sc, position, fb.Output)).To(MatchError(robot.ErrConfig))
		Expect(systems.RegisterController[[]float64, []float64](sc, position, pid, force)).To(Succeed())
		Expect(systems.RegisterController[[]float64, []float64](sc, position, pid, force)).To(MatchError(robot.ErrConfig))
	})

	It("fails without a controller for the reference kind", func() {
		err := systems.TrackReferenceSignal(sc, position, ref.Output)
		Expect(err).To(MatchError(systems.ErrNoController))
		Expect(sc.Active()).To(BeEmpty())
	})

	It("fails on a reference of another value type", func() {
		Expect(systems.RegisterController[[]float64, []float64](sc, position, pid, force)).To(Succeed())
		scalar := systems.NewExposedOutput[float64]("scalar")
		err := systems.TrackReferenceSignal(sc, systems.NewTag[float64]("position"), scalar.Output)
		Expect(err).To(MatchError(robot.ErrConfig))
	})

	It("changes nothing when feedback or adapter is missing", func() {
		Expect(systems.RegisterController[[]float64, []float64](sc, position, pid, force)).To(Succeed())
		Expect(systems.RegisterAdapter(sc, force, adapter.Input, adapter.Output)).To(Succeed())

		err := systems.TrackReferenceSignal(sc, position, ref.Output)
		Expect(err).To(MatchError(systems.ErrNoFeedback))
		Expect(pid.Reference.IsConnected()).To(BeFalse())
		Expect(adapter.Input.IsConnected()).To(BeFalse())
		Expect(sc.Output.IsDelegated()).To(BeFalse())
	})

	It("uses feedback connected by hand", func() {
		Expect(systems.Connect(fb.Output, pid.Feedback)).To(Succeed())
		Expect(systems.RegisterController[[]float64, []float64](sc, position, pid, force)).To(Succeed())

		err := systems.TrackReferenceSignal(sc, position, ref.Output)
		Expect(err).To(MatchError(systems.ErrNoAdapter))
		Expect(pid.Reference.IsConnected()).To(BeFalse())

		Expect(systems.RegisterAdapter(sc, force, adapter.Input, adapter.Output)).To(Succeed())
		Expect(systems.TrackReferenceSignal(sc, position, ref.Output)).To(Succeed())
	})
})

var _ = Describe("Arm", func() {
	var (
		cfg *config.Config
		sim *bus.Sim
		em  *systems.ExecutionManager
		arm *systems.Arm
	)

	build := func() {
		GinkgoHelper()
		var err error
		sim, err = bus.NewSim(cfg)
		Expect(err).NotTo(HaveOccurred())
		em, err = systems.NewExecutionManager(cfg.Period)
		Expect(err).NotTo(HaveOccurred())
		arm, err = systems.NewArm(cfg, sim, em)
		Expect(err).NotTo(HaveOccurred())
		Expect(arm.Manage()).To(Succeed())
	}

	run := func(n int) {
		GinkgoHelper()
		for i := 0; i < n; i++ {
			Expect(em.RunExecutionCycle()).To(Succeed())
		}
	}

	BeforeEach(func() {
		cfg = config.GetPreset("link1")
	})

	It("validates as an acyclic graph", func() {
		build()
		order, err := em.Validate()
		Expect(err).NotTo(HaveOccurred())
		Expect(order).To(HaveLen(len(arm.Systems())))
	})

	It("commands nothing until a reference is tracked", func() {
		build()
		Expect(arm.TrackJoint([]float64{0, 0})).To(MatchError(robot.ErrDimensionMismatch))
		run(1)
		Expect(sim.Time()).To(BeZero())

		Expect(arm.Hold()).To(Succeed())
		Expect(arm.Supervisor.Active()).To(Equal(systems.JointPositionTag.Name()))
		run(1)
		Expect(sim.Time()).To(BeNumerically("~", cfg.Period.Seconds(), 1e-12))
	})

	It("holds the link against gravity", func() {
		build()
		run(1)
		Expect(arm.Hold()).To(Succeed())
		run(500)

		q, ok := arm.Source.Position.Value()
		Expect(ok).To(BeTrue())
		Expect(math.Abs(q[0])).To(BeNumerically("<", 1e-3))
		Expect(sim.Torque()[0]).To(BeNumerically("~", -0.9805, 1e-2))
	})

	It("sags without gravity compensation", func() {
		cfg.GravityComp = false
		build()
		run(1)
		Expect(arm.Hold()).To(Succeed())
		run(2000)

		q, _ := arm.Source.Position.Value()
		Expect(math.Abs(q[0])).To(BeNumerically(">", 0.01))
	})

	It("switches to tool-space tracking", func() {
		cfg = config.GetPreset("wam4")
		build()
		run(1)
		Expect(arm.Hold()).To(Succeed())
		run(10)

		p := append([]float64(nil), value(arm.ToolPosition.Output)...)
		Expect(arm.TrackToolPosition(p)).To(Succeed())
		Expect(arm.Supervisor.Active()).To(Equal(systems.ToolPositionTag.Name()))
		run(10)
		Expect(value(arm.ToolPosition.Output)).To(HaveLen(3))

		quat := append([]float64(nil), value(arm.ToolOrientation.Output)...)
		Expect(arm.TrackToolOrientation(quat)).To(Succeed())
		Expect(arm.Supervisor.Active()).To(Equal(systems.ToolOrientationTag.Name()))
		run(1)
		Expect(value(arm.TorqueAdapter.Output)).To(HaveLen(4))
	})
})
