package systems_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/wamctl/internal/control"
	"github.com/san-kum/wamctl/internal/robot"
	"github.com/san-kum/wamctl/internal/systems"
)

func newManager() *systems.ExecutionManager {
	GinkgoHelper()
	em, err := systems.NewExecutionManager(2 * time.Millisecond)
	Expect(err).NotTo(HaveOccurred())
	return em
}

func value(o *systems.Output[[]float64]) []float64 {
	GinkgoHelper()
	v, ok := o.Value()
	Expect(ok).To(BeTrue(), "output is undefined")
	return v
}

var _ = Describe("Ports", func() {
	var (
		a, b *systems.Constant[[]float64]
		g    *systems.Gain
	)

	BeforeEach(func() {
		a = systems.NewConstant("a", []float64{1, 2})
		b = systems.NewConstant("b", []float64{3, 4})
		var err error
		g, err = systems.NewGain("g", 2)
		Expect(err).NotTo(HaveOccurred())
	})

	It("refuses a second source for one input", func() {
		Expect(systems.Connect(a.Output, g.Input)).To(Succeed())
		err := systems.Connect(b.Output, g.Input)
		Expect(err).To(MatchError(systems.ErrAlreadyConnected))
		Expect(err).To(MatchError(robot.ErrSequence))

		v, err := g.Input.Value()
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal([]float64{1, 2}))
	})

	It("replaces a source with Reconnect and ForceConnect", func() {
		Expect(systems.Reconnect(b.Output, g.Input)).To(MatchError(systems.ErrNotConnected))

		systems.ForceConnect(a.Output, g.Input)
		Expect(systems.Reconnect(b.Output, g.Input)).To(Succeed())
		Expect(g.Input.MustValue()).To(Equal([]float64{3, 4}))

		systems.ForceConnect(a.Output, g.Input)
		Expect(g.Input.MustValue()).To(Equal([]float64{1, 2}))
	})

	It("fails to disconnect an unconnected input", func() {
		Expect(systems.Disconnect(g.Input)).To(MatchError(systems.ErrNotConnected))
		Expect(systems.Connect(a.Output, g.Input)).To(Succeed())
		Expect(systems.Disconnect(g.Input)).To(Succeed())
		Expect(g.Input.IsConnected()).To(BeFalse())

		_, err := g.Input.Value()
		Expect(err).To(MatchError(systems.ErrNotConnected))
	})

	Describe("delegation", func() {
		It("reads through to the delegate", func() {
			e := systems.NewExposedOutput[[]float64]("e")
			Expect(e.Output.DelegateTo(a.Output)).To(Succeed())
			Expect(systems.Connect(e.Output, g.Input)).To(Succeed())
			Expect(g.Input.MustValue()).To(Equal([]float64{1, 2}))

			e.SetValue([]float64{9})
			Expect(e.Output.IsDelegated()).To(BeFalse())
			Expect(g.Input.MustValue()).To(Equal([]float64{9}))
		})

		It("rejects a delegation loop", func() {
			x := systems.NewExposedOutput[[]float64]("x")
			y := systems.NewExposedOutput[[]float64]("y")
			z := systems.NewExposedOutput[[]float64]("z")
			Expect(x.Output.DelegateTo(y.Output)).To(Succeed())
			Expect(y.Output.DelegateTo(z.Output)).To(Succeed())

			err := z.Output.DelegateTo(x.Output)
			Expect(err).To(MatchError(systems.ErrCycle))
			Expect(z.Output.IsDelegated()).To(BeFalse())
			Expect(x.Output.DelegateTo(x.Output)).To(MatchError(systems.ErrCycle))
		})
	})

	It("reports an undefined source", func() {
		e := systems.NewExposedOutput[[]float64]("e")
		Expect(systems.Connect(e.Output, g.Input)).To(Succeed())
		Expect(g.Input.ValueDefined()).To(BeFalse())
		_, err := g.Input.Value()
		Expect(err).To(MatchError(systems.ErrValueUndefined))
	})
})

var _ = Describe("ExecutionManager", func() {
	var em *systems.ExecutionManager

	BeforeEach(func() {
		em = newManager()
	})

	It("rejects a non-positive period", func() {
		_, err := systems.NewExecutionManager(0)
		Expect(err).To(MatchError(robot.ErrConfig))
	})

	It("pulls upstream systems from an always-updated sink", func() {
		src := systems.NewExposedOutput[[]float64]("src")
		g, err := systems.NewGain("g", 2, 3)
		Expect(err).NotTo(HaveOccurred())
		sum, err := systems.NewSummer("sum", "+-", 2)
		Expect(err).NotTo(HaveOccurred())
		offset := systems.NewConstant("offset", []float64{0.5, 0.5})

		Expect(systems.Connect(src.Output, g.Input)).To(Succeed())
		Expect(systems.Connect(g.Output, sum.Inputs[0])).To(Succeed())
		Expect(systems.Connect(offset.Output, sum.Inputs[1])).To(Succeed())
		for _, sys := range []systems.System{src, g, offset} {
			Expect(em.StartManaging(sys, false)).To(Succeed())
		}
		Expect(em.StartManaging(sum, true)).To(Succeed())

		Expect(em.RunExecutionCycle()).To(Succeed())
		_, ok := sum.Output.Value()
		Expect(ok).To(BeFalse(), "an undefined source must leave the sum undefined")

		src.SetValue([]float64{1, 1})
		Expect(em.RunExecutionCycle()).To(Succeed())
		Expect(value(sum.Output)).To(Equal([]float64{1.5, 2.5}))
		Expect(em.Cycles()).To(Equal(uint64(2)))

		src.SetUndefined()
		Expect(em.RunExecutionCycle()).To(Succeed())
		_, ok = g.Output.Value()
		Expect(ok).To(BeFalse())
	})

	It("surfaces a system failure from the cycle", func() {
		src := systems.NewConstant("src", []float64{1, 2, 3})
		g, err := systems.NewGain("g", 1, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(systems.Connect(src.Output, g.Input)).To(Succeed())
		Expect(em.StartManaging(g, true)).To(Succeed())

		err = em.RunExecutionCycle()
		Expect(err).To(MatchError(robot.ErrDimensionMismatch))
		Expect(g.Err()).To(HaveOccurred())
	})

	It("rejects invalid summer polarities", func() {
		_, err := systems.NewSummer("s", "+*", 1)
		Expect(err).To(MatchError(robot.ErrConfig))
		_, err = systems.NewSummer("s", "", 1)
		Expect(err).To(MatchError(robot.ErrConfig))
	})

	It("orders systems after their sources", func() {
		src := systems.NewConstant("src", []float64{1})
		g1, _ := systems.NewGain("g1", 2)
		g2, _ := systems.NewGain("g2", 3)
		Expect(systems.Connect(g1.Output, g2.Input)).To(Succeed())
		Expect(systems.Connect(src.Output, g1.Input)).To(Succeed())
		for _, sys := range []systems.System{g2, g1, src} {
			Expect(em.StartManaging(sys, false)).To(Succeed())
		}

		order, err := em.Validate()
		Expect(err).NotTo(HaveOccurred())
		Expect(order).To(Equal([]systems.System{src, g1, g2}))
	})

	It("detects a feedback loop", func() {
		g1, _ := systems.NewGain("g1", 2)
		g2, _ := systems.NewGain("g2", 3)
		Expect(systems.Connect(g1.Output, g2.Input)).To(Succeed())
		Expect(systems.Connect(g2.Output, g1.Input)).To(Succeed())
		Expect(em.StartManaging(g1, true)).To(Succeed())
		Expect(em.StartManaging(g2, false)).To(Succeed())

		_, err := em.Validate()
		Expect(err).To(MatchError(systems.ErrCycle))
		Expect(err).To(MatchError(robot.ErrConfig))
		Expect(em.Run(context.Background())).To(MatchError(systems.ErrCycle))
	})

	It("keeps a system with one manager", func() {
		c := systems.NewConstant("c", 1.0)
		Expect(em.StartManaging(c, false)).To(Succeed())
		Expect(newManager().StartManaging(c, false)).To(MatchError(robot.ErrSequence))

		c.DisconnectAll()
		Expect(c.IsExecutionManaged()).To(BeFalse())
		Expect(em.Managed()).To(BeEmpty())
	})

	It("detaches every port on DisconnectAll", func() {
		src := systems.NewConstant("src", []float64{1})
		g, _ := systems.NewGain("g", 2)
		sink, _ := systems.NewGain("sink", 1)
		Expect(systems.Connect(src.Output, g.Input)).To(Succeed())
		Expect(systems.Connect(g.Output, sink.Input)).To(Succeed())

		g.DisconnectAll()
		Expect(g.Input.IsConnected()).To(BeFalse())
		Expect(sink.Input.IsConnected()).To(BeFalse())
	})
})

var _ = Describe("PIDController", func() {
	var (
		em  *systems.ExecutionManager
		pid *systems.PIDController
	)

	build := func(g control.Gains) {
		var err error
		pid, err = systems.NewPIDController("pid", []control.Gains{g})
		Expect(err).NotTo(HaveOccurred())
		Expect(systems.Connect(systems.NewConstant("ref", []float64{1}).Output, pid.Reference)).To(Succeed())
		Expect(systems.Connect(systems.NewConstant("fb", []float64{0}).Output, pid.Feedback)).To(Succeed())
	}

	cycle := func() float64 {
		GinkgoHelper()
		Expect(em.RunExecutionCycle()).To(Succeed())
		return value(pid.Control)[0]
	}

	BeforeEach(func() {
		em = newManager()
	})

	It("integrates the previous error and differentiates over the period", func() {
		build(control.Gains{Kp: 2, Ki: 10, Kd: 0.1})
		Expect(em.StartManaging(pid, true)).To(Succeed())

		Expect(cycle()).To(BeNumerically("~", 52, 1e-9))
		Expect(cycle()).To(BeNumerically("~", 2.02, 1e-9))
		Expect(cycle()).To(BeNumerically("~", 2.04, 1e-9))
		Expect(pid.Integrator()[0]).To(BeNumerically("~", 0.04, 1e-12))

		pid.ResetIntegrator()
		Expect(cycle()).To(BeNumerically("~", 2.02, 1e-9))
	})

	It("saturates the integrator and the output", func() {
		build(control.Gains{Kp: 2, Ki: 10, Kd: 0.1, Limit: 0.03})
		Expect(pid.SetControlLimit([]float64{10})).To(Succeed())
		Expect(em.StartManaging(pid, true)).To(Succeed())

		Expect(cycle()).To(Equal(10.0))
		cycle()
		Expect(cycle()).To(BeNumerically("~", 2.03, 1e-9))
		Expect(pid.SetIntegratorState([]float64{0, 0})).To(MatchError(robot.ErrDimensionMismatch))
	})

	It("is proportional only without a manager", func() {
		build(control.Gains{Kp: 2, Ki: 10, Kd: 0.1})
		sum, err := systems.NewSummer("sum", "+", 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(systems.Connect(pid.Control, sum.Inputs[0])).To(Succeed())
		Expect(em.StartManaging(sum, true)).To(Succeed())

		Expect(em.RunExecutionCycle()).To(Succeed())
		Expect(value(sum.Output)).To(Equal([]float64{2}))
	})

	It("rejects bad gains", func() {
		_, err := systems.NewPIDController("pid", nil)
		Expect(err).To(MatchError(robot.ErrConfig))
	})
})
