package systems

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/san-kum/wamctl/internal/bus"
	"github.com/san-kum/wamctl/internal/config"
	"github.com/san-kum/wamctl/internal/gravity"
	"github.com/san-kum/wamctl/internal/kinematics"
	"github.com/san-kum/wamctl/internal/robot"
	"github.com/san-kum/wamctl/internal/spatial"
)

// Reference and control signal kinds of the arm graph.
var (
	JointPositionTag   = NewTag[[]float64]("joint_position")
	ToolPositionTag    = NewTag[[]float64]("tool_position")
	ToolOrientationTag = NewTag[[]float64]("tool_orientation")

	JointTorqueTag = NewTag[[]float64]("joint_torque")
	ToolForceTag   = NewTag[[]float64]("tool_force")
	ToolTorqueTag  = NewTag[[]float64]("tool_torque")
)

// Arm is the standard WAM graph:
//
//	bus → kinematics → {tool position, tool orientation, gravity}
//	supervisor(joint PID | tool PID | orientation) + gravity → bus
//
// Nothing is commanded until one of the Track methods selects a
// controller; until then the sink receives an undefined torque and
// writes nothing.
type Arm struct {
	Source          *BusSource
	Sink            *BusSink
	Kinematics      *KinematicsBase
	ToolPosition    *ToolPosition
	ToolOrientation *ToolOrientation
	Gravity         *GravityCompensator
	Supervisor      *SupervisoryController
	Sum             *Summer

	JointPID    *PIDController
	ToolPID     *PIDController
	Orientation *ToolOrientationController

	JointAdapter  *Callback[[]float64, []float64]
	ForceAdapter  *ToolForceToJointTorque
	TorqueAdapter *ToolTorqueToJointTorque

	JointReference       *ExposedOutput[[]float64]
	ToolReference        *ExposedOutput[[]float64]
	OrientationReference *ExposedOutput[[]float64]

	em  *ExecutionManager
	dof int
}

func NewArm(cfg *config.Config, b bus.Bus, em *ExecutionManager) (*Arm, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.DOF() != cfg.DOF {
		return nil, errors.Wrapf(robot.ErrConfig, "bus has %d joints, config has %d", b.DOF(), cfg.DOF)
	}
	kin, err := kinematics.New(cfg.KinematicsConfig())
	if err != nil {
		return nil, err
	}
	kin.SetTool(spatial.Identity(), cfg.ToolOffset())
	grav, err := gravity.New(kin, cfg.Gravity.Mus)
	if err != nil {
		return nil, err
	}
	grav.SetWorldGravity(cfg.WorldGravity())

	a := &Arm{
		Source:               NewBusSource("bus_source", b),
		Sink:                 NewBusSink("bus_sink", b),
		Kinematics:           NewKinematicsBase("kinematics", kin),
		ToolPosition:         NewToolPosition("tool_position"),
		ToolOrientation:      NewToolOrientation("tool_orientation"),
		Gravity:              NewGravityCompensator("gravity", grav, cfg.DOF),
		Supervisor:           NewSupervisoryController("supervisor"),
		Orientation:          NewToolOrientationController("orientation", cfg.Controllers.Orientation.P, cfg.Controllers.Orientation.D),
		JointAdapter:         NewCallback("joint_torque", func(tau []float64) []float64 { return tau }),
		ForceAdapter:         NewToolForceToJointTorque("tool_force", cfg.DOF),
		TorqueAdapter:        NewToolTorqueToJointTorque("tool_torque", cfg.DOF),
		JointReference:       NewExposedOutput[[]float64]("joint_reference"),
		ToolReference:        NewExposedOutput[[]float64]("tool_reference"),
		OrientationReference: NewExposedOutput[[]float64]("orientation_reference"),
		em:                   em,
		dof:                  cfg.DOF,
	}
	if a.JointPID, err = NewPIDController("joint_pid", cfg.Controllers.Joint); err != nil {
		return nil, err
	}
	if a.ToolPID, err = NewPIDController("tool_pid", cfg.Controllers.CartesianXYZ); err != nil {
		return nil, err
	}
	if a.Sum, err = NewSummer("torque_sum", "++", cfg.DOF); err != nil {
		return nil, err
	}
	if err := a.wire(cfg.GravityComp); err != nil {
		return nil, err
	}
	if err := a.register(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Arm) wire(gcomp bool) error {
	kinOut := a.Kinematics.Kinematics
	var gravOut *Output[[]float64]
	if gcomp {
		gravOut = a.Gravity.Output
	} else {
		gravOut = NewConstant("no_gravity", make([]float64, a.dof)).Output
	}
	return multierr.Combine(
		Connect(a.Source.Position, a.Kinematics.Position),
		Connect(a.Source.Velocity, a.Kinematics.Velocity),
		Connect(kinOut, a.ToolPosition.Kinematics),
		Connect(kinOut, a.ToolOrientation.Kinematics),
		Connect(kinOut, a.Gravity.Kinematics),
		Connect(kinOut, a.Orientation.Kinematics),
		Connect(kinOut, a.ForceAdapter.Kinematics),
		Connect(kinOut, a.TorqueAdapter.Kinematics),
		Connect(a.Supervisor.Output, a.Sum.Inputs[0]),
		Connect(gravOut, a.Sum.Inputs[1]),
		Connect(a.Sum.Output, a.Sink.Torque),
	)
}

func (a *Arm) register() error {
	sc := a.Supervisor
	return multierr.Combine(
		RegisterFeedback(sc, JointPositionTag, a.Source.Position),
		RegisterFeedback(sc, ToolPositionTag, a.ToolPosition.Output),
		RegisterFeedback(sc, ToolOrientationTag, a.ToolOrientation.Output),
		RegisterAdapter(sc, JointTorqueTag, a.JointAdapter.Input, a.JointAdapter.Output),
		RegisterAdapter(sc, ToolForceTag, a.ForceAdapter.Input, a.ForceAdapter.Output),
		RegisterAdapter(sc, ToolTorqueTag, a.TorqueAdapter.Input, a.TorqueAdapter.Output),
		RegisterController[[]float64, []float64](sc, JointPositionTag, a.JointPID, JointTorqueTag),
		RegisterController[[]float64, []float64](sc, ToolPositionTag, a.ToolPID, ToolForceTag),
		RegisterController[[]float64, []float64](sc, ToolOrientationTag, a.Orientation, ToolTorqueTag),
	)
}

// Systems lists every system of the graph, sources first.
func (a *Arm) Systems() []System {
	return []System{
		a.Source, a.Kinematics, a.ToolPosition, a.ToolOrientation, a.Gravity,
		a.JointReference, a.ToolReference, a.OrientationReference,
		a.JointPID, a.ToolPID, a.Orientation,
		a.JointAdapter, a.ForceAdapter, a.TorqueAdapter,
		a.Supervisor, a.Sum, a.Sink,
	}
}

// Manage hands the graph to the execution manager. The sink is updated
// every cycle and pulls everything else.
func (a *Arm) Manage() error {
	for _, sys := range a.Systems() {
		if err := a.em.StartManaging(sys, sys == System(a.Sink)); err != nil {
			return err
		}
	}
	return nil
}

// Hold tracks the joint position read on the last cycle.
func (a *Arm) Hold() error {
	q, ok := a.Source.Position.Value()
	if !ok {
		return errors.Wrap(robot.ErrSequence, "no joint feedback yet")
	}
	return a.TrackJoint(q)
}

func (a *Arm) TrackJoint(q []float64) error {
	if err := robot.CheckDOF("joint reference", len(q), a.dof); err != nil {
		return err
	}
	a.JointReference.SetValue(append([]float64(nil), q...))
	return TrackReferenceSignal(a.Supervisor, JointPositionTag, a.JointReference.Output)
}

func (a *Arm) TrackToolPosition(p []float64) error {
	if err := robot.CheckDOF("tool position reference", len(p), 3); err != nil {
		return err
	}
	a.ToolReference.SetValue(append([]float64(nil), p...))
	return TrackReferenceSignal(a.Supervisor, ToolPositionTag, a.ToolReference.Output)
}

func (a *Arm) TrackToolOrientation(q []float64) error {
	if err := robot.CheckDOF("orientation reference", len(q), 4); err != nil {
		return err
	}
	a.OrientationReference.SetValue(append([]float64(nil), q...))
	return TrackReferenceSignal(a.Supervisor, ToolOrientationTag, a.OrientationReference.Output)
}
