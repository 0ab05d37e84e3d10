package systems

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/san-kum/wamctl/internal/robot"
)

var (
	ErrNoController = errors.Wrap(robot.ErrConfig, "systems: no controller for reference")
	ErrNoFeedback   = errors.Wrap(robot.ErrConfig, "systems: no feedback for controller")
	ErrNoAdapter    = errors.Wrap(robot.ErrConfig, "systems: no adapter for control signal")
)

// Tag names a signal kind carried as values of type T, such as joint
// positions or tool forces. Two tags with the same name must agree on T.
type Tag[T any] struct{ name string }

func NewTag[T any](name string) Tag[T] { return Tag[T]{name: name} }

func (t Tag[T]) Name() string { return t.name }

// Controller turns a reference and matching feedback into a control signal.
type Controller[T, U any] interface {
	System
	ReferenceInput() *Input[T]
	FeedbackInput() *Input[T]
	ControlOutput() *Output[U]
}

// SupervisoryController picks a controller by the kind of reference it
// is asked to track, wires feedback and an adapter to it, and exposes
// the adapter's joint torques on Output.
type SupervisoryController struct {
	Base
	Output *Output[[]float64]

	feedback    map[string]any
	adapters    map[string]any
	controllers map[string]any
	active      string
}

func NewSupervisoryController(name string) *SupervisoryController {
	sc := &SupervisoryController{
		feedback:    make(map[string]any),
		adapters:    make(map[string]any),
		controllers: make(map[string]any),
	}
	sc.Init(sc, name)
	sc.Output = NewOutput[[]float64](&sc.Base)
	return sc
}

func (sc *SupervisoryController) Operate() {}

// Active names the reference tag being tracked, or "" before the first
// TrackReferenceSignal.
func (sc *SupervisoryController) Active() string { return sc.active }

func (sc *SupervisoryController) Controllers() []string {
	names := lo.Keys(sc.controllers)
	sort.Strings(names)
	return names
}

// RegisterFeedback makes out the feedback for controllers of tag.
func RegisterFeedback[T any](sc *SupervisoryController, tag Tag[T], out *Output[T]) error {
	if _, ok := sc.feedback[tag.name]; ok {
		return errors.Wrapf(robot.ErrConfig, "systems: feedback %q already registered", tag.name)
	}
	sc.feedback[tag.name] = out
	return nil
}

type adapter[U any] struct {
	in  *Input[U]
	out *Output[[]float64]
}

// RegisterAdapter converts control signals of tag into joint torques: the
// signal is fed to in and the torques are read from torque.
func RegisterAdapter[U any](sc *SupervisoryController, tag Tag[U], in *Input[U], torque *Output[[]float64]) error {
	if _, ok := sc.adapters[tag.name]; ok {
		return errors.Wrapf(robot.ErrConfig, "systems: adapter %q already registered", tag.name)
	}
	sc.adapters[tag.name] = &adapter[U]{in: in, out: torque}
	return nil
}

type binder[T any] interface {
	bind(sc *SupervisoryController, ref *Output[T]) error
}

type binding[T, U any] struct {
	tag     Tag[T]
	ctrl    Controller[T, U]
	control Tag[U]
}

// RegisterController makes ctrl the tracker for references of ref; its
// output is a control signal of kind control.
func RegisterController[T, U any](sc *SupervisoryController, ref Tag[T], ctrl Controller[T, U], control Tag[U]) error {
	if _, ok := sc.controllers[ref.name]; ok {
		return errors.Wrapf(robot.ErrConfig, "systems: controller for %q already registered", ref.name)
	}
	sc.controllers[ref.name] = &binding[T, U]{tag: ref, ctrl: ctrl, control: control}
	return nil
}

// TrackReferenceSignal routes ref through the controller registered for
// tag. Every lookup happens before any connection changes, so a failure
// leaves the graph as it was.
func TrackReferenceSignal[T any](sc *SupervisoryController, tag Tag[T], ref *Output[T]) error {
	entry, ok := sc.controllers[tag.name]
	if !ok {
		return errors.Wrapf(ErrNoController, "%q", tag.name)
	}
	b, ok := entry.(binder[T])
	if !ok {
		return errors.Wrapf(robot.ErrConfig, "systems: reference %q has a different value type", tag.name)
	}
	if err := b.bind(sc, ref); err != nil {
		return err
	}
	sc.active = tag.name
	return nil
}

func (b *binding[T, U]) bind(sc *SupervisoryController, ref *Output[T]) error {
	var fb *Output[T]
	if !b.ctrl.FeedbackInput().IsConnected() {
		out, ok := sc.feedback[b.tag.name].(*Output[T])
		if !ok {
			return errors.Wrapf(ErrNoFeedback, "%q", b.tag.name)
		}
		fb = out
	}
	a, ok := sc.adapters[b.control.name].(*adapter[U])
	if !ok {
		return errors.Wrapf(ErrNoAdapter, "%q", b.control.name)
	}

	if fb != nil {
		ForceConnect(fb, b.ctrl.FeedbackInput())
	}
	ForceConnect(ref, b.ctrl.ReferenceInput())
	ForceConnect(b.ctrl.ControlOutput(), a.in)
	return sc.Output.DelegateTo(a.out)
}
