package systems

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/san-kum/wamctl/internal/robot"
)

var (
	ErrAlreadyConnected = errors.Wrap(robot.ErrSequence, "systems: input is already connected")
	ErrNotConnected     = errors.Wrap(robot.ErrSequence, "systems: input is not connected")
	ErrValueUndefined   = errors.New("systems: value is undefined")
	ErrCycle            = errors.Wrap(robot.ErrConfig, "systems: dependency cycle")
)

// System is a node of the signal-flow graph. Implementations embed Base
// and compute their outputs from their inputs in Operate.
type System interface {
	Name() string
	Operate()
	base() *Base
}

type inputPort interface {
	IsConnected() bool
	ValueDefined() bool
	pull(token uint64)
	sources() []*Base
	disconnect()
}

type outputPort interface {
	SetUndefined()
	release()
}

// Base carries the ports and execution bookkeeping of a System.
type Base struct {
	name    string
	self    System
	inputs  []inputPort
	outputs []outputPort
	em      *ExecutionManager
	token   uint64
	err     error
}

// Init binds b to the system that embeds it. Constructors call it before
// creating ports.
func (b *Base) Init(self System, name string) {
	b.self = self
	b.name = name
}

func (b *Base) base() *Base { return b }

func (b *Base) Name() string { return b.name }

// InputsValid reports whether every input is connected to a defined value.
func (b *Base) InputsValid() bool {
	for _, in := range b.inputs {
		if !in.ValueDefined() {
			return false
		}
	}
	return true
}

// InvalidateOutputs marks every output undefined so downstream systems
// skip their own Operate.
func (b *Base) InvalidateOutputs() {
	for _, out := range b.outputs {
		out.SetUndefined()
	}
}

// DisconnectAll detaches every port and leaves the execution manager.
func (b *Base) DisconnectAll() {
	if b.em != nil {
		b.em.StopManaging(b.self)
	}
	for _, in := range b.inputs {
		in.disconnect()
	}
	for _, out := range b.outputs {
		out.release()
	}
}

func (b *Base) ExecutionManager() *ExecutionManager { return b.em }

func (b *Base) IsExecutionManaged() bool { return b.em != nil }

// Period is the managing execution manager's period in seconds, or zero.
func (b *Base) Period() float64 {
	if b.em == nil {
		return 0
	}
	return b.em.Period().Seconds()
}

// Fail records err. The execution manager stops at the end of the cycle.
func (b *Base) Fail(err error) {
	if b.err == nil {
		b.err = errors.Wrapf(err, "system %s", b.name)
	}
}

func (b *Base) Err() error { return b.err }

// update brings b up to date for the cycle identified by token: inputs
// are pulled first, then Operate runs if they are all defined.
func (b *Base) update(token uint64) {
	if b.token == token {
		return
	}
	b.token = token
	for _, in := range b.inputs {
		in.pull(token)
	}
	if b.InputsValid() {
		b.self.Operate()
	} else {
		b.InvalidateOutputs()
	}
}

var nullMutex = &sync.Mutex{}

// mutex guards port mutation against a running execution cycle.
func (b *Base) mutex() *sync.Mutex {
	if b.em == nil {
		return nullMutex
	}
	return &b.em.mu
}

// Input receives values of type T from one Output.
type Input[T any] struct {
	parent *Base
	output *Output[T]
}

func NewInput[T any](parent *Base) *Input[T] {
	in := &Input[T]{parent: parent}
	parent.inputs = append(parent.inputs, in)
	return in
}

func (in *Input[T]) IsConnected() bool { return in.output != nil }

func (in *Input[T]) ValueDefined() bool {
	if in.output == nil {
		return false
	}
	_, ok := in.output.Value()
	return ok
}

// Value returns the connected output's value, following delegation.
func (in *Input[T]) Value() (T, error) {
	var zero T
	if in.output == nil {
		return zero, errors.Wrapf(ErrNotConnected, "input of %s", in.parent.name)
	}
	v, ok := in.output.Value()
	if !ok {
		return zero, errors.Wrapf(ErrValueUndefined, "input of %s", in.parent.name)
	}
	return v, nil
}

// MustValue is Value for use inside Operate, where InputsValid has
// already been checked.
func (in *Input[T]) MustValue() T {
	v, _ := in.output.Value()
	return v
}

func (in *Input[T]) pull(token uint64) {
	for o := in.output; o != nil; o = o.delegate {
		if o.parent != nil {
			o.parent.update(token)
		}
	}
}

func (in *Input[T]) sources() []*Base {
	var out []*Base
	for o := in.output; o != nil; o = o.delegate {
		if o.parent != nil {
			out = append(out, o.parent)
		}
	}
	return out
}

func (in *Input[T]) disconnect() {
	mu := in.parent.mutex()
	mu.Lock()
	defer mu.Unlock()
	if in.output != nil {
		in.output.removeInput(in)
		in.output = nil
	}
}

// Output publishes values of type T to any number of Inputs. An output
// may delegate to another output of the same type, in which case readers
// see the delegate's value.
type Output[T any] struct {
	parent     *Base
	value      T
	defined    bool
	delegate   *Output[T]
	delegators []*Output[T]
	inputs     []*Input[T]
}

// NewOutput returns an undefined output owned by parent. A nil parent is
// allowed for outputs driven from outside any system.
func NewOutput[T any](parent *Base) *Output[T] {
	o := &Output[T]{parent: parent}
	if parent != nil {
		parent.outputs = append(parent.outputs, o)
	}
	return o
}

func NewOutputWithValue[T any](parent *Base, v T) *Output[T] {
	o := NewOutput[T](parent)
	o.value = v
	o.defined = true
	return o
}

// SetValue defines the value and ends any delegation.
func (o *Output[T]) SetValue(v T) {
	o.value = v
	o.defined = true
	o.undelegate()
}

// SetUndefined clears the value and ends any delegation.
func (o *Output[T]) SetUndefined() {
	var zero T
	o.value = zero
	o.defined = false
	o.undelegate()
}

// Value follows the delegation chain and reports whether the value is
// defined.
func (o *Output[T]) Value() (T, bool) {
	r := o.resolve()
	return r.value, r.defined
}

func (o *Output[T]) resolve() *Output[T] {
	r := o
	for r.delegate != nil {
		r = r.delegate
	}
	return r
}

// DelegateTo makes o forward d's value. A delegation that would close a
// loop fails with ErrCycle and leaves o unchanged.
func (o *Output[T]) DelegateTo(d *Output[T]) error {
	mu := o.mutex()
	mu.Lock()
	defer mu.Unlock()
	for r := d; r != nil; r = r.delegate {
		if r == o {
			return errors.Wrapf(ErrCycle, "delegating output of %s", o.ownerName())
		}
	}
	o.undelegate()
	o.delegate = d
	d.delegators = append(d.delegators, o)
	return nil
}

func (o *Output[T]) Undelegate() {
	mu := o.mutex()
	mu.Lock()
	defer mu.Unlock()
	o.undelegate()
}

func (o *Output[T]) IsDelegated() bool { return o.delegate != nil }

func (o *Output[T]) undelegate() {
	if o.delegate == nil {
		return
	}
	o.delegate.delegators = removeItem(o.delegate.delegators, o)
	o.delegate = nil
}

func (o *Output[T]) removeInput(in *Input[T]) {
	o.inputs = removeItem(o.inputs, in)
}

// release drops every connection and delegation that refers to o.
func (o *Output[T]) release() {
	mu := o.mutex()
	mu.Lock()
	defer mu.Unlock()
	for _, in := range o.inputs {
		in.output = nil
	}
	o.inputs = nil
	for _, d := range o.delegators {
		d.delegate = nil
	}
	o.delegators = nil
	o.undelegate()
}

func (o *Output[T]) mutex() *sync.Mutex {
	if o.parent == nil {
		return nullMutex
	}
	return o.parent.mutex()
}

func (o *Output[T]) ownerName() string {
	if o.parent == nil {
		return "<external>"
	}
	return o.parent.name
}

func removeItem[E comparable](s []E, item E) []E {
	for i, v := range s {
		if v == item {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
