package systems

import "github.com/pkg/errors"

// Connect feeds o into in. It fails if in already has a source.
func Connect[T any](o *Output[T], in *Input[T]) error {
	mu := in.parent.mutex()
	mu.Lock()
	defer mu.Unlock()
	if in.output != nil {
		return errors.Wrapf(ErrAlreadyConnected, "input of %s", in.parent.name)
	}
	link(o, in)
	return nil
}

// Reconnect moves an already connected input to o.
func Reconnect[T any](o *Output[T], in *Input[T]) error {
	mu := in.parent.mutex()
	mu.Lock()
	defer mu.Unlock()
	if in.output == nil {
		return errors.Wrapf(ErrNotConnected, "input of %s", in.parent.name)
	}
	in.output.removeInput(in)
	link(o, in)
	return nil
}

// ForceConnect connects in to o whatever its current state.
func ForceConnect[T any](o *Output[T], in *Input[T]) {
	mu := in.parent.mutex()
	mu.Lock()
	defer mu.Unlock()
	if in.output != nil {
		in.output.removeInput(in)
	}
	link(o, in)
}

func Disconnect[T any](in *Input[T]) error {
	mu := in.parent.mutex()
	mu.Lock()
	defer mu.Unlock()
	if in.output == nil {
		return errors.Wrapf(ErrNotConnected, "input of %s", in.parent.name)
	}
	in.output.removeInput(in)
	in.output = nil
	return nil
}

func link[T any](o *Output[T], in *Input[T]) {
	in.output = o
	o.inputs = append(o.inputs, in)
}
