package robot

import (
	"fmt"

	"github.com/pkg/errors"
)

// Domain errors for control-core operations.
var (
	// ErrConfig indicates a malformed or size-mismatched configuration group.
	ErrConfig = errors.New("wam: invalid configuration")

	// ErrDimensionMismatch indicates vectors whose length does not match the DOF.
	ErrDimensionMismatch = errors.New("wam: dimension mismatch")

	// ErrInvalidState indicates a vector holding NaN or Inf.
	ErrInvalidState = errors.New("wam: invalid state (NaN or Inf detected)")

	// ErrSequence indicates an operation rejected because of the current state,
	// such as switching controllers while a trajectory runs.
	ErrSequence = errors.New("wam: operation not allowed in current state")

	// ErrBus indicates a sensor or actuator I/O failure.
	ErrBus = errors.New("wam: bus i/o failure")

	// ErrNotTeachable indicates a refgen without teach support.
	ErrNotTeachable = errors.New("wam: refgen is not teachable")

	// ErrNoTrajectory indicates that no taught trajectory is available.
	ErrNoTrajectory = errors.New("wam: no trajectory")
)

// TickError wraps an error with control-loop context.
type TickError struct {
	Tick    uint64
	Time    float64
	Stage   string
	Wrapped error
}

func (e *TickError) Error() string {
	return fmt.Sprintf("tick %d (t=%.4f) %s: %v", e.Tick, e.Time, e.Stage, e.Wrapped)
}

func (e *TickError) Unwrap() error {
	return e.Wrapped
}

// CheckDOF returns ErrDimensionMismatch when n differs from dof.
func CheckDOF(what string, n, dof int) error {
	if n != dof {
		return errors.Wrapf(ErrDimensionMismatch, "%s has length %d, want %d", what, n, dof)
	}
	return nil
}
