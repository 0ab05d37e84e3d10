// Package robot holds the value types and error taxonomy shared by the
// control core.
//
// Every component receives its degree-of-freedom count explicitly at
// construction; nothing in the core reads a process-wide DOF.
//
// # Error Handling
//
// Configuration problems wrap ErrConfig and are returned from constructors,
// which never hand back a partially built object. Sequencing problems wrap
// ErrSequence and leave existing state untouched. Bus failures surface as a
// *TickError wrapping ErrBus.
//
//	if errors.Is(err, robot.ErrSequence) {
//		// request rejected, try again once the trajectory has finished
//	}
package robot
