// Package kinematics computes forward kinematics for a revolute serial arm
// from Denavit-Hartenberg parameters.
//
// The chain is base, one frame per moving link, a static toolplate frame,
// and a tool frame. Eval must run once per control tick, before any
// consumer reads the transforms; for the rest of the tick the result is a
// shared read-only snapshot.
//
// # Example
//
//	kin, err := kinematics.New(cfg)
//	if err != nil {
//		return err
//	}
//	if err := kin.Eval(q, qd); err != nil {
//		return err
//	}
//	p := kin.ToolPosition()
//
// # Thread Safety
//
// A Kinematics is owned by one goroutine. It performs no locking.
package kinematics
