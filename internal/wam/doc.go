// Package wam runs the control loop of one arm.
//
// A [Session] owns the arm model (kinematics, dynamics, gravity
// compensation), the set of holding controllers, and a queue of reference
// generators. Every [Session.Tick] reads joint feedback, refreshes the
// model, lets the head of the queue write the active controller's
// reference, sums controller effort and gravity torque, and writes the
// result back to the [Bus]. [Session.Run] paces ticks at the configured
// period and flushes the data and teach logs in the background.
//
// Client operations such as [Session.MoveTo], [Session.TeachStart] and
// [Session.UseController] are safe to call while Run is active. They
// change state under the session lock and return; the motion itself
// happens over the following ticks. Operations that would conflict with
// the current state fail with robot.ErrSequence.
package wam
