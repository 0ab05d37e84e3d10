// Package control provides the holding controllers of the control loop.
//
// Every controller implements [Controller]:
//
//   - [Joint]: per-joint PID on joint position
//   - [CartesianXYZ]: per-axis PID on tool position through Jvᵀ
//   - [CartesianXYZQ]: tool position plus quaternion orientation
//   - [Orientation]: quaternion orientation only, through Jwᵀ
//
// # Usage
//
//	c, _ := control.NewJoint(jpos, jvel, gains)
//	c.Hold()
//	// each tick
//	c.Refresh()
//	c.Eval(tau, now)
//
// [PID] supports live tuning through GetParams and SetParam.
package control
