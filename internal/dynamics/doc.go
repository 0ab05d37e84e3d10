// Package dynamics implements recursive Newton-Euler inverse dynamics and
// the joint-space inertia matrix (JSIM) for a revolute serial chain.
//
// The chain is base, links[0..dof-1], toolplate; the base and toolplate
// are massless fixed frames. The outward sweep propagates angular velocity,
// angular acceleration and origin acceleration using the previous frame's
// ω and α, which is exact for links whose DH offset a is zero. The inward
// sweep accumulates link wrenches and projects the moment onto each joint
// axis.
//
// Gravity enters as a fictitious upward acceleration of the base:
//
//	dyn.SetGravity(r3.Vector{Z: -9.81})
//	if err := dyn.EvalInverse(qd, qdd, tau); err != nil {
//		return err
//	}
//
// No clamping or NaN detection happens here; callers check results.
package dynamics
