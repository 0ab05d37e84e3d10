// Package refgen provides reference generators: state machines that turn
// elapsed time into a setpoint for a controller.
//
// A refgen moves through Uninitialized, Started, Evaluating and Done. The
// orchestrator calls Start once, then Eval every tick with the time since
// Start; Eval returns Finished when the trajectory is complete, after which
// the next queued refgen takes over.
//
// Variants:
//   - Move: point-to-point, two-point arc-length spline with a trapezoidal
//     velocity profile.
//   - Teachplay: records (time, position) samples while teaching, then
//     replays them with the recorded timing.
//   - TeachplayConst: records like Teachplay but replays along the path at
//     a constant cruise velocity.
package refgen
