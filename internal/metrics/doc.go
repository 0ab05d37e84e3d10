// Package metrics observes the control loop.
//
// [Metric] values summarize a run (control effort, tracking error, kinetic
// energy). [Collectors] export live Prometheus series and [LoopStats]
// summarizes loop timing.
package metrics
