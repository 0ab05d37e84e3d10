// Package systems is a typed signal-flow framework for composing control
// laws out of small blocks.
//
// A [System] owns [Input] and [Output] ports. Each Input is fed by at most
// one Output, and an Output may delegate to another Output so that readers
// see the delegate's value. An [ExecutionManager] runs the graph once per
// period: it updates the systems marked as always-updated, and every
// system pulls its inputs' sources before it operates. A system whose
// inputs are not all defined marks its outputs undefined instead of
// operating, so an unconnected branch goes quiet rather than commanding
// garbage.
//
// [SupervisoryController] selects a controller by the [Tag] of the
// reference it is asked to track and connects the feedback and adapter
// registered for that controller. [Arm] assembles the standard WAM graph.
package systems
