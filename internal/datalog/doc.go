// Package datalog records fixed-schema samples from the control loop
// without blocking it.
//
// Fields are declared up front by address. Each Trigger copies the current
// values into one of two preallocated buffers; a separate goroutine calls
// Flush to hand full buffers to a Sink. Logging is lossy under
// backpressure: if the flusher falls behind, Trigger drops records rather
// than wait.
//
// # Thread Safety
//
// Exactly one goroutine may call Trigger. Flush and Finish may be called
// from any other goroutine.
package datalog
