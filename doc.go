// Package callprof is an instrumentation based call profiler.
//
// A Session records every entry and exit of traced functions running on one
// target goroutine, grouped into frames (an application defined span such as
// one simulation tick), and turns the recording into per-function timing and
// memory statistics, globally and per frame.
//
// # Tracing
//
// A traced function opens with a scope guard:
//
//	func step(w *World) {
//		defer session.Enter()()
//		...
//	}
//
// Code generators that insert hooks themselves can call OnEnter and OnExit
// directly with any program counter inside the traced function.
//
// # Recording
//
//	s := callprof.New(callprof.Options{MemoryProfiling: true})
//	s.Start()
//	for i := 0; i < frames; i++ {
//		s.BeginFrame()
//		tick()
//		s.EndFrame()
//	}
//	s.Stop()
//	s.Analyze()
//	callprof.SaveStatistics("stats.csv", s.Statistics())
//
// Calls are only captured on the target goroutine, which defaults to the
// goroutine that created the session, and only while a frame is open. A frame
// that was not ended, or that still had calls running when Stop was called, is
// discarded.
//
// # Limitations
//
// Self time is total time minus the total time of direct children. If a
// nested call's exit is missed, its parent's self time can be negative or
// inflated; it is reported as is.
package callprof
