package callprof

import (
	"io"

	"github.com/getsentry/callprof/internal/calltree"
	"github.com/getsentry/callprof/internal/export"
	"github.com/getsentry/callprof/internal/frame"
	"github.com/getsentry/callprof/internal/metrics"
	"github.com/getsentry/callprof/internal/profiler"
)

type (
	// Session is one recording context. See New.
	Session = profiler.Session
	// Options configures a Session.
	Options = profiler.Options
	// Frame is one recording span and the calls captured in it.
	Frame = frame.Frame
	// CallEvent is one captured call.
	CallEvent = frame.CallEvent
	// Unit holds the aggregated metrics of one function.
	Unit = metrics.Unit
	// Percentiles of the per invocation self time of a function.
	Percentiles = metrics.Percentiles
	// Scope selects global or per-frame statistics.
	Scope = metrics.Scope
	// Node is one call of a rebuilt call tree.
	Node = calltree.Node
)

// Global selects statistics aggregated over every frame.
const Global = metrics.Global

// New returns an idle session targeting the calling goroutine unless
// opts.TargetGoroutine says otherwise.
func New(opts Options) *Session {
	return profiler.New(opts)
}

// FrameScope selects the statistics of frame i.
func FrameScope(i int) Scope {
	return metrics.FrameScope(i)
}

// CurrentGoroutineID returns the id of the calling goroutine, suitable for
// Session.SetTargetGoroutine.
func CurrentGoroutineID() int64 {
	return profiler.CurrentGoroutineID()
}

// WriteStatistics writes units as quoted comma separated rows.
func WriteStatistics(w io.Writer, units []Unit) error {
	return export.WriteStatistics(w, units)
}

// WriteFrames writes one row per analyzed frame of s.
func WriteFrames(w io.Writer, s *Session) error {
	return export.WriteFrames(w, s.Frames(), s.StartTicks(), s.Frequency())
}

// SaveStatistics writes units to path and reports whether it succeeded.
func SaveStatistics(path string, units []Unit) bool {
	return export.SaveStatistics(path, units)
}

// SaveFrames writes the frame table of s to path and reports whether it
// succeeded.
func SaveFrames(path string, s *Session) bool {
	return export.SaveFrames(path, s.Frames(), s.StartTicks(), s.Frequency())
}
