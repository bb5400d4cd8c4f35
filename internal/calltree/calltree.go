// Package calltree rebuilds call trees from caller annotated event sequences
// and computes total and self time for every captured call.
package calltree

import (
	"github.com/getsentry/callprof/internal/frame"
	"github.com/getsentry/callprof/internal/timeutil"
)

// Recorder receives every finalized event exactly once per analysis.
type Recorder interface {
	Record(frameIndex int, ev *frame.CallEvent)
}

// Analyze finalizes the events of every frame in place and hands each of them
// to rec. Frame i is recorded under frame index i.
//
// Self time is total time minus the total time of direct children and is not
// clamped: if the exit of a nested call was missed, the parent's self time can
// come out negative or inflated.
func Analyze(frames []frame.Frame, frequency int64, rec Recorder) {
	for i := range frames {
		AnalyzeFrame(i, &frames[i], frequency, rec)
	}
}

// AnalyzeFrame finalizes the events of a single frame.
func AnalyzeFrame(index int, f *frame.Frame, frequency int64, rec Recorder) {
	events := f.Events
	walk(events,
		func(i, _ int) {
			events[i].ChildTimeMicros = 0
		},
		func(i, parent int) {
			ev := &events[i]
			ev.TotalTimeMicros = timeutil.TicksToMicros(exitTicks(f, ev)-ev.EnterTicks, frequency)
			ev.SelfTimeMicros = ev.TotalTimeMicros - ev.ChildTimeMicros
			ev.ChildTimeMicros = 0
			if parent >= 0 {
				events[parent].ChildTimeMicros += ev.TotalTimeMicros
			}
			if rec != nil {
				rec.Record(index, ev)
			}
		},
	)
}

// exitTicks returns when the call returned. A call still running when its
// frame ended is cut at the end of the frame; if the frame never ended either,
// the call counts as zero length.
func exitTicks(f *frame.Frame, ev *frame.CallEvent) int64 {
	if ev.Exited() {
		return ev.ExitTicks
	}
	if f.Closed() && f.ExitTicks >= ev.EnterTicks {
		return f.ExitTicks
	}
	return ev.EnterTicks
}
