package frame

import (
	"github.com/getsentry/callprof/internal/timeutil"
)

// NoExit marks a timestamp that was never sampled: the exit of a call still
// running, or the end of a frame that was never closed.
const NoExit int64 = -1

type (
	// CallEvent is one captured invocation of a traced function.
	CallEvent struct {
		ID         uint32 `json:"id"`
		CallerID   uint32 `json:"caller_id"`
		Address    uint64 `json:"address"`
		EnterTicks int64  `json:"enter_ticks"`
		ExitTicks  int64  `json:"exit_ticks"`

		StartMemory int64 `json:"start_memory,omitempty"`
		EndMemory   int64 `json:"end_memory,omitempty"`

		// Filled in by the call tree reconstruction.
		TotalTimeMicros int64 `json:"total_time_us"`
		SelfTimeMicros  int64 `json:"self_time_us"`
		ChildTimeMicros int64 `json:"-"`
	}

	// Frame is one recording span delimited by BeginFrame and EndFrame.
	// Events are stored in capture order, which is pre-order of the call tree.
	Frame struct {
		ID          int   `json:"id"`
		EnterTicks  int64 `json:"enter_ticks"`
		ExitTicks   int64 `json:"exit_ticks"`
		StartMemory int64 `json:"start_memory,omitempty"`
		EndMemory   int64 `json:"end_memory,omitempty"`

		Events []CallEvent `json:"events"`
	}
)

// IsRoot reports whether the call had no active caller when it was captured.
func (e CallEvent) IsRoot() bool {
	return e.CallerID == e.ID
}

// Exited reports whether the exit hook fired for this call.
func (e CallEvent) Exited() bool {
	return e.ExitTicks != NoExit
}

// MemoryDelta returns the signed working set change across the call.
func (e CallEvent) MemoryDelta() int64 {
	return e.EndMemory - e.StartMemory
}

// New returns an open frame starting at the given tick.
func New(id int, enterTicks, startMemory int64) Frame {
	return Frame{
		ID:          id,
		EnterTicks:  enterTicks,
		ExitTicks:   NoExit,
		StartMemory: startMemory,
	}
}

// Closed reports whether EndFrame was recorded for this frame.
func (f Frame) Closed() bool {
	return f.ExitTicks != NoExit
}

// DurationMicros returns the wall time of the frame, or 0 if it is still open.
func (f Frame) DurationMicros(frequency int64) int64 {
	if !f.Closed() {
		return 0
	}
	return timeutil.TicksToMicros(f.ExitTicks-f.EnterTicks, frequency)
}

func (f Frame) MemoryDelta() int64 {
	return f.EndMemory - f.StartMemory
}

// Clone returns a deep copy so callers can't mutate recorded events.
func (f Frame) Clone() Frame {
	c := f
	if f.Events != nil {
		c.Events = make([]CallEvent, len(f.Events))
		copy(c.Events, f.Events)
	}
	return c
}
