package profiler

import (
	"runtime"

	"github.com/getsentry/callprof/internal/frame"
)

func noop() {}

// Enter records entry into the calling function and returns the matching exit
// hook. Insert it as the first statement of a traced function:
//
//	func step() {
//		defer session.Enter()()
//		...
//	}
//
// Enter must not be inlined: the caller's program counter is taken from its
// own return address.
//
//go:noinline
func (s *Session) Enter() func() {
	if !s.enabled.Load() {
		return noop
	}
	var pcs [1]uintptr
	// skip runtime.Callers and Enter itself
	if runtime.Callers(2, pcs[:]) == 0 {
		return noop
	}
	// pcs[0] is the return address into the traced function; step back
	// into the call instruction so it resolves to the caller.
	s.OnEnter(pcs[0] - 1)
	return s.leave
}

// OnEnter records a call into the function containing pc, which may be any
// address inside the function's code. It is a no-op unless
// it runs on the target goroutine while a frame is open.
func (s *Session) OnEnter(pc uintptr) {
	if !s.enabled.Load() || CurrentGoroutineID() != s.target.Load() {
		return
	}
	if !s.hooking.CompareAndSwap(false, true) {
		return
	}
	defer s.hooking.Store(false)

	n := len(s.frames)
	if n == 0 {
		return
	}
	f := &s.frames[n-1]
	id := uint32(len(f.Events))
	caller := id
	if l := len(s.live); l > 0 {
		caller = s.live[l-1]
	}
	ev := frame.CallEvent{
		ID:        id,
		CallerID:  caller,
		Address:   functionAddress(pc),
		ExitTicks: frame.NoExit,
	}
	if s.memoryProfiling.Load() {
		ev.StartMemory = s.memory.SampleWorkingSet()
	}
	ev.EnterTicks = s.clock.Ticks()
	f.Events = append(f.Events, ev)
	s.live = append(s.live, id)
}

// OnExit records the return of the innermost open call. It is a no-op under
// the same conditions as OnEnter, and when no call is open.
func (s *Session) OnExit(_ uintptr) {
	if !s.enabled.Load() || CurrentGoroutineID() != s.target.Load() {
		return
	}
	if !s.hooking.CompareAndSwap(false, true) {
		return
	}
	defer s.hooking.Store(false)

	l := len(s.live)
	n := len(s.frames)
	if l == 0 || n == 0 {
		return
	}
	ticks := s.clock.Ticks()
	id := s.live[l-1]
	s.live = s.live[:l-1]
	f := &s.frames[n-1]
	if int(id) >= len(f.Events) {
		return
	}
	ev := &f.Events[id]
	ev.ExitTicks = ticks
	if s.memoryProfiling.Load() {
		ev.EndMemory = s.memory.SampleWorkingSet()
	}
}

// functionAddress maps a program counter inside a function to the function's
// entry address. Unknown addresses are kept as they are.
func functionAddress(pc uintptr) uint64 {
	if pc == 0 {
		return 0
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return uint64(pc)
	}
	return uint64(fn.Entry())
}
