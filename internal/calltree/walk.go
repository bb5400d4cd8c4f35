package calltree

import "github.com/getsentry/callprof/internal/frame"

// walk replays the events of a frame in capture order and rebuilds nesting
// from caller ids alone. It keeps the chain of open ancestors on an explicit
// index stack, so arbitrarily deep recursion in the profiled program costs
// heap, not goroutine stack.
//
// enter is called when an event is opened and leave when it is closed; both
// receive the index of the event and the index of its parent, or -1 for a
// root. Every event is left exactly once, children before their parent.
//
// An event whose caller is not among the open ancestors can only come from a
// malformed sequence; it closes every open event and starts a new root.
func walk(events []frame.CallEvent, enter, leave func(i, parent int)) {
	open := make([]int, 0, 64)
	top := func() int {
		if len(open) == 0 {
			return -1
		}
		return open[len(open)-1]
	}
	pop := func() {
		i := open[len(open)-1]
		open = open[:len(open)-1]
		if leave != nil {
			leave(i, top())
		}
	}

	for i := range events {
		ev := &events[i]
		if ev.IsRoot() {
			for len(open) > 0 {
				pop()
			}
		} else {
			for len(open) > 0 && events[top()].ID != ev.CallerID {
				pop()
			}
		}
		if enter != nil {
			enter(i, top())
		}
		open = append(open, i)
	}
	for len(open) > 0 {
		pop()
	}
}
