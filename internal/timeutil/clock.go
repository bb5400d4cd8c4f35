package timeutil

import (
	"sync/atomic"
	"time"
)

// Clock is a high resolution tick source.
type Clock interface {
	// Ticks returns the current tick count. Only differences between two
	// readings of the same clock are meaningful.
	Ticks() int64
	// Frequency returns the number of ticks per second.
	Frequency() int64
}

// MonotonicClock counts nanoseconds on the runtime's monotonic clock since it
// was created.
type MonotonicClock struct {
	base time.Time
}

func NewMonotonicClock() MonotonicClock {
	return MonotonicClock{base: time.Now()}
}

func (c MonotonicClock) Ticks() int64 {
	return int64(time.Since(c.base))
}

func (c MonotonicClock) Frequency() int64 {
	return int64(time.Second)
}

// ManualClock only moves when told to. Safe for concurrent use.
type ManualClock struct {
	now       atomic.Int64
	frequency int64
}

func NewManualClock(frequency int64) *ManualClock {
	return &ManualClock{frequency: frequency}
}

func (c *ManualClock) Ticks() int64 {
	return c.now.Load()
}

func (c *ManualClock) Frequency() int64 {
	return c.frequency
}

// Set moves the clock to an absolute tick.
func (c *ManualClock) Set(ticks int64) {
	c.now.Store(ticks)
}

// Advance moves the clock forward and returns the new tick.
func (c *ManualClock) Advance(ticks int64) int64 {
	return c.now.Add(ticks)
}

// TicksToMicros converts a tick delta to whole microseconds, truncating toward
// zero. The conversion is split to avoid overflowing on long deltas.
func TicksToMicros(delta, frequency int64) int64 {
	if frequency <= 0 {
		return 0
	}
	q, r := delta/frequency, delta%frequency
	return q*1_000_000 + r*1_000_000/frequency
}
