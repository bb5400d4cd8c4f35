package timeutil

import (
	"math"
	"testing"
)

func TestTicksToMicros(t *testing.T) {
	tests := []struct {
		name      string
		delta     int64
		frequency int64
		want      int64
	}{
		{name: "nanosecond clock", delta: 30_000, frequency: 1_000_000_000, want: 30},
		{name: "truncates", delta: 1_999, frequency: 1_000_000_000, want: 1},
		{name: "tick per microsecond", delta: 80, frequency: 1_000_000, want: 80},
		{name: "qpc frequency", delta: 10_000_000, frequency: 10_000_000, want: 1_000_000},
		{name: "negative delta", delta: -1_500, frequency: 1_000_000_000, want: -1},
		{name: "zero frequency", delta: 100, frequency: 0, want: 0},
		{name: "no overflow", delta: math.MaxInt64, frequency: 1_000_000_000, want: 9_223_372_036_854_775},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := TicksToMicros(test.delta, test.frequency); got != test.want {
				t.Fatalf("wanted: %d, got: %d", test.want, got)
			}
		})
	}
}

func TestManualClock(t *testing.T) {
	c := NewManualClock(1_000_000)
	c.Set(10)
	if got := c.Advance(5); got != 15 {
		t.Fatalf("wanted: 15, got: %d", got)
	}
	if c.Ticks() != 15 || c.Frequency() != 1_000_000 {
		t.Fatalf("unexpected clock state: %d ticks at %d Hz", c.Ticks(), c.Frequency())
	}
}

func TestMonotonicClockIsMonotonic(t *testing.T) {
	c := NewMonotonicClock()
	a := c.Ticks()
	b := c.Ticks()
	if b < a {
		t.Fatalf("clock went backwards: %d then %d", a, b)
	}
	if c.Frequency() != 1_000_000_000 {
		t.Fatalf("unexpected frequency: %d", c.Frequency())
	}
}
