// Package profiler records function entry and exit on one target goroutine,
// grouped into frames, and turns the recording into per-function statistics.
package profiler

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/getsentry/callprof/internal/calltree"
	"github.com/getsentry/callprof/internal/frame"
	"github.com/getsentry/callprof/internal/memsample"
	"github.com/getsentry/callprof/internal/metrics"
	"github.com/getsentry/callprof/internal/symbol"
	"github.com/getsentry/callprof/internal/timeutil"
)

type (
	// Options configures a Session. Zero values select the defaults.
	Options struct {
		// Clock defaults to the runtime's monotonic clock.
		Clock timeutil.Clock
		// Memory defaults to memsample.New().
		Memory memsample.Sampler
		// Resolver defaults to the binary's symbol table.
		Resolver symbol.Resolver
		// MemoryProfiling samples the working set at every call boundary.
		MemoryProfiling bool
		// TargetGoroutine defaults to the goroutine calling New.
		TargetGoroutine int64
	}

	// Session is one recording context. Lifecycle methods (Start, BeginFrame,
	// EndFrame, Stop, Analyze) and the accessors must be called from a single
	// controlling goroutine, and never while the target goroutine may still be
	// inside a traced call of the current frame. OnEnter, OnExit and Enter may
	// be called from any goroutine; only calls made on the target goroutine are
	// recorded.
	Session struct {
		id        uuid.UUID
		clock     timeutil.Clock
		frequency int64
		memory    memsample.Sampler
		names     *symbol.Cache
		stats     *metrics.Repository
		// exit hook returned by Enter
		leave func()

		// read by the capture path
		enabled         atomic.Bool
		memoryProfiling atomic.Bool
		target          atomic.Int64
		hooking         atomic.Bool

		started    bool
		startTicks int64

		// owned by the target goroutine while enabled
		frames []frame.Frame
		live   []uint32
	}
)

// New returns an idle session. Recording begins with Start and BeginFrame.
func New(opts Options) *Session {
	s := &Session{
		id:     uuid.New(),
		clock:  opts.Clock,
		memory: opts.Memory,
		names:  symbol.NewCache(opts.Resolver),
		live:   make([]uint32, 0, 64),
	}
	if s.clock == nil {
		s.clock = timeutil.NewMonotonicClock()
	}
	if s.memory == nil {
		s.memory = memsample.New()
	}
	s.leave = func() { s.OnExit(0) }
	s.frequency = s.clock.Frequency()
	s.stats = metrics.NewRepository(s.names)
	s.memoryProfiling.Store(opts.MemoryProfiling)
	target := opts.TargetGoroutine
	if target == 0 {
		target = CurrentGoroutineID()
	}
	s.target.Store(target)
	return s
}

// ID identifies the current recording run. It changes on every Start.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Frequency is the number of clock ticks per second.
func (s *Session) Frequency() int64 {
	return s.frequency
}

// StartTicks is the tick at which the current recording run started.
func (s *Session) StartTicks() int64 {
	return s.startTicks
}

func (s *Session) SetTargetGoroutine(id int64) {
	s.target.Store(id)
}

func (s *Session) TargetGoroutine() int64 {
	return s.target.Load()
}

func (s *Session) SetMemoryProfiling(enabled bool) {
	s.memoryProfiling.Store(enabled)
}

func (s *Session) MemoryProfiling() bool {
	return s.memoryProfiling.Load()
}

// Recording reports whether calls on the target goroutine are being captured.
func (s *Session) Recording() bool {
	return s.enabled.Load()
}

// Start clears every frame, statistic and diagnostic and begins a new run.
// Calls are captured once a frame is opened with BeginFrame.
func (s *Session) Start() {
	s.enabled.Store(false)
	s.frames = nil
	s.live = s.live[:0]
	s.stats.Reset(0)
	s.names.ClearMessages()
	s.id = uuid.New()
	s.started = true
	s.startTicks = s.clock.Ticks()
	log.Debug().Str("session_id", s.id.String()).Int64("target_goroutine", s.target.Load()).Msg("profiling session started")
}

// BeginFrame opens a new frame and enables capture. The live call stack is
// reset so the frame never inherits calls left open in the previous one. It
// does nothing before Start.
func (s *Session) BeginFrame() {
	if !s.started {
		return
	}
	s.enabled.Store(false)
	var mem int64
	if s.memoryProfiling.Load() {
		mem = s.memory.SampleWorkingSet()
	}
	s.frames = append(s.frames, frame.New(len(s.frames), s.clock.Ticks(), mem))
	s.live = s.live[:0]
	s.enabled.Store(true)
}

// EndFrame closes the last frame and disables capture until the next
// BeginFrame. It does nothing if no frame is open.
func (s *Session) EndFrame() {
	s.enabled.Store(false)
	if len(s.frames) == 0 {
		return
	}
	f := &s.frames[len(s.frames)-1]
	if f.Closed() {
		return
	}
	f.ExitTicks = s.clock.Ticks()
	if s.memoryProfiling.Load() {
		f.EndMemory = s.memory.SampleWorkingSet()
	}
}

// Stop ends the run. If the last frame was never ended or still has calls
// that did not return, it is discarded entirely.
func (s *Session) Stop() {
	s.enabled.Store(false)
	s.started = false
	if n := len(s.frames); n > 0 {
		last := s.frames[n-1]
		if !last.Closed() || len(s.live) > 0 {
			s.frames = s.frames[:n-1]
			log.Debug().
				Str("session_id", s.id.String()).
				Int("frame", last.ID).
				Int("open_calls", len(s.live)).
				Msg("discarding unterminated frame")
		}
	}
	s.live = s.live[:0]
}

// Analyze rebuilds the call trees of every recorded frame and recomputes all
// statistics from scratch. Capture is disabled for the duration.
func (s *Session) Analyze() {
	s.enabled.Store(false)
	s.stats.Reset(len(s.frames))
	calltree.Analyze(s.frames, s.frequency, s.stats)

	events := 0
	for _, f := range s.frames {
		events += len(f.Events)
	}
	log.Debug().
		Str("session_id", s.id.String()).
		Int("frames", len(s.frames)).
		Int("events", events).
		Int("functions", len(s.stats.RankedView(metrics.Global))).
		Msg("profiling session analyzed")
}

// Frames returns a copy of the recorded frames.
func (s *Session) Frames() []frame.Frame {
	out := make([]frame.Frame, len(s.frames))
	for i, f := range s.frames {
		out[i] = f.Clone()
	}
	return out
}

// Statistics returns the per-function statistics of every frame, ranked by
// total self time. Call after Analyze.
func (s *Session) Statistics() []metrics.Unit {
	return s.stats.RankedView(metrics.Global)
}

// FrameStatistics returns the ranked statistics of one frame, or an empty
// slice if the index does not name an analyzed frame.
func (s *Session) FrameStatistics(i int) []metrics.Unit {
	if i < 0 {
		return []metrics.Unit{}
	}
	return s.stats.RankedView(metrics.FrameScope(i))
}

// Percentiles returns self time percentiles of one function in scope.
func (s *Session) Percentiles(scope metrics.Scope, addr uint64) (metrics.Percentiles, bool) {
	return s.stats.Percentiles(scope, addr)
}

// CallTree returns the analyzed call tree of frame i.
func (s *Session) CallTree(i int) ([]*calltree.Node, bool) {
	if i < 0 || i >= len(s.frames) {
		return nil, false
	}
	return calltree.Build(s.frames[i], s.names), true
}

// FunctionName resolves addr through the session's symbol cache.
func (s *Session) FunctionName(addr uint64) string {
	return s.names.Name(addr)
}

// Messages returns diagnostics buffered since Start.
func (s *Session) Messages() []string {
	return s.names.Messages()
}
