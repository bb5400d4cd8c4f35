package metrics

import (
	"errors"
	"math"
	"sort"

	"github.com/getsentry/callprof/internal/frame"
)

// Global is the scope aggregating every analyzed frame.
const Global Scope = -1

type (
	// Scope selects either the global repository or one frame's repository.
	Scope int

	// Namer resolves function addresses to names.
	Namer interface {
		Name(addr uint64) string
	}

	// Unit holds the aggregated metrics of one function within a scope.
	// InvocationCount is at least 1 for every unit a Repository returns.
	Unit struct {
		Address               uint64 `json:"address"`
		Name                  string `json:"name"`
		InvocationCount       uint64 `json:"invocation_count"`
		TotalSelfTimeMicros   int64  `json:"total_self_time_us"`
		TotalTimeMicros       int64  `json:"total_time_us"`
		TotalMemoryDeltaBytes int64  `json:"total_memory_delta_bytes"`
	}

	// Percentiles of the per invocation self time of a function.
	Percentiles struct {
		P75 int64 `json:"p75"`
		P95 int64 `json:"p95"`
		P99 int64 `json:"p99"`
	}

	bucket struct {
		units     map[uint64]*Unit
		selfTimes map[uint64][]int64
	}

	// Repository aggregates finalized call events per function, globally and
	// per frame. It is not safe for concurrent use.
	Repository struct {
		names  Namer
		global bucket
		frames []bucket
	}
)

// FrameScope selects the repository of the frame at index i.
func FrameScope(i int) Scope {
	return Scope(i)
}

func newBucket() bucket {
	return bucket{
		units:     make(map[uint64]*Unit),
		selfTimes: make(map[uint64][]int64),
	}
}

func NewRepository(names Namer) *Repository {
	return &Repository{
		names:  names,
		global: newBucket(),
	}
}

// Reset drops every unit and prepares one empty repository per frame.
func (r *Repository) Reset(frameCount int) {
	r.global = newBucket()
	r.frames = make([]bucket, frameCount)
	for i := range r.frames {
		r.frames[i] = newBucket()
	}
}

func (r *Repository) FrameCount() int {
	return len(r.frames)
}

// Record folds one finalized event into the global repository and into the
// repository of frameIndex. An out of range frame index only updates the
// global repository.
func (r *Repository) Record(frameIndex int, ev *frame.CallEvent) {
	r.global.add(ev, r.name)
	if frameIndex < 0 || frameIndex >= len(r.frames) {
		return
	}
	r.frames[frameIndex].add(ev, r.name)
}

func (r *Repository) name(addr uint64) string {
	if r.names == nil {
		return ""
	}
	return r.names.Name(addr)
}

func (b *bucket) add(ev *frame.CallEvent, name func(uint64) string) {
	u, ok := b.units[ev.Address]
	if !ok {
		u = &Unit{
			Address: ev.Address,
			Name:    name(ev.Address),
		}
		b.units[ev.Address] = u
	}
	u.InvocationCount++
	u.TotalSelfTimeMicros += ev.SelfTimeMicros
	u.TotalTimeMicros += ev.TotalTimeMicros
	u.TotalMemoryDeltaBytes += ev.MemoryDelta()
	b.selfTimes[ev.Address] = append(b.selfTimes[ev.Address], ev.SelfTimeMicros)
}

func (r *Repository) bucket(scope Scope) (bucket, bool) {
	if scope == Global {
		return r.global, true
	}
	if scope < 0 || int(scope) >= len(r.frames) {
		return bucket{}, false
	}
	return r.frames[scope], true
}

// RankedView returns every unit of scope ordered by total self time,
// descending. Ties are broken by address so the order is stable across calls.
// An unknown scope yields an empty slice.
func (r *Repository) RankedView(scope Scope) []Unit {
	b, ok := r.bucket(scope)
	if !ok {
		return []Unit{}
	}
	units := make([]Unit, 0, len(b.units))
	for _, u := range b.units {
		units = append(units, *u)
	}
	sort.Slice(units, func(i, j int) bool {
		if units[i].TotalSelfTimeMicros != units[j].TotalSelfTimeMicros {
			return units[i].TotalSelfTimeMicros > units[j].TotalSelfTimeMicros
		}
		return units[i].Address < units[j].Address
	})
	return units
}

// Unit returns the unit for addr within scope.
func (r *Repository) Unit(scope Scope, addr uint64) (Unit, bool) {
	b, ok := r.bucket(scope)
	if !ok {
		return Unit{}, false
	}
	u, ok := b.units[addr]
	if !ok {
		return Unit{}, false
	}
	return *u, true
}

// Percentiles returns the p75, p95 and p99 self time of addr within scope.
func (r *Repository) Percentiles(scope Scope, addr uint64) (Percentiles, bool) {
	b, ok := r.bucket(scope)
	if !ok {
		return Percentiles{}, false
	}
	values := b.selfTimes[addr]
	if len(values) == 0 {
		return Percentiles{}, false
	}
	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})
	p75, _ := quantile(sorted, 0.75)
	p95, _ := quantile(sorted, 0.95)
	p99, _ := quantile(sorted, 0.99)
	return Percentiles{P75: p75, P95: p95, P99: p99}, true
}

func (u Unit) AverageSelfTimeMicros() int64 {
	return u.TotalSelfTimeMicros / int64(u.InvocationCount)
}

func (u Unit) AverageTimeMicros() int64 {
	return u.TotalTimeMicros / int64(u.InvocationCount)
}

func (u Unit) AverageMemoryDeltaBytes() int64 {
	return u.TotalMemoryDeltaBytes / int64(u.InvocationCount)
}

func quantile(values []int64, q float64) (int64, error) {
	if len(values) == 0 {
		return 0, errors.New("cannot compute percentile from empty list")
	}
	if q <= 0 || q > 1 {
		return 0, errors.New("q must be a value between 0 and 1.0")
	}
	index := int(math.Ceil(float64(len(values))*q)) - 1
	return values[index], nil
}
