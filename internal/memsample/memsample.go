// Package memsample reads point-in-time memory usage of the current process.
package memsample

import (
	"runtime/metrics"
	"sync"
)

// Sampler returns the process working set in bytes.
type Sampler interface {
	SampleWorkingSet() int64
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func() int64

func (f SamplerFunc) SampleWorkingSet() int64 {
	return f()
}

const (
	totalMemoryMetric    = "/memory/classes/total:bytes"
	releasedMemoryMetric = "/memory/classes/heap/released:bytes"
)

// Runtime estimates the working set from the Go runtime's own accounting:
// everything mapped by the runtime minus heap memory returned to the OS.
// It does not stop the world.
type Runtime struct {
	mu      sync.Mutex
	samples [2]metrics.Sample
}

func NewRuntime() *Runtime {
	r := &Runtime{}
	r.samples[0].Name = totalMemoryMetric
	r.samples[1].Name = releasedMemoryMetric
	return r
}

func (r *Runtime) SampleWorkingSet() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	metrics.Read(r.samples[:])
	var total, released uint64
	if r.samples[0].Value.Kind() == metrics.KindUint64 {
		total = r.samples[0].Value.Uint64()
	}
	if r.samples[1].Value.Kind() == metrics.KindUint64 {
		released = r.samples[1].Value.Uint64()
	}
	if released > total {
		return 0
	}
	return int64(total - released)
}
