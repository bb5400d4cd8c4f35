// Package symbol maps function addresses to symbolic names.
package symbol

import (
	"fmt"
	"runtime"

	"github.com/rs/zerolog/log"

	"github.com/getsentry/callprof/internal/errorutil"
)

// Resolver maps a function address to its name.
type Resolver interface {
	Resolve(addr uint64) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(addr uint64) (string, error)

func (f ResolverFunc) Resolve(addr uint64) (string, error) {
	return f(addr)
}

// Runtime resolves addresses with the symbol table embedded in the binary.
type Runtime struct{}

func (Runtime) Resolve(addr uint64) (string, error) {
	fn := runtime.FuncForPC(uintptr(addr))
	if fn == nil {
		return "", fmt.Errorf("symbol: %#x: %w", addr, errorutil.ErrUnknownAddress)
	}
	return fn.Name(), nil
}

// Cache memoizes successful resolutions and buffers a diagnostic message for
// every failure. It is not safe for concurrent use.
type Cache struct {
	resolver Resolver
	names    map[uint64]string
	messages []string
}

func NewCache(r Resolver) *Cache {
	if r == nil {
		r = Runtime{}
	}
	return &Cache{
		resolver: r,
		names:    make(map[uint64]string),
	}
}

// Name returns the name for addr, or an empty string if it can't be resolved.
// Failures are retried on the next call.
func (c *Cache) Name(addr uint64) string {
	if name, ok := c.names[addr]; ok {
		return name
	}
	name, err := c.resolver.Resolve(addr)
	if err != nil {
		msg := fmt.Sprintf("symbol: resolving %#x: %v", addr, err)
		c.messages = append(c.messages, msg)
		log.Debug().Err(err).Uint64("address", addr).Msg("can't resolve function name")
		return ""
	}
	c.names[addr] = name
	return name
}

// Messages returns the buffered diagnostics.
func (c *Cache) Messages() []string {
	out := make([]string, len(c.messages))
	copy(out, c.messages)
	return out
}

// ClearMessages drops buffered diagnostics but keeps resolved names.
func (c *Cache) ClearMessages() {
	c.messages = c.messages[:0]
}
