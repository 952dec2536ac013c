package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/trc-project/trc/internal/logging"
)

// Registry owns the mapping from resource name to Gate. Gates are
// registered once during setup and live for the life of the process.
type Registry struct {
	mu     sync.RWMutex
	gates  map[string]*Gate
	logger *logging.Logger
}

// NewRegistry creates an empty Registry. A nil logger is replaced by a
// no-op logger.
func NewRegistry(logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Registry{
		gates:  make(map[string]*Gate),
		logger: logger.WithComponent("ratelimit"),
	}
}

// Register creates the gate for name, replacing any existing gate and
// resetting its timing state. An Acquire already in flight on the old
// gate completes against the old instance, so gates should be
// registered during setup, before concurrent use begins.
func (r *Registry) Register(name string, minInterval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gates[name] = NewGate(minInterval)
	r.logger.Debug("gate registered", "name", name, "min_interval", minInterval.String())
}

// Acquire delegates to the named gate's Acquire. An unregistered name
// returns immediately with no error: forgetting to register a resource
// degrades to unthrottled calls rather than halting the caller.
func (r *Registry) Acquire(ctx context.Context, name string) error {
	r.mu.RLock()
	g, ok := r.gates[name]
	r.mu.RUnlock()

	if !ok {
		r.logger.Debug("acquire on unregistered gate, proceeding unthrottled", "name", name)
		return nil
	}
	return g.Acquire(ctx)
}

// Get returns the gate for name, or false if none is registered. It
// never constructs a gate as a side effect of lookup.
func (r *Registry) Get(name string) (*Gate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gates[name]
	return g, ok
}
