// Package pool implements the per-provider connection pool bound described
// in spec.md §3/§5: a fixed-max, non-blocking counter of in-flight requests.
// Acquire never waits; a full pool is "try the next candidate", not "queue".
package pool

import (
	"sync"
	"sync/atomic"

	"github.com/ferro-labs/model-gateway/internal/metrics"
)

// ConnectionPool bounds concurrent in-flight requests to one provider.
type ConnectionPool struct {
	active atomic.Int64
	max    int64
}

// New creates a ConnectionPool with the given max (default 100 when max<=0,
// per spec.md §5's connection-pool contract).
func New(max int) *ConnectionPool {
	if max <= 0 {
		max = 100
	}
	return &ConnectionPool{max: int64(max)}
}

// TryAcquire attempts to reserve a slot, returning false immediately if the
// pool is already at capacity.
func (p *ConnectionPool) TryAcquire() bool {
	for {
		cur := p.active.Load()
		if cur >= p.max {
			return false
		}
		if p.active.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release frees a previously-acquired slot.
func (p *ConnectionPool) Release() {
	p.active.Add(-1)
}

// Active returns the current in-flight count.
func (p *ConnectionPool) Active() int {
	return int(p.active.Load())
}

// Full reports whether the pool is at capacity, without mutating state.
// Used by the Router's scoring pass to apply the pool-full penalty without
// acquiring a slot.
func (p *ConnectionPool) Full() bool {
	return p.active.Load() >= p.max
}

// Max returns the pool's configured capacity.
func (p *ConnectionPool) Max() int {
	return int(p.max)
}

// Registry holds one ConnectionPool per provider.
type Registry struct {
	mu    sync.RWMutex
	pools map[string]*ConnectionPool
}

// NewRegistry creates an empty pool registry.
func NewRegistry() *Registry {
	return &Registry{pools: make(map[string]*ConnectionPool)}
}

// Register creates a pool for name with the given max capacity.
func (r *Registry) Register(name string, max int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pools[name] = New(max)
}

// Unregister removes a provider's pool.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pools, name)
}

// Get returns the pool for name, or nil if not registered.
func (r *Registry) Get(name string) *ConnectionPool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pools[name]
}

// ReportActive publishes the current active-connection gauge for every
// registered provider. Called periodically, or after each acquire/release,
// by whichever component owns the cadence.
func (r *Registry) ReportActive() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, p := range r.pools {
		metrics.ActiveConnections.WithLabelValues(name).Set(float64(p.Active()))
	}
}
