package server

import (
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Handle is one live connection as seen by the registry and broadcaster.
// The session loop that created a handle owns it; the registry only
// references it.
type Handle interface {
	// ID uniquely identifies the connection for its lifetime.
	ID() uuid.UUID
	// Deliver hands one encoded event to the connection's writer without
	// blocking. It fails once the handle is closed or cannot keep up.
	Deliver(payload []byte) error
	// Close tears down the outbound side. It is safe to call more than once.
	Close()
}

// Registry is the goroutine-safe set of connections currently between
// "connected" and "disconnected". Every operation is atomic with respect to
// Snapshot and never blocks on I/O.
type Registry struct {
	mu      sync.RWMutex
	handles map[uuid.UUID]Handle
	gauge   prometheus.Gauge
}

// NewRegistry creates an empty registry. gauge may be nil.
func NewRegistry(gauge prometheus.Gauge) *Registry {
	return &Registry{
		handles: make(map[uuid.UUID]Handle),
		gauge:   gauge,
	}
}

// Register adds h. Registering the same handle twice keeps a single entry;
// nil handles are ignored.
func (r *Registry) Register(h Handle) {
	if h == nil {
		return
	}

	r.mu.Lock()
	r.handles[h.ID()] = h
	r.updateGauge()
	r.mu.Unlock()
}

// Deregister removes the handle registered under h's ID and reports whether
// one was removed. Removing an absent handle is a no-op.
func (r *Registry) Deregister(h Handle) bool {
	if h == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := h.ID()
	if _, ok := r.handles[id]; !ok {
		return false
	}
	delete(r.handles, id)
	r.updateGauge()
	return true
}

// Snapshot returns a point-in-time copy of the registered handles, safe to
// iterate while other goroutines register and deregister.
func (r *Registry) Snapshot() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := make([]Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	return handles
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Contains reports whether a handle with id is registered.
func (r *Registry) Contains(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handles[id]
	return ok
}

// must be called with mu held for writing
func (r *Registry) updateGauge() {
	if r.gauge != nil {
		r.gauge.Set(float64(len(r.handles)))
	}
}
