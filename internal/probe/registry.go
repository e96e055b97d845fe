package probe

import (
	"sync"
	"time"
)

// Registry keeps one probe per browser session.
type Registry struct {
	opts Options
	now  func() time.Time

	mu     sync.Mutex
	probes map[string]*entry
}

type entry struct {
	probe   *Probe
	created time.Time
}

func NewRegistry(opts Options) *Registry {
	return &Registry{opts: opts, now: time.Now, probes: make(map[string]*entry)}
}

// Get returns the session's probe, creating it with check when missing.
// check is ignored for an existing probe.
func (r *Registry) Get(sessionID string, check CheckFunc) *Probe {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.probes[sessionID]; ok {
		return e.probe
	}
	p := New(check, r.opts)
	r.probes[sessionID] = &entry{probe: p, created: r.now()}
	return p
}

// Release cancels and forgets the session's probe.
func (r *Registry) Release(sessionID string) {
	r.mu.Lock()
	e, ok := r.probes[sessionID]
	delete(r.probes, sessionID)
	r.mu.Unlock()
	if ok {
		e.probe.Cancel()
	}
}

// Prune releases probes created before maxAge ago and returns how many.
func (r *Registry) Prune(maxAge time.Duration) int {
	cutoff := r.now().Add(-maxAge)
	r.mu.Lock()
	var stale []*Probe
	for id, e := range r.probes {
		if e.created.Before(cutoff) {
			stale = append(stale, e.probe)
			delete(r.probes, id)
		}
	}
	r.mu.Unlock()
	for _, p := range stale {
		p.Cancel()
	}
	return len(stale)
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.probes)
}
