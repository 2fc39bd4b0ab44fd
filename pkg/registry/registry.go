// Package registry tracks which workers are currently handling a request.
//
// Every worker marks itself active before dispatching and inactive when it
// is done. Shutdown takes the same lock, kills every active worker and marks
// it inactive, so a worker that has just finished is never killed and a worker
// that has just become active is never missed. Entries are never removed;
// their ids stay in the table for later scans.
package registry

import (
	"errors"
	"sort"
	"sync"
)

// ErrClosed is returned by MarkActive while the registry is shut down.
var ErrClosed = errors.New("registry is shut down")

// KillFunc forcibly terminates one worker. It runs with the registry lock
// held and must not block or call back into the registry.
type KillFunc func()

type entry struct {
	active bool
	kill   KillFunc
}

// Registry maps worker ids to their active flag. The zero value is not
// usable; call New.
type Registry struct {
	mu      sync.Mutex
	workers map[int]*entry
	closed  bool
}

// New returns an open, empty registry.
func New() *Registry {
	return &Registry{workers: make(map[int]*entry)}
}

// MarkActive flags id as handling a request. kill is invoked if the registry
// is shut down before MarkInactive(id).
func (r *Registry) MarkActive(id int, kill KillFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	e, ok := r.workers[id]
	if !ok {
		e = &entry{}
		r.workers[id] = e
	}
	e.active = true
	e.kill = kill
	return nil
}

// MarkInactive clears the active flag of id. Unknown ids are ignored.
func (r *Registry) MarkInactive(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.workers[id]; ok {
		e.active = false
		e.kill = nil
	}
}

// IsActive reports whether id is flagged active.
func (r *Registry) IsActive(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.workers[id]
	return ok && e.active
}

// SnapshotActive returns the sorted ids of all active workers.
func (r *Registry) SnapshotActive() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeLocked()
}

func (r *Registry) activeLocked() []int {
	var ids []int
	for id, e := range r.workers {
		if e.active {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// Shutdown closes the registry, kills every active worker and marks it
// inactive, all under one lock acquisition. It returns the killed ids.
// MarkActive fails with ErrClosed until Open is called.
func (r *Registry) Shutdown() []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	killed := r.activeLocked()
	for _, id := range killed {
		e := r.workers[id]
		if e.kill != nil {
			e.kill()
		}
		e.active = false
		e.kill = nil
	}
	return killed
}

// Open lets workers register again after Shutdown.
func (r *Registry) Open() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = false
}

// Len returns the number of known workers, active or not.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}
