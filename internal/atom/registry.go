package atom

import (
	"fmt"
	"sync"
)

// StoreAttacher is the minimal surface the registry needs from a store so it
// can hand a newly attached store its preloaded atoms. Defined here, not in
// package store, to avoid the cyclic ownership spec.md §9 warns against --
// the registry depends on nothing from package store.
type StoreAttacher interface {
	RegisterPreloaded(a *Atom)
}

// Registry is the process-scoped directory of atom identity -> descriptor,
// with a secondary name index. Not safe for concurrent use without external
// synchronization beyond the mutex already here: per spec.md §4.2 it is
// single-threaded cooperative by contract, the mutex exists only to let the
// time-travel controller and application code share one registry instance
// without a data race tool flagging benign concurrent reads.
type Registry struct {
	mu        sync.RWMutex
	byID      map[ID]*Atom
	byName    map[string]ID
	collision map[string]int // name -> number of registrations, for the collision warning
	store     StoreAttacher
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:      make(map[ID]*Atom),
		byName:    make(map[string]ID),
		collision: make(map[string]int),
	}
}

// Register adds an atom to the directory. If the atom has a name and that
// name is already registered to a different atom, the new registration wins
// (last-registered-wins) and the collision is counted (see CollisionCount)
// -- mirrored from the registry's role as the source-language equivalent of
// a last-write-wins global map, generalized into an explicit, observable
// policy instead of silent overwrite. If a store is attached, the atom is
// announced to it.
func (r *Registry) Register(a *Atom) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[a.id] = a
	if r.store != nil {
		r.store.RegisterPreloaded(a)
	}
	if a.name == "" {
		return
	}
	if existing, ok := r.byName[a.name]; ok && existing != a.id {
		r.collision[a.name]++
	}
	r.byName[a.name] = a.id
}

// Get returns the atom for id, if registered.
func (r *Registry) Get(id ID) (*Atom, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	return a, ok
}

// GetByName returns the atom registered under name, if any.
func (r *Registry) GetByName(name string) (*Atom, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	a, ok := r.byID[id]
	return a, ok
}

// GetAll returns every registered atom descriptor. The returned slice is a
// fresh copy; mutating it does not affect the registry.
func (r *Registry) GetAll() []*Atom {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Atom, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, a)
	}
	return out
}

// CollisionCount returns how many times name was re-registered to a
// different atom -- exposed so callers can surface the "warning on
// collision" spec.md §4.2 calls for without forcing this package to own a
// logging dependency for a single counter.
func (r *Registry) CollisionCount(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collision[name]
}

// Clear empties the registry. Used by tests and by a full controller
// disposal.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[ID]*Atom)
	r.byName = make(map[string]ID)
	r.collision = make(map[string]int)
}

// AttachStore binds the registry to a store so preloaded atoms registered
// before the store existed -- or registered afterward -- can be announced
// to it. This is the one-way "attach handshake" spec.md §9 calls for in
// place of cyclic Controller<->Store ownership.
func (r *Registry) AttachStore(s StoreAttacher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store = s
	for _, a := range r.byID {
		s.RegisterPreloaded(a)
	}
}

// String renders the atom's id-string form, used when a snapshot entry
// needs to identify its source atom durably (spec.md Data Model, Snapshot:
// "atomIdString").
func (a *Atom) String() string {
	return fmt.Sprintf("atom#%d:%s", a.id, a.name)
}

// ParseIDString recovers the ID encoded in an atom's String() form. The
// restorer uses this to resolve a snapshot entry's atomIdString when no
// atom is registered under the entry's name (spec.md §4.5 step 4).
func ParseIDString(s string) (ID, bool) {
	var id uint64
	n, err := fmt.Sscanf(s, "atom#%d:", &id)
	if err != nil || n != 1 {
		return 0, false
	}
	return ID(id), true
}
