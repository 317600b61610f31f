// Package store implements the reactive store (spec.md §4.1): atom cells,
// derived/computed cells, batched and selective notification.
//
// The raw-write/wrapped-write split spec.md §9 calls for is modeled as two
// entry points on *Store: Set (via the unexported rawSetLocked), and
// WriteRaw, an exported escape hatch the restorer and rollback path use so
// that restoring a snapshot never re-enters the time-travel controller's
// auto-capture hook (spec.md §4.8: "Restore uses raw; user mutations use
// wrapped").
package store

import (
	"fmt"
	"sync"

	"github.com/nexus-state/nexus-state/internal/atom"
	"github.com/nexus-state/nexus-state/internal/clone"
)

// Listener is called on a store change. Event carries the full current
// state (by atom id) so a subscriber never needs to call back into the
// store from within its own callback.
type Listener func(Event)

// Event is the payload delivered to listeners (spec.md §6: "Store change:
// {newState}").
type Event struct {
	NewState map[atom.ID]any
}

// SubscribeOptions configures a Subscribe call.
type SubscribeOptions struct {
	// FireImmediately, if true, invokes the listener synchronously with the
	// current state before Subscribe returns.
	FireImmediately bool
}

// Unsubscribe removes a listener. Idempotent: calling it more than once has
// no further effect.
type Unsubscribe func()

type computedEntry struct {
	memo  any
	err   error
	stale bool
	deps  map[atom.ID]struct{}
}

type subscription struct {
	id       uint64
	listener Listener
	atomID   atom.ID // zero value means "global" subscriber
	global   bool
	removed  bool
}

// Store holds atom cells, derives computed cells, and notifies subscribers.
// Not safe for concurrent use beyond what its internal mutex provides for
// incidental concurrent reads -- spec.md §5 specifies a single-threaded
// cooperative scheduling model, not lock-free multi-writer semantics.
type Store struct {
	mu sync.Mutex

	values   map[atom.ID]any          // writable/primitive current values
	computed map[atom.ID]*computedEntry
	dependents map[atom.ID]map[atom.ID]struct{} // atom -> computed atoms that read it last evaluation

	initialValues map[atom.ID]any // snapshot captured at construction, for Reset
	names         map[atom.ID]string // atom id -> name, for pattern-prefix matching

	subs     []*subscription
	nextSub  uint64
	patterns *patternIndex

	batchLevel int
	pending    map[atom.ID]struct{}

	destroyed bool
}

// New creates an empty Store.
func New(cfg Config) *Store {
	return &Store{
		values:        make(map[atom.ID]any, cfg.InitialCapacity),
		computed:      make(map[atom.ID]*computedEntry),
		dependents:    make(map[atom.ID]map[atom.ID]struct{}),
		initialValues: make(map[atom.ID]any, cfg.InitialCapacity),
		names:         make(map[atom.ID]string, cfg.InitialCapacity),
		pending:       make(map[atom.ID]struct{}),
	}
}

// nameLocked returns the name the atom with id was registered under, or ""
// if unknown. Used by pattern-prefix subscription matching.
func (s *Store) nameLocked(id atom.ID) string {
	return s.names[id]
}

// RegisterPreloaded implements atom.StoreAttacher: it seeds a writable or
// primitive atom's current value from its declared initial value the first
// time the store learns about it (via the registry's attach handshake), and
// registers a computed atom so Get can find it.
func (s *Store) RegisterPreloaded(a *atom.Atom) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureAtomLocked(a)
}

func (s *Store) ensureAtomLocked(a *atom.Atom) {
	if _, ok := s.names[a.ID()]; !ok && a.Name() != "" {
		s.names[a.ID()] = a.Name()
	}
	switch a.Variant() {
	case atom.Computed:
		if _, ok := s.computed[a.ID()]; !ok {
			s.computed[a.ID()] = &computedEntry{stale: true, deps: map[atom.ID]struct{}{}}
		}
	default:
		if _, ok := s.values[a.ID()]; !ok {
			v := clone.Clone(a.Initial())
			s.values[a.ID()] = v
			s.initialValues[a.ID()] = clone.Clone(v)
		}
	}
}

// Get returns the atom's current value. For a computed atom, it evaluates
// (or returns the memoized value of) the read function, recording a
// dependency edge from the computed atom to every atom read during
// evaluation (spec.md §4.1).
func (s *Store) Get(a *atom.Atom) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, ErrStoreDestroyed
	}
	return s.getLocked(a)
}

func (s *Store) getLocked(a *atom.Atom) (any, error) {
	s.ensureAtomLocked(a)

	if a.Variant() != atom.Computed {
		return s.values[a.ID()], nil
	}

	entry := s.computed[a.ID()]
	if !entry.stale {
		return entry.memo, entry.err
	}

	tracker := &dependencyTracker{store: s, deps: map[atom.ID]struct{}{}}
	val, err := a.Read()(tracker)

	// Recompute the reverse (dependents) index for this computed atom: drop
	// the old edges before installing the new ones, since dependencies may
	// be dynamic across evaluations.
	for dep := range entry.deps {
		if set, ok := s.dependents[dep]; ok {
			delete(set, a.ID())
		}
	}
	entry.deps = tracker.deps
	for dep := range tracker.deps {
		if s.dependents[dep] == nil {
			s.dependents[dep] = map[atom.ID]struct{}{}
		}
		s.dependents[dep][a.ID()] = struct{}{}
	}

	if err != nil {
		// A failing read function returns the failure without mutating
		// memoization (spec.md §4.1 failure semantics).
		return nil, err
	}

	entry.memo = val
	entry.err = nil
	entry.stale = false
	return val, nil
}

// dependencyTracker implements atom.Getter for the duration of one computed
// evaluation, recording which atoms were read.
type dependencyTracker struct {
	store *Store
	deps  map[atom.ID]struct{}
}

func (t *dependencyTracker) Get(a *atom.Atom) (any, error) {
	t.deps[a.ID()] = struct{}{}
	return t.store.getLocked(a)
}

// Update is either a literal value or a function of the previous value,
// mirroring spec.md §4.1's "value | (prev -> value)".
type Update struct {
	Value  any
	Update func(prev any) (any, error)
}

// Val wraps a literal value as an Update.
func Val(v any) Update { return Update{Value: v} }

// Fn wraps an updater function as an Update.
func Fn(f func(prev any) (any, error)) Update { return Update{Update: f} }

// Set applies an update to a writable or primitive atom. If the computed
// new value is not Equal to the old value, dependent computed atoms are
// marked stale and subscribers are notified (immediately, or deferred to
// the enclosing batch boundary).
func (s *Store) Set(a *atom.Atom, u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrStoreDestroyed
	}
	return s.rawSetLocked(a, u)
}

// WriteRaw is the raw write entry point: it applies a value directly,
// bypassing nothing semantically (change detection and stale propagation
// still happen) but is the entry point the restorer and rollback path call
// so the time-travel controller's wrapped write is never re-entered during
// restoration (spec.md §9).
func (s *Store) WriteRaw(a *atom.Atom, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrStoreDestroyed
	}
	return s.rawSetLocked(a, Val(value))
}

func (s *Store) rawSetLocked(a *atom.Atom, u Update) error {
	if !a.IsWritable() {
		return fmt.Errorf("store: atom %q is not writable", a.Name())
	}
	s.ensureAtomLocked(a)

	old := s.values[a.ID()]
	var next any
	if u.Update != nil {
		v, err := u.Update(old)
		if err != nil {
			return err
		}
		next = v
	} else {
		next = u.Value
	}

	if clone.Equal(old, next) {
		return nil
	}
	s.values[a.ID()] = next

	affected := s.markDependentsStaleLocked(a.ID())
	s.queueNotifyLocked(affected)
	return nil
}

// markDependentsStaleLocked marks every computed atom transitively
// dependent on changed (directly or through another computed atom) as
// stale, and returns the full affected set (changed plus all such
// dependents) for notification purposes.
func (s *Store) markDependentsStaleLocked(changed atom.ID) map[atom.ID]struct{} {
	affected := map[atom.ID]struct{}{changed: {}}
	queue := []atom.ID{changed}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for dep := range s.dependents[cur] {
			if _, seen := affected[dep]; seen {
				continue
			}
			affected[dep] = struct{}{}
			if entry, ok := s.computed[dep]; ok {
				entry.stale = true
			}
			queue = append(queue, dep)
		}
	}
	return affected
}

func (s *Store) queueNotifyLocked(affected map[atom.ID]struct{}) {
	if s.batchLevel > 0 {
		for id := range affected {
			s.pending[id] = struct{}{}
		}
		return
	}
	s.notifyLocked(affected)
}

func (s *Store) notifyLocked(affected map[atom.ID]struct{}) {
	state := s.snapshotValuesLocked()
	event := Event{NewState: state}
	subs := make([]*subscription, len(s.subs))
	copy(subs, s.subs)
	for _, sub := range subs {
		if sub.removed {
			continue
		}
		if !sub.global {
			if _, hit := affected[sub.atomID]; !hit {
				continue
			}
		}
		s.invokeListener(sub, event)
	}
	s.notifyPatternsLocked(affected)
}

func (s *Store) invokeListener(sub *subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			// Listener exceptions are caught per-listener; the store
			// continues notifying remaining subscribers (spec.md §4.1).
			_ = r
		}
	}()
	sub.listener(event)
}

func (s *Store) snapshotValuesLocked() map[atom.ID]any {
	out := make(map[atom.ID]any, len(s.values))
	for id, v := range s.values {
		out[id] = v
	}
	for id, entry := range s.computed {
		if !entry.stale {
			out[id] = entry.memo
		}
	}
	return out
}

// Subscribe appends a global listener, notified on every change regardless
// of which atom changed.
func (s *Store) Subscribe(listener Listener, opts SubscribeOptions) (Unsubscribe, error) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil, ErrStoreDestroyed
	}
	s.nextSub++
	sub := &subscription{id: s.nextSub, listener: listener, global: true}
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	if opts.FireImmediately {
		s.mu.Lock()
		state := s.snapshotValuesLocked()
		s.mu.Unlock()
		s.invokeListener(sub, Event{NewState: state})
	}
	return s.unsubscribeFunc(sub), nil
}

// SubscribeAtom registers a listener notified only when the given atom, or
// any computed atom whose dependency closure currently contains it,
// changes (spec.md §4.1 "Selective notification").
func (s *Store) SubscribeAtom(a *atom.Atom, listener Listener, opts SubscribeOptions) (Unsubscribe, error) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil, ErrStoreDestroyed
	}
	s.nextSub++
	sub := &subscription{id: s.nextSub, listener: listener, atomID: a.ID()}
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	if opts.FireImmediately {
		s.mu.Lock()
		state := s.snapshotValuesLocked()
		s.mu.Unlock()
		s.invokeListener(sub, Event{NewState: state})
	}
	return s.unsubscribeFunc(sub), nil
}

func (s *Store) unsubscribeFunc(sub *subscription) Unsubscribe {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			sub.removed = true
		})
	}
}

// Batch executes fn with notifications suspended. On normal completion it
// fires at most one notification per affected subscriber; if fn returns an
// error, no notification fires and pending-change flags are cleared.
// Batches nest: only the outermost Batch call actually flushes
// notifications (spec.md §4.1 "Batch state machine").
func (s *Store) Batch(fn func() error) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrStoreDestroyed
	}
	s.batchLevel++
	s.mu.Unlock()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("store: batch panic: %v", r)
			}
		}()
		return fn()
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchLevel--
	if err != nil {
		s.pending = make(map[atom.ID]struct{})
		return err
	}
	if s.batchLevel == 0 && len(s.pending) > 0 {
		affected := s.pending
		s.pending = make(map[atom.ID]struct{})
		s.notifyLocked(affected)
	}
	return nil
}

// Reset restores the state captured at construction time (the initial value
// of every atom seen so far), notifying only if the effective state
// differs from what it was.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrStoreDestroyed
	}

	changed := map[atom.ID]struct{}{}
	for id, initial := range s.initialValues {
		if !clone.Equal(s.values[id], initial) {
			s.values[id] = clone.Clone(initial)
			changed[id] = struct{}{}
		}
	}
	if len(changed) == 0 {
		return nil
	}
	all := map[atom.ID]struct{}{}
	for id := range changed {
		for affectedID := range s.markDependentsStaleLocked(id) {
			all[affectedID] = struct{}{}
		}
	}
	s.queueNotifyLocked(all)
	return nil
}

// Destroy idempotently clears listeners and marks the store unusable.
func (s *Store) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.subs = nil
}

// IsDestroyed reports whether Destroy has been called.
func (s *Store) IsDestroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}
