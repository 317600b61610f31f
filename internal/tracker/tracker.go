// Package tracker implements the Atom Tracker (spec.md §2, §4 Data Model
// "Tracked Atom"): which atoms participate in time travel, their access and
// change counters, reference counts, and TTL-based garbage collection.
//
// TTL sweeping is grounded on the teacher's active-expiration loop
// (internal/storage/string_ops.go: CleanupExpiredKeys / getRandomKeysWithExpiry)
// generalized from "random sample of expired keys" to a scan of every
// tracked atom that evicts the oldest-by-lastAccess ones past their TTL.
// The sweep has no time budget.
package tracker

import (
	"sort"
	"time"

	"github.com/nexus-state/nexus-state/internal/atom"
	"github.com/nexus-state/nexus-state/pkg/log"
)

// EventType enumerates the tracking events spec.md §6 lists.
type EventType string

const (
	EventTrack   EventType = "track"
	EventUntrack EventType = "untrack"
	EventAccess  EventType = "access"
	EventChange  EventType = "change"
	EventCleanup EventType = "cleanup"
)

// Event is emitted on every tracking-relevant state change.
type Event struct {
	Type         EventType
	AtomIDOrName string
	Timestamp    time.Time
	Payload      any
}

// Listener receives tracking events.
type Listener func(Event)

// Entry is one tracked atom's bookkeeping record.
type Entry struct {
	ID           atom.ID
	Name         string
	AccessCount  int
	ChangeCount  int
	RefCount     int
	LastAccess   time.Time
	CleanupMarked bool

	subscribers map[string]struct{}
}

// Config configures a Tracker.
type Config struct {
	// TTL is how long an atom may go unaccessed before it becomes eligible
	// for GC. Zero disables TTL-based cleanup entirely.
	TTL time.Duration
	// GCInterval is informational for callers driving their own ticker;
	// the tracker itself never starts a goroutine (spec.md §5: cooperative
	// single-threaded scheduling, no implicit background work).
	GCInterval time.Duration
	// SampleSize mirrors the teacher's keysPerSample. CleanupNow does not
	// read it: every call inspects every tracked atom.
	SampleSize int
}

// DefaultConfig returns a Config with a 5 minute TTL, a 1 minute advertised
// GC interval, and a 20-atom sample size (matching the teacher's
// keysPerSample).
func DefaultConfig() Config {
	return Config{
		TTL:        5 * time.Minute,
		GCInterval: time.Minute,
		SampleSize: 20,
	}
}

// Tracker tracks which atoms participate in time travel. Not safe for
// concurrent use without external synchronization beyond coalescing
// concurrent Track calls for the same atom, per spec.md §5.
type Tracker struct {
	cfg     Config
	entries map[atom.ID]*Entry
	subs    []Listener
}

// New creates a Tracker.
func New(cfg Config) *Tracker {
	return &Tracker{
		cfg:     cfg,
		entries: make(map[atom.ID]*Entry),
	}
}

// Subscribe registers a listener for tracking events.
func (t *Tracker) Subscribe(l Listener) {
	t.subs = append(t.subs, l)
}

func (t *Tracker) emit(ev Event) {
	ev.Timestamp = time.Now()
	for _, l := range t.subs {
		l(ev)
	}
}

// Track begins tracking an atom. Concurrent Track calls for the same atom
// are coalesced: exactly one Entry is produced regardless of how many times
// Track is called for the same id (spec.md §5).
func (t *Tracker) Track(a *atom.Atom, subscriberID string) *Entry {
	entry, existed := t.entries[a.ID()]
	if !existed {
		entry = &Entry{
			ID:          a.ID(),
			Name:        a.Name(),
			LastAccess:  time.Now(),
			subscribers: map[string]struct{}{},
		}
		t.entries[a.ID()] = entry
		t.emit(Event{Type: EventTrack, AtomIDOrName: a.String()})
	}
	if subscriberID != "" {
		if _, already := entry.subscribers[subscriberID]; !already {
			entry.subscribers[subscriberID] = struct{}{}
			entry.RefCount = len(entry.subscribers)
		}
	}
	return entry
}

// Untrack stops tracking an atom outright (spec.md: "explicitly untracked").
func (t *Tracker) Untrack(id atom.ID) {
	entry, ok := t.entries[id]
	if !ok {
		return
	}
	delete(t.entries, id)
	t.emit(Event{Type: EventUntrack, AtomIDOrName: entry.Name})
}

// RecordAccess increments the access counter and bumps lastAccess.
func (t *Tracker) RecordAccess(id atom.ID) {
	entry, ok := t.entries[id]
	if !ok {
		return
	}
	entry.AccessCount++
	entry.LastAccess = time.Now()
	t.emit(Event{Type: EventAccess, AtomIDOrName: entry.Name})
}

// RecordChange increments the change counter, records old/new in Payload,
// and bumps lastAccess.
func (t *Tracker) RecordChange(id atom.ID, oldValue, newValue any) {
	entry, ok := t.entries[id]
	if !ok {
		return
	}
	entry.ChangeCount++
	entry.LastAccess = time.Now()
	t.emit(Event{
		Type:         EventChange,
		AtomIDOrName: entry.Name,
		Payload:      map[string]any{"old": oldValue, "new": newValue},
	})
}

// Get returns the tracked entry for id, if tracked.
func (t *Tracker) Get(id atom.ID) (*Entry, bool) {
	e, ok := t.entries[id]
	return e, ok
}

// GetStale returns every tracked atom whose lastAccess is older than the
// configured TTL, oldest first -- the candidates CleanupNow would evict.
func (t *Tracker) GetStale() []*Entry {
	if t.cfg.TTL <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-t.cfg.TTL)
	var stale []*Entry
	for _, e := range t.entries {
		if e.LastAccess.Before(cutoff) {
			stale = append(stale, e)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].LastAccess.Before(stale[j].LastAccess) })
	return stale
}

// CleanupNow evicts up to count atoms past their TTL, oldest-accessed
// first, mirroring the teacher's sampled active-expiration sweep. count<=0
// means "no limit". It returns the number of atoms evicted.
func (t *Tracker) CleanupNow(count int) int {
	candidates := t.GetStale()
	if count > 0 && len(candidates) > count {
		candidates = candidates[:count]
	}
	for _, e := range candidates {
		e.CleanupMarked = true
		delete(t.entries, e.ID)
		t.emit(Event{Type: EventCleanup, AtomIDOrName: e.Name})
	}
	if len(candidates) > 0 {
		log.WithComponent("tracker").Debug().Int("evicted", len(candidates)).Msg("ttl cleanup swept stale atoms")
	}
	return len(candidates)
}

// All returns every tracked entry.
func (t *Tracker) All() []*Entry {
	out := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	return out
}

// Len returns the number of tracked atoms.
func (t *Tracker) Len() int {
	return len(t.entries)
}
