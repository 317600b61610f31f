// Package history implements the History Manager (spec.md §4.6): a
// past/current/future triple of snapshots bounded by maxHistory, with an
// optional compression hook.
package history

import (
	"sync"
	"time"

	"github.com/nexus-state/nexus-state/internal/snapshot"
)

// ChangeEvent is emitted on every structural change to a Manager's triple
// (spec.md §6 "History change: {type, operation, timestamp}").
type ChangeEvent struct {
	Operation string // capture|undo|redo|jump|clear
	Timestamp time.Time
}

// Listener observes history change events.
type Listener func(ChangeEvent)

// slot holds a snapshot either in full or, once a Compressor has elected
// to compress it, only in compressed form -- Get transparently decompresses
// on demand.
type slot struct {
	id        string
	full      *snapshot.Snapshot
	compressed *CompressedSnapshot
}

func newSlot(s *snapshot.Snapshot) *slot {
	return &slot{id: s.ID, full: s}
}

// Stats is the result of GetStats (spec.md §4.6 "getStats").
type Stats struct {
	PastCount       int
	HasCurrent      bool
	FutureCount     int
	OldestTimestamp time.Time
	NewestTimestamp time.Time
	CompressedCount int
	EstimatedBytes  int
}

// Manager is the past/current/future triple (spec.md Data Model
// "History").
type Manager struct {
	mu  sync.Mutex
	cfg Config

	past    []*slot
	current *slot
	future  []*slot

	subs []Listener
}

// New creates an empty Manager.
func New(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// Subscribe registers a listener for history change events.
func (m *Manager) Subscribe(l Listener) func() {
	m.mu.Lock()
	m.subs = append(m.subs, l)
	idx := len(m.subs) - 1
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if idx < len(m.subs) {
			m.subs[idx] = nil
		}
	}
}

func (m *Manager) emit(op string) {
	event := ChangeEvent{Operation: op, Timestamp: time.Now()}
	for _, l := range m.subs {
		if l != nil {
			l(event)
		}
	}
}

func (m *Manager) compress(s *slot) {
	if m.cfg.Compressor == nil || s.full == nil {
		return
	}
	if !m.cfg.Compressor.ShouldCompress(s.full) {
		return
	}
	cs, err := m.cfg.Compressor.Compress(s.full)
	if err != nil {
		return
	}
	s.compressed = cs
	s.full = nil
}

func (m *Manager) materialize(s *slot) *snapshot.Snapshot {
	if s == nil {
		return nil
	}
	if s.full != nil {
		return s.full
	}
	if s.compressed != nil && m.cfg.Compressor != nil {
		if full, err := m.cfg.Compressor.Decompress(s.compressed); err == nil {
			return full
		}
	}
	return nil
}

// Add appends snap as the new current position (spec.md §4.6 "add").
func (m *Manager) Add(snap *snapshot.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxHistory == 0 {
		m.current = newSlot(snap)
		m.past = nil
		m.future = nil
		m.emit("capture")
		return
	}

	if m.current != nil {
		m.past = append(m.past, m.current)
	}
	m.current = newSlot(snap)
	m.future = nil

	if keep := m.cfg.MaxHistory - 1; len(m.past) > keep {
		if keep < 0 {
			keep = 0
		}
		m.past = m.past[len(m.past)-keep:]
	}

	m.compress(m.current)

	m.emit("capture")
}

// Undo moves current into future and pops the most recent past entry into
// current (spec.md §4.6 "undo").
func (m *Manager) Undo() (*snapshot.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.past) == 0 {
		return nil, ErrEmpty
	}
	if m.current != nil {
		m.future = append([]*slot{m.current}, m.future...)
	}
	m.current = m.past[len(m.past)-1]
	m.past = m.past[:len(m.past)-1]
	m.emit("undo")
	return m.materialize(m.current), nil
}

// Redo moves the oldest future entry back into current (spec.md §4.6
// "redo").
func (m *Manager) Redo() (*snapshot.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.future) == 0 {
		return nil, ErrEmpty
	}
	if m.current != nil {
		m.past = append(m.past, m.current)
	}
	m.current = m.future[0]
	m.future = m.future[1:]
	m.emit("redo")
	return m.materialize(m.current), nil
}

// JumpTo rebuilds past/current/future around index i of the full ordered
// sequence past...current...future (spec.md §4.6 "jumpTo").
func (m *Manager) JumpTo(i int) (*snapshot.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.allLocked()
	if i < 0 || i >= len(all) {
		return nil, ErrIndexOutOfRange
	}
	m.past = append([]*slot{}, all[:i]...)
	m.current = all[i]
	m.future = append([]*slot{}, all[i+1:]...)
	m.emit("jump")
	return m.materialize(m.current), nil
}

// GetAll returns every retained snapshot, oldest (past[0]) first: all past
// entries, then current, then all future entries.
func (m *Manager) GetAll() []*snapshot.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.allLocked()
	out := make([]*snapshot.Snapshot, len(all))
	for i, s := range all {
		out[i] = m.materialize(s)
	}
	return out
}

func (m *Manager) allLocked() []*slot {
	all := make([]*slot, 0, len(m.past)+len(m.future)+1)
	all = append(all, m.past...)
	if m.current != nil {
		all = append(all, m.current)
	}
	all = append(all, m.future...)
	return all
}

// CanUndo reports whether Undo would succeed.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.past) > 0
}

// CanRedo reports whether Redo would succeed.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.future) > 0
}

// Current returns the current snapshot, if any.
func (m *Manager) Current() *snapshot.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.materialize(m.current)
}

// Position returns the index of the current entry within GetAll's ordered
// sequence, or -1 if there is no current entry. Used when migrating a
// plain history into a delta-backed one (and back) so the migrated
// timeline's current position lines up with this one's.
func (m *Manager) Position() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return -1
	}
	return len(m.past)
}

// GetStats reports counts, timestamps and compression metadata (spec.md
// §4.6 "getStats").
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.allLocked()
	stats := Stats{PastCount: len(m.past), HasCurrent: m.current != nil, FutureCount: len(m.future)}
	for _, s := range all {
		if s.compressed != nil {
			stats.CompressedCount++
			stats.EstimatedBytes += len(s.compressed.Compressed)
		} else if s.full != nil {
			stats.EstimatedBytes += estimateSize(s.full)
		}
	}
	if len(all) > 0 {
		if full := m.materialize(all[0]); full != nil {
			stats.OldestTimestamp = full.Metadata.Timestamp
		}
		if full := m.materialize(all[len(all)-1]); full != nil {
			stats.NewestTimestamp = full.Metadata.Timestamp
		}
	}
	return stats
}

func estimateSize(s *snapshot.Snapshot) int {
	// Rough per-entry estimate; exactness is not a spec requirement, only
	// monotonic growth with state size.
	return 64 + 96*len(s.State)
}

// Clear drops all three slots (spec.md §4.6 "clear").
func (m *Manager) Clear() {
	m.mu.Lock()
	m.past = nil
	m.current = nil
	m.future = nil
	m.mu.Unlock()
	m.emit("clear")
}

// Len returns the total number of retained slots (past+current+future).
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.past) + len(m.future)
	if m.current != nil {
		n++
	}
	return n
}
