package delta

import (
	"time"

	"github.com/nexus-state/nexus-state/internal/snapshot"
)

type entryKind int

const (
	entryFull entryKind = iota
	entryDelta
)

type chainEntry struct {
	kind      entryKind
	full      *snapshot.Snapshot // set iff kind==entryFull
	delta     *Delta             // set iff kind==entryDelta
	timestamp time.Time
	size      int // estimated bytes, for MaxChainSize bookkeeping
}

// ChainStats reports the shape of the current delta chain (spec.md §4.8
// "getDeltaStats").
type ChainStats struct {
	ChainLength int
	ChainAge    time.Duration
	ChainBytes  int
}

// History is the Delta-Aware History Manager (spec.md §4.7): externally it
// behaves like history.Manager (past/current/future), but internally a
// "full" entry anchors a chain of deltas, reconstructed lazily.
type History struct {
	cfg   Config
	calc  *Calculator
	recon *Reconstructor

	entries []chainEntry // the full past+current+future sequence
	current int          // index into entries; -1 means empty
}

// NewHistory builds a delta-aware history using cfg's chain bounds.
func NewHistory(cfg Config) *History {
	return &History{
		cfg:     cfg,
		calc:    NewCalculator(cfg),
		recon:   NewReconstructor(cfg.MaxCacheSize),
		current: -1,
	}
}

func (h *History) chainTailID() string {
	for i := h.current; i >= 0; i-- {
		if h.entries[i].kind == entryFull {
			return h.entries[i].full.ID
		}
	}
	return ""
}

// chainStartLocked returns the index of the full snapshot anchoring the
// chain that position idx belongs to.
func (h *History) chainStartLocked(idx int) int {
	for i := idx; i >= 0; i-- {
		if h.entries[i].kind == entryFull {
			return i
		}
	}
	return 0
}

func (h *History) materialize(idx int) *snapshot.Snapshot {
	if idx < 0 || idx >= len(h.entries) {
		return nil
	}
	start := h.chainStartLocked(idx)
	full := h.entries[start].full
	var deltas []*Delta
	for i := start + 1; i <= idx; i++ {
		deltas = append(deltas, h.entries[i].delta)
	}
	result, _ := h.recon.Reconstruct(full.ID, full, deltas, len(deltas))
	return result
}

// Add appends s as the new current position, storing it as a full entry or
// a delta against the prior current depending on the configured chain
// bounds (spec.md §4.7).
func (h *History) Add(s *snapshot.Snapshot) {
	// Any redo future is discarded on a new write.
	if h.current >= 0 && h.current < len(h.entries)-1 {
		h.entries = h.entries[:h.current+1]
		// Cached reconstructions past current belong to the discarded
		// branch and would be served for the new entries' indices.
		h.recon = NewReconstructor(h.cfg.MaxCacheSize)
	}

	if len(h.entries) == 0 {
		h.entries = append(h.entries, chainEntry{kind: entryFull, full: s, timestamp: time.Now(), size: estimateSize(s)})
		h.current = 0
		return
	}

	prev := h.materialize(h.current)
	chainStart := h.chainStartLocked(h.current)
	chainLen := h.current - chainStart + 1
	chainAge := time.Since(h.entries[chainStart].timestamp)
	chainBytes := 0
	for i := chainStart; i <= h.current; i++ {
		chainBytes += h.entries[i].size
	}

	forceFull := (h.cfg.FullSnapshotInterval > 0 && chainLen >= h.cfg.FullSnapshotInterval) ||
		(h.cfg.MaxChainLength > 0 && chainLen >= h.cfg.MaxChainLength) ||
		(h.cfg.MaxChainAge > 0 && chainAge >= h.cfg.MaxChainAge) ||
		(h.cfg.MaxChainSize > 0 && chainBytes >= h.cfg.MaxChainSize)

	if forceFull {
		h.entries = append(h.entries, chainEntry{kind: entryFull, full: s, timestamp: time.Now(), size: estimateSize(s)})
	} else {
		d := h.calc.Calculate(prev, s)
		h.entries = append(h.entries, chainEntry{kind: entryDelta, delta: d, timestamp: time.Now(), size: estimateSize(s)})
	}
	h.current = len(h.entries) - 1
}

// Current returns the materialized snapshot at the current position.
func (h *History) Current() *snapshot.Snapshot {
	if h.current < 0 {
		return nil
	}
	return h.materialize(h.current)
}

// CanUndo reports whether Undo would succeed.
func (h *History) CanUndo() bool { return h.current > 0 }

// CanRedo reports whether Redo would succeed.
func (h *History) CanRedo() bool { return h.current >= 0 && h.current < len(h.entries)-1 }

// Len returns the total number of retained entries.
func (h *History) Len() int { return len(h.entries) }

// Position returns the index of the current entry, or -1 if empty. Used by
// the Controller to report history.Stats-shaped counts for a delta-backed
// history the same way it does for a plain one.
func (h *History) Position() int { return h.current }

// OldestNewest returns the timestamps of the first and last retained
// entries, or the zero time pair if empty.
func (h *History) OldestNewest() (time.Time, time.Time) {
	if len(h.entries) == 0 {
		return time.Time{}, time.Time{}
	}
	return h.entries[0].timestamp, h.entries[len(h.entries)-1].timestamp
}

// SetPosition moves current directly to index i without discarding
// anything after it, unlike Add. Used when migrating a plain history's
// full past/current/future sequence into this one (spec.md §4.8
// "setDeltaStrategy"): every snapshot is appended first (which leaves
// current at the tail), then the source's original position is restored.
func (h *History) SetPosition(i int) error {
	if i < -1 || i >= len(h.entries) {
		return ErrIndexOutOfRangeChain
	}
	h.current = i
	return nil
}

// Undo moves current one position back.
func (h *History) Undo() (*snapshot.Snapshot, error) {
	if h.current <= 0 {
		return nil, ErrEmptyChain
	}
	h.current--
	return h.materialize(h.current), nil
}

// Redo moves current one position forward.
func (h *History) Redo() (*snapshot.Snapshot, error) {
	if h.current < 0 || h.current >= len(h.entries)-1 {
		return nil, ErrEmptyChain
	}
	h.current++
	return h.materialize(h.current), nil
}

// ReconstructTo returns the materialized snapshot at absolute index idx in
// the full past+current+future sequence (spec.md §4.7 "reconstructTo").
func (h *History) ReconstructTo(idx int) (*snapshot.Snapshot, error) {
	if idx < 0 || idx >= len(h.entries) {
		return nil, ErrIndexOutOfRangeChain
	}
	return h.materialize(idx), nil
}

// GetAll lazily reconstructs and returns the full past+current+future
// sequence (spec.md §4.7 "getAll").
func (h *History) GetAll() []*snapshot.Snapshot {
	out := make([]*snapshot.Snapshot, len(h.entries))
	for i := range h.entries {
		out[i] = h.materialize(i)
	}
	return out
}

// ForceFullSnapshot materializes the current position as a full entry,
// starting a new chain from here (spec.md §4.7 "forceFullSnapshot").
func (h *History) ForceFullSnapshot() {
	if h.current < 0 {
		return
	}
	full := h.materialize(h.current)
	h.entries[h.current] = chainEntry{kind: entryFull, full: full, timestamp: time.Now(), size: estimateSize(full)}
}

// GetDeltaChain returns the delta chain entries since the last full
// snapshot preceding (and including) the current position.
func (h *History) GetDeltaChain() []*Delta {
	if h.current < 0 {
		return nil
	}
	start := h.chainStartLocked(h.current)
	var out []*Delta
	for i := start + 1; i <= h.current; i++ {
		out = append(out, h.entries[i].delta)
	}
	return out
}

// GetDeltaStats reports the current chain's shape.
func (h *History) GetDeltaStats() ChainStats {
	if h.current < 0 {
		return ChainStats{}
	}
	start := h.chainStartLocked(h.current)
	bytes := 0
	for i := start; i <= h.current; i++ {
		bytes += h.entries[i].size
	}
	return ChainStats{
		ChainLength: h.current - start,
		ChainAge:    time.Since(h.entries[start].timestamp),
		ChainBytes:  bytes,
	}
}

func estimateSize(s *snapshot.Snapshot) int {
	if s == nil {
		return 0
	}
	return 64 + 96*len(s.State)
}
