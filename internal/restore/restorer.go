// Package restore implements the Snapshot Restorer (spec.md §4.5): plain
// restoration and the transactional variant with checkpoints and rollback.
//
// The checkpoint-as-pre-image-log idiom is grounded on the teacher's
// optimistic-transaction bookkeeping (internal/handler/transaction.go:
// WatchedKeys + Dirty flag, tracking what must be checked before a MULTI/
// EXEC commits) generalized from "watch for external mutation" to "record
// the pre-image so a failed restore can be undone".
package restore

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexus-state/nexus-state/internal/atom"
	"github.com/nexus-state/nexus-state/internal/serialize"
	"github.com/nexus-state/nexus-state/internal/snapshot"
	"github.com/nexus-state/nexus-state/internal/store"
	"github.com/nexus-state/nexus-state/pkg/log"
)

// Restorer applies a Snapshot to a Store (spec.md §4.5).
type Restorer struct {
	registry  *atom.Registry
	store     *store.Store
	validator *snapshot.Validator
	cfg       Config
	txCfg     TransactionConfig

	mu          sync.Mutex
	restoring   bool
	checkpoints map[string]*Checkpoint
	order       []string // checkpoint ids, oldest first, for recency eviction
}

// New builds a Restorer.
func New(registry *atom.Registry, s *store.Store, validator *snapshot.Validator, cfg Config, txCfg TransactionConfig) *Restorer {
	return &Restorer{
		registry:    registry,
		store:       s,
		validator:   validator,
		cfg:         cfg,
		txCfg:       txCfg,
		checkpoints: make(map[string]*Checkpoint),
	}
}

func (r *Restorer) tryBeginRestore() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.restoring {
		return ErrAlreadyRestoring
	}
	r.restoring = true
	return nil
}

func (r *Restorer) endRestore() {
	r.mu.Lock()
	r.restoring = false
	r.mu.Unlock()
}

func (r *Restorer) resolveAtom(entry snapshot.Entry) (*atom.Atom, bool) {
	if a, ok := r.registry.GetByName(entry.Name); ok {
		return a, true
	}
	if id, ok := atom.ParseIDString(entry.AtomIDString); ok {
		if a, ok := r.registry.Get(id); ok {
			return a, true
		}
	}
	return nil, false
}

func deserializeEntry(entry snapshot.Entry) (any, error) {
	return serialize.Deserialize(entry.Value)
}

// Restore applies snap to the store. transform, if non-nil, runs before
// writing.
func (r *Restorer) Restore(snap *snapshot.Snapshot, transform func(*snapshot.Snapshot) *snapshot.Snapshot) error {
	res := r.RestoreWithResult(snap, transform)
	if !res.Success && r.cfg.StrictMode {
		return &RestorationError{Errors: res.errs(), FailedAtoms: res.Failed}
	}
	return nil
}

// Result is the outcome of RestoreWithResult.
type Result struct {
	Success   bool
	Restored  []string
	Failed    []AtomFailure
	Warnings  []string
	Duration  time.Duration
}

func (res Result) errs() []error {
	out := make([]error, 0, len(res.Failed))
	for _, f := range res.Failed {
		out = append(out, f.Err)
	}
	return out
}

// RestoreWithResult applies snap to the store and reports per-atom
// accounting. It never panics; in non-strict mode it never returns an
// error either, surfacing everything through the returned Result
// (spec.md §4.5 "Never throws unless strict").
func (r *Restorer) RestoreWithResult(snap *snapshot.Snapshot, transform func(*snapshot.Snapshot) *snapshot.Snapshot) Result {
	start := time.Now()
	if err := r.tryBeginRestore(); err != nil {
		return Result{Failed: []AtomFailure{{Err: err}}, Duration: time.Since(start)}
	}
	defer r.endRestore()
	res := Result{Success: true}

	if r.cfg.ValidateBeforeRestore && r.validator != nil {
		vr := r.validator.Validate(snap)
		if !vr.IsValid {
			res.Warnings = append(res.Warnings, vr.Errors...)
			if r.cfg.StrictMode {
				res.Success = false
				res.Duration = time.Since(start)
				return res
			}
		}
	}

	if transform != nil {
		snap = transform(snap)
	}

	names := sortedNames(snap.State)

	var passes [][]string
	if r.cfg.BatchRestore {
		passes = [][]string{names}
	} else {
		var primitives, writables []string
		for _, name := range names {
			entry := snap.State[name]
			if entry.Variant == atom.Primitive {
				primitives = append(primitives, name)
			} else {
				writables = append(writables, name)
			}
		}
		passes = [][]string{primitives, writables}
	}

	for _, pass := range passes {
		for _, name := range pass {
			entry := snap.State[name]
			a, found := r.resolveAtom(entry)
			if !found {
				switch r.cfg.OnAtomNotFound {
				case NotFoundSkip:
					continue
				case NotFoundWarn:
					res.Warnings = append(res.Warnings, fmt.Sprintf("restore: atom %q not found", name))
					continue
				default:
					res.Failed = append(res.Failed, AtomFailure{Name: name, AtomID: entry.AtomIDString, Err: fmt.Errorf("atom %q not found", name)})
					res.Success = false
					if !r.cfg.SkipErrors {
						res.Duration = time.Since(start)
						return res
					}
					continue
				}
			}
			if !a.IsWritable() {
				continue // computed atoms re-derive; nothing to write
			}
			value, err := deserializeEntry(entry)
			if err != nil {
				res.Failed = append(res.Failed, AtomFailure{Name: name, AtomID: entry.AtomIDString, Err: err})
				res.Success = false
				if !r.cfg.SkipErrors {
					res.Duration = time.Since(start)
					return res
				}
				continue
			}
			if err := r.store.WriteRaw(a, value); err != nil {
				res.Failed = append(res.Failed, AtomFailure{Name: name, AtomID: entry.AtomIDString, Err: err})
				res.Success = false
				if !r.cfg.SkipErrors {
					res.Duration = time.Since(start)
					return res
				}
				continue
			}
			res.Restored = append(res.Restored, name)
		}
	}

	res.Duration = time.Since(start)
	return res
}

func sortedNames(state map[string]snapshot.Entry) []string {
	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetCheckpoints returns every live checkpoint, oldest first.
func (r *Restorer) GetCheckpoints() []*Checkpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()
	out := make([]*Checkpoint, len(r.order))
	for i, id := range r.order {
		out[i] = r.checkpoints[id]
	}
	return out
}

// GetLastCheckpoint returns the most recently created live checkpoint.
func (r *Restorer) GetLastCheckpoint() (*Checkpoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()
	if len(r.order) == 0 {
		return nil, false
	}
	latest := r.order[0]
	for _, id := range r.order {
		if r.checkpoints[id].Timestamp.After(r.checkpoints[latest].Timestamp) {
			latest = id
		}
	}
	return r.checkpoints[latest], true
}

func (r *Restorer) addCheckpointLocked(cp *Checkpoint) {
	r.checkpoints[cp.ID] = cp
	r.order = append(r.order, cp.ID)
	r.evictLocked()
}

// evictLocked enforces "keep at most maxCheckpoints by recency AND drop any
// older than checkpointTimeout" (spec.md §4.5).
func (r *Restorer) evictLocked() {
	now := time.Now()
	kept := r.order[:0]
	for _, id := range r.order {
		cp, ok := r.checkpoints[id]
		if !ok {
			continue
		}
		if r.txCfg.CheckpointTimeout > 0 && now.Sub(cp.Timestamp) > r.txCfg.CheckpointTimeout {
			delete(r.checkpoints, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept

	if r.txCfg.MaxCheckpoints > 0 && len(r.order) > r.txCfg.MaxCheckpoints {
		sort.Slice(r.order, func(i, j int) bool {
			return r.checkpoints[r.order[i]].Timestamp.Before(r.checkpoints[r.order[j]].Timestamp)
		})
		excess := len(r.order) - r.txCfg.MaxCheckpoints
		for _, id := range r.order[:excess] {
			delete(r.checkpoints, id)
			log.WithComponent("restore").Debug().Str("checkpoint", id).Msg("evicted checkpoint over capacity")
		}
		r.order = r.order[excess:]
	}
}

func newCheckpointID() string {
	return uuid.NewString()
}
