package restore

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nexus-state/nexus-state/internal/atom"
	"github.com/nexus-state/nexus-state/internal/snapshot"
	"github.com/nexus-state/nexus-state/pkg/log"
)

// TransactionPhase is the transactional restore's state machine position
// (spec.md §4.5 "Transactional restore").
type TransactionPhase string

const (
	PhaseValidating        TransactionPhase = "validating"
	PhaseCapturingPreImage TransactionPhase = "capturing_pre_images"
	PhaseApplying          TransactionPhase = "applying"
	PhaseCommitted         TransactionPhase = "committed"
	PhaseRollingBack       TransactionPhase = "rolling_back"
	PhaseDone              TransactionPhase = "done"
)

// ProgressEvent is delivered to an optional onProgress callback as a
// transactional restore advances through its phases.
type ProgressEvent struct {
	Phase     TransactionPhase
	AtomName  string
	Completed int
	Total     int
}

// TransactionResult is the outcome of RestoreWithTransaction.
type TransactionResult struct {
	Success      bool
	CheckpointID string
	Restored     []string
	RolledBack   bool
	Err          error
}

// RestoreWithTransaction applies snap under a checkpoint: every atom's
// pre-image is captured before it is overwritten, so a failure partway
// through can be undone by replaying the checkpoint in reverse (spec.md
// §4.5). Only one transactional (or plain) restoration may be in flight
// per Restorer.
func (r *Restorer) RestoreWithTransaction(ctx context.Context, snap *snapshot.Snapshot, onProgress func(ProgressEvent)) TransactionResult {
	if err := r.tryBeginRestore(); err != nil {
		return TransactionResult{Err: err}
	}
	defer r.endRestore()

	logger := log.WithComponent("restore")

	if r.txCfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.txCfg.Timeout)
		defer cancel()
	}

	report := func(phase TransactionPhase, name string, completed, total int) {
		if onProgress != nil {
			onProgress(ProgressEvent{Phase: phase, AtomName: name, Completed: completed, Total: total})
		}
	}

	report(PhaseValidating, "", 0, 0)
	if r.cfg.ValidateBeforeRestore && r.validator != nil {
		vr := r.validator.Validate(snap)
		if !vr.IsValid && r.cfg.StrictMode {
			return TransactionResult{Err: &InvalidSnapshotError{RuleNames: vr.Errors}}
		}
	}

	cp := newCheckpoint(newCheckpointID(), snap.ID)
	names := sortedNames(snap.State)
	total := len(names)

	report(PhaseCapturingPreImage, "", 0, total)
	type plannedWrite struct {
		name  string
		a     *atom.Atom
		value any
	}
	var writes []plannedWrite
	for i, name := range names {
		select {
		case <-ctx.Done():
			return TransactionResult{Err: ctx.Err()}
		default:
		}
		entry := snap.State[name]
		a, found := r.resolveAtom(entry)
		if !found {
			if r.cfg.OnAtomNotFound == NotFoundThrow {
				return TransactionResult{Err: fmt.Errorf("restore: atom %q not found", name)}
			}
			continue
		}
		if !a.IsWritable() {
			continue
		}
		value, err := deserializeEntry(entry)
		if err != nil {
			return TransactionResult{Err: err}
		}
		prev, err := r.store.Get(a)
		if err != nil {
			return TransactionResult{Err: err}
		}
		cp.capture(a.ID(), prev)
		writes = append(writes, plannedWrite{name: name, a: a, value: value})
		report(PhaseCapturingPreImage, name, i+1, total)
	}

	r.mu.Lock()
	r.addCheckpointLocked(cp)
	r.mu.Unlock()

	report(PhaseApplying, "", 0, len(writes))
	var restored []string
	for i, w := range writes {
		select {
		case <-ctx.Done():
			return TransactionResult{CheckpointID: cp.ID, Restored: restored, Err: ctx.Err()}
		default:
		}
		if err := r.store.WriteRaw(w.a, w.value); err != nil {
			switch r.txCfg.OnError {
			case OnErrorContinue:
				continue
			default: // OnErrorRollback, OnErrorThrow
				if r.txCfg.RollbackOnError || r.txCfg.OnError == OnErrorRollback {
					r.rollback(cp, logger)
					cp.Metadata.InProgress = false
					return TransactionResult{CheckpointID: cp.ID, RolledBack: true, Err: err}
				}
				return TransactionResult{CheckpointID: cp.ID, Err: err}
			}
		}
		restored = append(restored, w.name)
		report(PhaseApplying, w.name, i+1, len(writes))
	}

	cp.Metadata.InProgress = false
	cp.Metadata.Committed = true
	report(PhaseCommitted, "", len(writes), len(writes))
	report(PhaseDone, "", len(writes), len(writes))

	return TransactionResult{Success: true, CheckpointID: cp.ID, Restored: restored}
}

// rollback replays cp's pre-images in reverse insertion order, restoring
// every captured atom to its value before the transaction began (spec.md
// §4.5 "Rollback").
func (r *Restorer) rollback(cp *Checkpoint, logger zerolog.Logger) {
	for i := len(cp.previousValues) - 1; i >= 0; i-- {
		pre := cp.previousValues[i]
		a, ok := r.registry.Get(pre.AtomID)
		if !ok {
			continue
		}
		if err := r.store.WriteRaw(a, pre.Value); err != nil {
			logger.Warn().Err(err).Str("atom", a.Name()).Msg("rollback: failed to restore pre-image")
		}
	}
}

// Rollback restores the store to the state captured by the named
// checkpoint, without requiring an in-flight transaction (spec.md §4.8
// rollbackToCheckpoint).
func (r *Restorer) Rollback(checkpointID string) error {
	r.mu.Lock()
	cp, ok := r.checkpoints[checkpointID]
	r.mu.Unlock()
	if !ok {
		return ErrCheckpointNotFound
	}
	r.rollback(cp, log.WithComponent("restore"))
	return nil
}
