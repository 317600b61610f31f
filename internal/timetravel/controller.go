// Package timetravel implements the Time-Travel Controller (spec.md §4.8):
// it wires together the atom registry, store, tracker, snapshot
// subsystem, restorer, and history/delta engines behind one public API.
package timetravel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nexus-state/nexus-state/internal/atom"
	"github.com/nexus-state/nexus-state/internal/delta"
	"github.com/nexus-state/nexus-state/internal/history"
	"github.com/nexus-state/nexus-state/internal/restore"
	"github.com/nexus-state/nexus-state/internal/snapshot"
	"github.com/nexus-state/nexus-state/internal/store"
	"github.com/nexus-state/nexus-state/internal/tracker"
	"github.com/nexus-state/nexus-state/pkg/log"
)

// Version is reported by GetVersion -- bumped when the public API surface
// changes shape.
const Version = "1.0.0"

// Controller is the Time-Travel Controller (spec.md §4.8).
type Controller struct {
	mu sync.Mutex

	registry  *atom.Registry
	store     *store.Store
	tracker   *tracker.Tracker
	creator   *snapshot.Creator
	validator *snapshot.Validator
	restorer  *restore.Restorer

	history      *history.Manager
	deltaHistory *delta.History
	deltaEnabled bool
	deltaCfg     delta.Config

	creatorAutoCapture bool
	autoCapturePaused  bool
	traveling          int32 // atomic bool: true during undo/redo/jumpTo/restoreWithTransaction

	disposed bool
}

// New constructs a Controller: attaches the store to the registry,
// registers and tracks preloaded atoms, and performs the initial capture labeled
// "initial" (spec.md §4.8).
func New(registry *atom.Registry, s *store.Store, cfg Config) *Controller {
	for _, a := range cfg.Atoms {
		registry.Register(a)
	}
	registry.AttachStore(s)

	validator := snapshot.NewValidator()
	creator := snapshot.NewCreator(registry, s, cfg.Creator)
	restorer := restore.New(registry, s, validator, cfg.Restore, cfg.Transaction)

	c := &Controller{
		registry:           registry,
		store:              s,
		tracker:            tracker.New(tracker.DefaultConfig()),
		creator:            creator,
		validator:          validator,
		restorer:           restorer,
		history:            history.New(cfg.History),
		deltaHistory:       delta.NewHistory(cfg.Delta),
		deltaEnabled:       cfg.Delta.Enabled,
		deltaCfg:           cfg.Delta,
		creatorAutoCapture: cfg.Creator.AutoCapture,
	}
	for _, a := range cfg.Atoms {
		c.tracker.Track(a, "controller")
	}

	if res := creator.CreateWithResult(snapshot.CreateOptions{Action: "initial", SkipStateCheck: true}); res.Snapshot != nil {
		c.addToHistory(res.Snapshot)
	}
	return c
}

func (c *Controller) addToHistory(s *snapshot.Snapshot) {
	if c.deltaEnabled {
		c.deltaHistory.Add(s)
	} else {
		c.history.Add(s)
	}
}

func (c *Controller) isTraveling() bool {
	return atomic.LoadInt32(&c.traveling) == 1
}

func (c *Controller) beginTravel() {
	atomic.StoreInt32(&c.traveling, 1)
}

func (c *Controller) endTravel() {
	atomic.StoreInt32(&c.traveling, 0)
}

// Set is the wrapped write entry (spec.md §4.8): it tracks the atom on
// first write, records the pre/post value in the tracker, delegates to the
// store's raw write, and -- unless auto-capture is paused or a time-travel
// operation is in flight -- emits a capture labeled "set <atomName>".
func (c *Controller) Set(a *atom.Atom, value any) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	c.tracker.Track(a, "controller")
	c.registry.Register(a)
	pre, _ := c.store.Get(a) // pre-value read tolerates failure (spec.md §4.8)
	c.mu.Unlock()

	if err := c.store.WriteRaw(a, value); err != nil {
		return err
	}

	c.mu.Lock()
	post, _ := c.store.Get(a)
	c.tracker.RecordChange(a.ID(), pre, post)
	shouldCapture := c.creatorAutoCapture && !c.autoCapturePaused && !c.isTraveling()
	c.mu.Unlock()

	if shouldCapture {
		c.Capture(fmt.Sprintf("set %s", a.Name()))
	}
	return nil
}

// Capture performs an unconditional named capture (spec.md §4.8
// "capture(action?)").
func (c *Controller) Capture(action string) *snapshot.Snapshot {
	res := c.creator.CreateWithResult(snapshot.CreateOptions{Action: action})
	if res.Snapshot == nil {
		return nil
	}
	c.mu.Lock()
	c.addToHistory(res.Snapshot)
	c.mu.Unlock()
	return res.Snapshot
}

// CaptureWithResult performs a capture and reports success/failure
// accounting without ever returning a Go error (spec.md §4.8
// "captureWithResult").
func (c *Controller) CaptureWithResult(action string) snapshot.Result {
	res := c.creator.CreateWithResult(snapshot.CreateOptions{Action: action})
	if res.Snapshot != nil {
		c.mu.Lock()
		c.addToHistory(res.Snapshot)
		c.mu.Unlock()
	}
	return res
}

// Undo moves the store back one captured state, writing values through the
// raw path so the move itself is never re-captured (spec.md §4.8).
func (c *Controller) Undo() (*snapshot.Snapshot, error) {
	c.beginTravel()
	defer c.endTravel()

	var snap *snapshot.Snapshot
	var err error
	var prevPos int
	if c.deltaEnabled {
		prevPos = c.deltaHistory.Position()
		snap, err = c.deltaHistory.Undo()
	} else {
		prevPos = c.history.Position()
		snap, err = c.history.Undo()
	}
	if err != nil {
		return nil, err
	}
	if werr := c.writeSnapshotRaw(snap); werr != nil {
		c.rollbackPosition(prevPos)
		return nil, werr
	}
	return snap, nil
}

// Redo moves the store forward one step in the future slots (spec.md
// §4.8).
func (c *Controller) Redo() (*snapshot.Snapshot, error) {
	c.beginTravel()
	defer c.endTravel()

	var snap *snapshot.Snapshot
	var err error
	var prevPos int
	if c.deltaEnabled {
		prevPos = c.deltaHistory.Position()
		snap, err = c.deltaHistory.Redo()
	} else {
		prevPos = c.history.Position()
		snap, err = c.history.Redo()
	}
	if err != nil {
		return nil, err
	}
	if werr := c.writeSnapshotRaw(snap); werr != nil {
		c.rollbackPosition(prevPos)
		return nil, werr
	}
	return snap, nil
}

// CanUndo reports whether Undo would succeed.
func (c *Controller) CanUndo() bool {
	if c.deltaEnabled {
		return c.deltaHistory.CanUndo()
	}
	return c.history.CanUndo()
}

// CanRedo reports whether Redo would succeed.
func (c *Controller) CanRedo() bool {
	if c.deltaEnabled {
		return c.deltaHistory.CanRedo()
	}
	return c.history.CanRedo()
}

// JumpTo moves directly to absolute history index i (spec.md §4.8).
func (c *Controller) JumpTo(i int) (*snapshot.Snapshot, error) {
	c.beginTravel()
	defer c.endTravel()

	var snap *snapshot.Snapshot
	var err error
	var prevPos int
	if c.deltaEnabled {
		prevPos = c.deltaHistory.Position()
		snap, err = c.deltaHistory.ReconstructTo(i)
	} else {
		prevPos = c.history.Position()
		snap, err = c.history.JumpTo(i)
	}
	if err != nil {
		return nil, err
	}
	if werr := c.writeSnapshotRaw(snap); werr != nil {
		c.rollbackPosition(prevPos)
		return nil, werr
	}
	return snap, nil
}

// writeSnapshotRaw restores snap's state into the store through the raw
// path and reports whether every atom actually got written. A partial or
// failed restore must never be reported to the caller as a clean
// Undo/Redo/JumpTo (spec.md §8: "no panics on valid input" implies no
// silent desync either).
func (c *Controller) writeSnapshotRaw(snap *snapshot.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := c.restorer.RestoreWithResult(snap, nil)
	if !res.Success {
		errs := make([]error, 0, len(res.Failed))
		for _, f := range res.Failed {
			errs = append(errs, f.Err)
		}
		return &restore.RestorationError{Errors: errs, FailedAtoms: res.Failed}
	}
	return nil
}

// rollbackPosition restores the history pointer to pos after a raw write
// failed partway through, so the reported position never outruns what the
// store actually holds. Best-effort: pos came from this same history an
// instant earlier, so it is only ever out of range if the history was
// concurrently cleared.
func (c *Controller) rollbackPosition(pos int) {
	if pos < 0 {
		return
	}
	if c.deltaEnabled {
		_ = c.deltaHistory.SetPosition(pos)
		return
	}
	_, _ = c.history.JumpTo(pos)
}

// ClearHistory drops all history slots (spec.md §4.8, Open Question (b):
// this implementation does not re-seed a synthetic initial snapshot after
// clearing).
func (c *Controller) ClearHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deltaEnabled {
		c.deltaHistory = delta.NewHistory(c.deltaCfg)
		return
	}
	c.history.Clear()
}

// GetHistory returns every retained snapshot, oldest first.
func (c *Controller) GetHistory() []*snapshot.Snapshot {
	if c.deltaEnabled {
		return c.deltaHistory.GetAll()
	}
	return c.history.GetAll()
}

// GetHistoryStats reports counts, timestamps and compression metadata
// (spec.md §4.8 "getHistoryStats"). Delta-backed history has no
// compression of its own, so CompressedCount/EstimatedBytes stay zero in
// that mode.
func (c *Controller) GetHistoryStats() history.Stats {
	if !c.deltaEnabled {
		return c.history.GetStats()
	}
	pos := c.deltaHistory.Position()
	total := c.deltaHistory.Len()
	oldest, newest := c.deltaHistory.OldestNewest()
	return history.Stats{
		PastCount:       pos,
		HasCurrent:      pos >= 0,
		FutureCount:     total - pos - 1,
		OldestTimestamp: oldest,
		NewestTimestamp: newest,
	}
}

// GetCurrentSnapshot returns the current history position.
func (c *Controller) GetCurrentSnapshot() *snapshot.Snapshot {
	if c.deltaEnabled {
		return c.deltaHistory.Current()
	}
	return c.history.Current()
}

// CompareSnapshots diffs two snapshots (spec.md §4.8 "compareSnapshots").
func (c *Controller) CompareSnapshots(a, b *snapshot.Snapshot, opts snapshot.CompareOptions) *snapshot.Diff {
	return snapshot.Compare(a, b, opts)
}

// CompareWithCurrent diffs a against the current snapshot (spec.md §4.8
// "compareWithCurrent").
func (c *Controller) CompareWithCurrent(a *snapshot.Snapshot, opts snapshot.CompareOptions) *snapshot.Diff {
	return snapshot.Compare(a, c.GetCurrentSnapshot(), opts)
}

// GetDiffSince diffs the current snapshot against the one with the given
// id, if still retained (spec.md §4.8 "getDiffSince").
func (c *Controller) GetDiffSince(id string, opts snapshot.CompareOptions) (*snapshot.Diff, error) {
	for _, s := range c.GetHistory() {
		if s.ID == id {
			return snapshot.Compare(s, c.GetCurrentSnapshot(), opts), nil
		}
	}
	return nil, fmt.Errorf("timetravel: snapshot %q not found in history", id)
}

// VisualizeChanges renders a Diff (spec.md §4.8 "visualizeChanges").
func (c *Controller) VisualizeChanges(diff *snapshot.Diff, format snapshot.VisualFormat) (string, error) {
	return snapshot.Visualize(diff, format)
}

// ExportComparison exports a Diff (spec.md §4.8 "exportComparison").
func (c *Controller) ExportComparison(diff *snapshot.Diff, format snapshot.ExportFormat) (string, error) {
	return snapshot.Export(diff, format)
}

// SubscribeStore forwards to the underlying store's Subscribe.
func (c *Controller) SubscribeStore(l store.Listener, opts store.SubscribeOptions) (store.Unsubscribe, error) {
	return c.store.Subscribe(l, opts)
}

// SubscribeHistory registers a listener for history change events.
func (c *Controller) SubscribeHistory(l history.Listener) func() {
	return c.history.Subscribe(l)
}

// SubscribeTracking registers a listener for tracker events.
func (c *Controller) SubscribeTracking(l tracker.Listener) {
	c.tracker.Subscribe(l)
}

// SubscribeSnapshots registers a listener invoked on every successful
// capture.
func (c *Controller) SubscribeSnapshots(l snapshot.Listener) {
	c.creator.Subscribe(l)
}

// CleanupAtoms sweeps up to count stale tracked atoms (spec.md §4.8
// "cleanupAtoms").
func (c *Controller) CleanupAtoms(count int) int {
	return c.tracker.CleanupNow(count)
}

// GetStaleAtoms returns every tracked atom past its TTL, oldest first.
func (c *Controller) GetStaleAtoms() []*tracker.Entry {
	return c.tracker.GetStale()
}

// ForgetAtom stops tracking the named atom outright (spec.md §4.8
// "forgetAtom").
func (c *Controller) ForgetAtom(name string) {
	a, ok := c.registry.GetByName(name)
	if !ok {
		return
	}
	c.tracker.Untrack(a.ID())
}

// RestoreWithTransaction applies a retained snapshot transactionally
// (spec.md §4.8 "restoreWithTransaction(id, opts)").
func (c *Controller) RestoreWithTransaction(ctx context.Context, snapshotID string, onProgress func(restore.ProgressEvent)) (restore.TransactionResult, error) {
	var target *snapshot.Snapshot
	for _, s := range c.GetHistory() {
		if s.ID == snapshotID {
			target = s
			break
		}
	}
	if target == nil {
		return restore.TransactionResult{}, fmt.Errorf("timetravel: snapshot %q not found in history", snapshotID)
	}

	c.beginTravel()
	defer c.endTravel()
	return c.restorer.RestoreWithTransaction(ctx, target, onProgress), nil
}

// RollbackToCheckpoint restores from a named checkpoint (spec.md §4.8
// "rollbackToCheckpoint").
func (c *Controller) RollbackToCheckpoint(checkpointID string) error {
	c.beginTravel()
	defer c.endTravel()
	return c.restorer.Rollback(checkpointID)
}

// GetCheckpoints returns every live checkpoint.
func (c *Controller) GetCheckpoints() []*restore.Checkpoint {
	return c.restorer.GetCheckpoints()
}

// GetLastCheckpoint returns the most recently created live checkpoint.
func (c *Controller) GetLastCheckpoint() (*restore.Checkpoint, bool) {
	return c.restorer.GetLastCheckpoint()
}

// ImportState writes a name->value map directly into the store through the
// wrapped entry point, one Set per key (spec.md §4.8 "importState").
func (c *Controller) ImportState(values map[string]any) error {
	for name, v := range values {
		a, ok := c.registry.GetByName(name)
		if !ok {
			continue
		}
		if err := c.Set(a, v); err != nil {
			return err
		}
	}
	return nil
}

// PauseAutoCapture suspends capture-on-write without affecting manual
// Capture calls (spec.md §4.8 "pauseAutoCapture").
func (c *Controller) PauseAutoCapture() {
	c.mu.Lock()
	c.autoCapturePaused = true
	c.mu.Unlock()
}

// ResumeAutoCapture re-enables capture-on-write (spec.md §4.8
// "resumeAutoCapture").
func (c *Controller) ResumeAutoCapture() {
	c.mu.Lock()
	c.autoCapturePaused = false
	c.mu.Unlock()
}

// IsTraveling reports whether an undo/redo/jumpTo/restoreWithTransaction is
// currently in flight (spec.md §4.8 "isTraveling").
func (c *Controller) IsTraveling() bool { return c.isTraveling() }

// GetVersion returns the controller's API version.
func (c *Controller) GetVersion() string { return Version }

// GetStore returns the underlying store, for callers (like cmd/nexus-demo)
// that need to read current values directly rather than through a
// snapshot.
func (c *Controller) GetStore() *store.Store { return c.store }

// Dispose tears the controller down in reverse dependency order: restores
// the store's original (non-wrapped) write path by simply ceasing to call
// Set, clears history and caches, and is idempotent (spec.md §4.8
// "dispose").
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.disposed = true
	c.history.Clear()
	c.deltaHistory = delta.NewHistory(c.deltaCfg)
	log.WithComponent("timetravel").Debug().Msg("controller disposed")
}

// ErrDisposed is returned by Set after Dispose.
var ErrDisposed = fmt.Errorf("timetravel: controller disposed")

// --- Delta-specific surface (spec.md §4.8) ---

// GetDeltaChain returns the current delta chain.
func (c *Controller) GetDeltaChain() []*delta.Delta {
	if !c.deltaEnabled {
		return nil
	}
	return c.deltaHistory.GetDeltaChain()
}

// ForceFullSnapshot materializes the current position as a full entry
// (spec.md §4.8 "forceFullSnapshot").
func (c *Controller) ForceFullSnapshot() {
	if c.deltaEnabled {
		c.deltaHistory.ForceFullSnapshot()
	}
}

// SetDeltaStrategy switches the delta engine on or off, rebuilding the
// delta-aware chain from the current plain history (or vice versa) so the
// Controller presents one continuous timeline regardless of strategy
// (spec.md §4.8 "setDeltaStrategy").
func (c *Controller) SetDeltaStrategy(cfg delta.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cfg.Enabled && !c.deltaEnabled {
		c.deltaHistory = delta.NewHistory(cfg)
		all := c.history.GetAll()
		for _, s := range all {
			c.deltaHistory.Add(s)
		}
		if pos := c.history.Position(); pos >= 0 {
			c.deltaHistory.SetPosition(pos)
		}
	}
	if !cfg.Enabled && c.deltaEnabled {
		pos := c.deltaHistory.Position()
		if all := c.deltaHistory.GetAll(); len(all) > 0 {
			c.history.Clear()
			for _, s := range all {
				c.history.Add(s)
			}
			if pos >= 0 {
				c.history.JumpTo(pos)
			}
		}
	}
	c.deltaEnabled = cfg.Enabled
	c.deltaCfg = cfg
}

// ReconstructTo materializes the delta chain's entry at absolute index i
// (spec.md §4.8 "reconstructTo").
func (c *Controller) ReconstructTo(i int) (*snapshot.Snapshot, error) {
	if !c.deltaEnabled {
		return nil, fmt.Errorf("timetravel: delta strategy not enabled")
	}
	return c.deltaHistory.ReconstructTo(i)
}

// GetDeltaStats reports the current delta chain's shape (spec.md §4.8
// "getDeltaStats").
func (c *Controller) GetDeltaStats() delta.ChainStats {
	if !c.deltaEnabled {
		return delta.ChainStats{}
	}
	return c.deltaHistory.GetDeltaStats()
}

// IsDeltaEnabled reports whether the delta engine is currently active.
func (c *Controller) IsDeltaEnabled() bool { return c.deltaEnabled }
