package restore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-state/nexus-state/internal/atom"
	"github.com/nexus-state/nexus-state/internal/snapshot"
	"github.com/nexus-state/nexus-state/internal/serialize"
	"github.com/nexus-state/nexus-state/internal/store"
)

func newTestRig(t *testing.T) (*atom.Registry, *store.Store, *atom.Atom, *snapshot.Creator) {
	t.Helper()
	registry := atom.NewRegistry()
	s := store.New(store.DefaultConfig())
	a := atom.New("counter", 0)
	registry.Register(a)
	registry.AttachStore(s)
	creator := snapshot.NewCreator(registry, s, snapshot.DefaultCreatorConfig())
	return registry, s, a, creator
}

func TestRestoreAppliesSnapshotValues(t *testing.T) {
	registry, s, a, creator := newTestRig(t)
	require.NoError(t, s.Set(a, store.Val(42)))

	snap, err := creator.Create(snapshot.CreateOptions{Action: "checkpoint"})
	require.NoError(t, err)
	require.NotNil(t, snap)

	require.NoError(t, s.Set(a, store.Val(0)))

	r := New(registry, s, nil, DefaultConfig(), DefaultTransactionConfig())
	res := r.RestoreWithResult(snap, nil)
	assert.True(t, res.Success)
	assert.Contains(t, res.Restored, "counter")

	v, err := s.Get(a)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestRestoreNotFoundPolicySkip(t *testing.T) {
	registry, s, _, _ := newTestRig(t)
	snap := &snapshot.Snapshot{
		State: map[string]snapshot.Entry{
			"ghost": {Name: "ghost", Variant: atom.Writable, Value: serialize.Value{Kind: serialize.KindPrimitive, Data: "x"}},
		},
	}

	cfg := DefaultConfig()
	cfg.OnAtomNotFound = NotFoundSkip
	r := New(registry, s, nil, cfg, DefaultTransactionConfig())
	res := r.RestoreWithResult(snap, nil)
	assert.True(t, res.Success)
	assert.Empty(t, res.Failed)
}

func TestRestoreNotFoundPolicyThrowRecordsFailure(t *testing.T) {
	registry, s, _, _ := newTestRig(t)
	snap := &snapshot.Snapshot{
		State: map[string]snapshot.Entry{
			"ghost": {Name: "ghost", Variant: atom.Writable, Value: serialize.Value{Kind: serialize.KindPrimitive, Data: "x"}},
		},
	}

	cfg := DefaultConfig()
	cfg.OnAtomNotFound = NotFoundThrow
	r := New(registry, s, nil, cfg, DefaultTransactionConfig())
	res := r.RestoreWithResult(snap, nil)
	assert.False(t, res.Success)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "ghost", res.Failed[0].Name)
}

func TestRestoreWithTransactionAbortsBeforeApplyingOnDeserializeFailure(t *testing.T) {
	registry, s, a, creator := newTestRig(t)
	require.NoError(t, s.Set(a, store.Val(1)))
	snap, err := creator.Create(snapshot.CreateOptions{})
	require.NoError(t, err)

	// Poison the snapshot entry's value so deserialization fails during
	// pre-image capture, before any write is applied.
	entry := snap.State["counter"]
	entry.Value = serialize.Value{Kind: "not-a-real-kind", Data: nil}
	snap.State["counter"] = entry

	require.NoError(t, s.Set(a, store.Val(99)))

	r := New(registry, s, nil, DefaultConfig(), DefaultTransactionConfig())

	var events []ProgressEvent
	result := r.RestoreWithTransaction(context.Background(), snap, func(e ProgressEvent) {
		events = append(events, e)
	})

	assert.False(t, result.Success)
	assert.Error(t, result.Err)
	assert.False(t, result.RolledBack, "nothing was applied yet, so there is nothing to roll back")
	assert.NotEmpty(t, events)

	v, err := s.Get(a)
	require.NoError(t, err)
	assert.Equal(t, 99, v, "a restore aborted before applying must leave state untouched")
}

func TestRollbackRestoresPreImagesInReverseOrder(t *testing.T) {
	registry, s, a, creator := newTestRig(t)
	require.NoError(t, s.Set(a, store.Val(1)))
	snap, err := creator.Create(snapshot.CreateOptions{})
	require.NoError(t, err)

	r := New(registry, s, nil, DefaultConfig(), DefaultTransactionConfig())
	result := r.RestoreWithTransaction(context.Background(), snap, nil)
	require.True(t, result.Success)

	require.NoError(t, s.Set(a, store.Val(500)))

	require.NoError(t, r.Rollback(result.CheckpointID))
	v, err := s.Get(a)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestRollbackUnknownCheckpointReturnsError(t *testing.T) {
	registry, s, _, _ := newTestRig(t)
	r := New(registry, s, nil, DefaultConfig(), DefaultTransactionConfig())
	err := r.Rollback("does-not-exist")
	assert.ErrorIs(t, err, ErrCheckpointNotFound)
}

func TestRestoreWithTransactionRejectsConcurrentRestore(t *testing.T) {
	registry, s, _, creator := newTestRig(t)
	snap, err := creator.Create(snapshot.CreateOptions{})
	require.NoError(t, err)

	r := New(registry, s, nil, DefaultConfig(), DefaultTransactionConfig())
	require.NoError(t, r.tryBeginRestore())
	defer r.endRestore()

	result := r.RestoreWithTransaction(context.Background(), snap, nil)
	assert.ErrorIs(t, result.Err, ErrAlreadyRestoring)
}

func TestCheckpointEvictionByMaxCheckpoints(t *testing.T) {
	registry, s, _, creator := newTestRig(t)
	txCfg := DefaultTransactionConfig()
	txCfg.MaxCheckpoints = 2
	txCfg.CheckpointTimeout = 0
	r := New(registry, s, nil, DefaultConfig(), txCfg)

	for i := 0; i < 5; i++ {
		snap, err := creator.Create(snapshot.CreateOptions{})
		require.NoError(t, err)
		_ = r.RestoreWithTransaction(context.Background(), snap, nil)
	}

	cps := r.GetCheckpoints()
	assert.LessOrEqual(t, len(cps), 2)
}

func TestCheckpointEvictionByTimeout(t *testing.T) {
	registry, s, _, creator := newTestRig(t)
	txCfg := DefaultTransactionConfig()
	txCfg.MaxCheckpoints = 0
	txCfg.CheckpointTimeout = time.Millisecond
	r := New(registry, s, nil, DefaultConfig(), txCfg)

	snap, err := creator.Create(snapshot.CreateOptions{})
	require.NoError(t, err)
	_ = r.RestoreWithTransaction(context.Background(), snap, nil)

	time.Sleep(5 * time.Millisecond)
	_, ok := r.GetLastCheckpoint()
	assert.False(t, ok, "checkpoints older than CheckpointTimeout must be evicted")
}
