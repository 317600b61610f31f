package delta

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nexus-state/nexus-state/internal/serialize"
	"github.com/nexus-state/nexus-state/internal/snapshot"
)

func mkSnapshot(id string, state map[string]any) *snapshot.Snapshot {
	entries := make(map[string]snapshot.Entry, len(state))
	for name, v := range state {
		entries[name] = snapshot.Entry{Name: name, Value: serialize.Value{Kind: serialize.KindPrimitive, Data: v}}
	}
	return &snapshot.Snapshot{ID: id, State: entries}
}

func TestCalculateDetectsAddRemoveModify(t *testing.T) {
	base := mkSnapshot("base", map[string]any{"a": 1.0, "b": 2.0})
	target := mkSnapshot("target", map[string]any{"a": 1.0, "b": 3.0, "c": 4.0})

	calc := NewCalculator(DefaultConfig())
	d := calc.Calculate(base, target)

	ops := map[string]ChangeOp{}
	for _, c := range d.Changes {
		ops[c.AtomName] = c.Op
	}
	assert.Equal(t, OpModify, ops["b"])
	assert.Equal(t, OpAdd, ops["c"])
	_, hasA := ops["a"]
	assert.False(t, hasA, "unchanged atoms produce no change entry")
}

func TestCalculateDetectsRemoval(t *testing.T) {
	base := mkSnapshot("base", map[string]any{"a": 1.0, "gone": 9.0})
	target := mkSnapshot("target", map[string]any{"a": 1.0})

	calc := NewCalculator(DefaultConfig())
	d := calc.Calculate(base, target)

	found := false
	for _, c := range d.Changes {
		if c.AtomName == "gone" && c.Op == OpRemove {
			found = true
		}
	}
	assert.True(t, found, "expected a remove change for 'gone'")
}

func TestIsEmpty(t *testing.T) {
	base := mkSnapshot("base", map[string]any{"a": 1.0})
	target := mkSnapshot("target", map[string]any{"a": 1.0})

	calc := NewCalculator(DefaultConfig())
	d := calc.Calculate(base, target)
	assert.True(t, d.IsEmpty())
}

func TestHistoryUndoRedoAcrossDeltaChain(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FullSnapshotInterval = 0
	cfg.MaxChainLength = 0
	h := NewHistory(cfg)

	h.Add(mkSnapshot("s1", map[string]any{"counter": 1.0}))
	h.Add(mkSnapshot("s2", map[string]any{"counter": 2.0}))
	h.Add(mkSnapshot("s3", map[string]any{"counter": 3.0}))

	assert.True(t, h.CanUndo())
	cur, err := h.Undo()
	assertNoErr(t, err)
	assert.Equal(t, "s2", cur.ID)

	cur, err = h.Undo()
	assertNoErr(t, err)
	assert.Equal(t, "s1", cur.ID)
	assert.False(t, h.CanUndo())

	cur, err = h.Redo()
	assertNoErr(t, err)
	assert.Equal(t, "s2", cur.ID)
}

func TestHistoryForceFullSnapshotResetsChain(t *testing.T) {
	cfg := DefaultConfig()
	h := NewHistory(cfg)
	h.Add(mkSnapshot("s1", map[string]any{"counter": 1.0}))
	h.Add(mkSnapshot("s2", map[string]any{"counter": 2.0}))

	h.ForceFullSnapshot()
	chain := h.GetDeltaChain()
	assert.Empty(t, chain, "forcing a full snapshot starts a fresh chain with no deltas yet")
}

func TestHistoryMaxChainLengthForcesFullSnapshot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxChainLength = 2
	cfg.FullSnapshotInterval = 0
	h := NewHistory(cfg)

	for i := 0; i < 5; i++ {
		h.Add(mkSnapshot(string(rune('a'+i)), map[string]any{"counter": float64(i)}))
	}

	stats := h.GetDeltaStats()
	assert.LessOrEqual(t, stats.ChainLength, 1, "MaxChainLength=2 forces a full snapshot before the chain grows past one delta")
}

func TestReconstructToMatchesGetAll(t *testing.T) {
	h := NewHistory(DefaultConfig())
	h.Add(mkSnapshot("s1", map[string]any{"counter": 1.0}))
	h.Add(mkSnapshot("s2", map[string]any{"counter": 2.0}))
	h.Add(mkSnapshot("s3", map[string]any{"counter": 3.0}))

	all := h.GetAll()
	for i, want := range all {
		got, err := h.ReconstructTo(i)
		assertNoErr(t, err)
		assert.Equal(t, want.ID, got.ID)
	}
}

func assertNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
