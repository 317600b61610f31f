package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-state/nexus-state/internal/serialize"
	"github.com/nexus-state/nexus-state/internal/snapshot"
)

func snap(id string, counter float64) *snapshot.Snapshot {
	return &snapshot.Snapshot{
		ID: id,
		State: map[string]snapshot.Entry{
			"counter": {Name: "counter", Value: serialize.Value{Kind: serialize.KindPrimitive, Data: counter}},
		},
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	m := New(DefaultConfig())
	m.Add(snap("s1", 1))
	m.Add(snap("s2", 2))
	m.Add(snap("s3", 3))

	assert.True(t, m.CanUndo())
	assert.False(t, m.CanRedo())

	cur, err := m.Undo()
	require.NoError(t, err)
	assert.Equal(t, "s2", cur.ID)

	cur, err = m.Undo()
	require.NoError(t, err)
	assert.Equal(t, "s1", cur.ID)

	assert.False(t, m.CanUndo())
	_, err = m.Undo()
	assert.ErrorIs(t, err, ErrEmpty)

	cur, err = m.Redo()
	require.NoError(t, err)
	assert.Equal(t, "s2", cur.ID)
}

func TestAddAfterUndoClearsFuture(t *testing.T) {
	m := New(DefaultConfig())
	m.Add(snap("s1", 1))
	m.Add(snap("s2", 2))
	_, err := m.Undo()
	require.NoError(t, err)
	assert.True(t, m.CanRedo())

	m.Add(snap("s3", 3))
	assert.False(t, m.CanRedo(), "a new capture discards the redo future")
}

func TestJumpToRebuildsPastAndFuture(t *testing.T) {
	m := New(DefaultConfig())
	m.Add(snap("s1", 1))
	m.Add(snap("s2", 2))
	m.Add(snap("s3", 3))

	cur, err := m.JumpTo(0)
	require.NoError(t, err)
	assert.Equal(t, "s1", cur.ID)
	assert.False(t, m.CanUndo())
	assert.True(t, m.CanRedo())

	all := m.GetAll()
	require.Len(t, all, 3)
	assert.Equal(t, "s1", all[0].ID)
	assert.Equal(t, "s3", all[2].ID)
}

func TestJumpToOutOfRange(t *testing.T) {
	m := New(DefaultConfig())
	m.Add(snap("s1", 1))
	_, err := m.JumpTo(5)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestMaxHistoryTrimsPast(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxHistory = 2
	m := New(cfg)
	m.Add(snap("s1", 1))
	m.Add(snap("s2", 2))
	m.Add(snap("s3", 3))

	stats := m.GetStats()
	assert.LessOrEqual(t, stats.PastCount, 1, "MaxHistory=2 keeps at most one past entry plus current")
}

func TestMaxHistoryZeroKeepsOnlyCurrent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxHistory = 0
	m := New(cfg)
	m.Add(snap("s1", 1))
	m.Add(snap("s2", 2))

	assert.False(t, m.CanUndo())
	cur := m.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "s2", cur.ID)
}

func TestSubscribeReceivesChangeEvents(t *testing.T) {
	m := New(DefaultConfig())
	var ops []string
	m.Subscribe(func(e ChangeEvent) { ops = append(ops, e.Operation) })

	m.Add(snap("s1", 1))
	m.Add(snap("s2", 2))
	_, _ = m.Undo()
	_, _ = m.Redo()

	assert.Equal(t, []string{"capture", "capture", "undo", "redo"}, ops)
}
