package snapshot

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-state/nexus-state/internal/clone"
	"github.com/nexus-state/nexus-state/internal/serialize"
)

func TestWriteToAndReadFromRoundTrip(t *testing.T) {
	snap := &Snapshot{
		ID:       "abc",
		Metadata: Metadata{Timestamp: time.Now().UTC(), AtomCount: 1},
		State: map[string]Entry{
			"x": {Value: serialize.Value{Kind: serialize.KindPrimitive, Data: 1.0}, Variant: "writable", Name: "x"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTo(&buf, snap))

	back, err := ReadFrom(&buf)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, back.ID)
	assert.Equal(t, snap.State["x"].Value.Data, back.State["x"].Value.Data)
}

func TestWriteToAndReadFromRoundTripsCompoundKinds(t *testing.T) {
	snap := &Snapshot{
		ID:       "compound",
		Metadata: Metadata{Timestamp: time.Now().UTC(), AtomCount: 2},
		State: map[string]Entry{
			"m": {Name: "m", Value: serialize.Value{
				Kind: serialize.KindMap,
				Data: []any{
					[2]any{"a", serialize.Value{Kind: serialize.KindPrimitive, Data: 1.0}},
					[2]any{"b", serialize.Value{Kind: serialize.KindArray, Data: []any{
						serialize.Value{Kind: serialize.KindPrimitive, Data: "x"},
						serialize.Value{Kind: serialize.KindPrimitive, Data: "y"},
					}}},
				},
			}},
			"s": {Name: "s", Value: serialize.Value{
				Kind: serialize.KindSet,
				Data: []any{
					serialize.Value{Kind: serialize.KindPrimitive, Data: 1.0},
					serialize.Value{Kind: serialize.KindPrimitive, Data: 2.0},
				},
			}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTo(&buf, snap))

	back, err := ReadFrom(&buf)
	require.NoError(t, err)

	mapVal, err := serialize.Deserialize(back.State["m"].Value)
	require.NoError(t, err)
	om, ok := mapVal.(*clone.OrderedMap)
	require.True(t, ok, "map entry must deserialize to *clone.OrderedMap even after a JSON round-trip")
	entries := om.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0][0])
	assert.Equal(t, 1.0, entries[0][1])
	assert.Equal(t, "b", entries[1][0])
	assert.Equal(t, []any{"x", "y"}, entries[1][1])

	setVal, err := serialize.Deserialize(back.State["s"].Value)
	require.NoError(t, err)
	set, ok := setVal.(*clone.Set)
	require.True(t, ok, "set entry must deserialize to *clone.Set even after a JSON round-trip")
	assert.ElementsMatch(t, []any{1.0, 2.0}, set.Items())
}

func TestReadFromInvalidJSONErrors(t *testing.T) {
	_, err := ReadFrom(bytes.NewBufferString("not json"))
	assert.Error(t, err)
}

func TestCommandLogIsSortedByAtomName(t *testing.T) {
	snap := &Snapshot{
		State: map[string]Entry{
			"b": {Value: serialize.Value{Data: 2.0}},
			"a": {Value: serialize.Value{Data: 1.0}},
		},
	}

	log := CommandLog(snap)
	require.Len(t, log, 2)
	assert.Equal(t, "a", log[0].AtomName)
	assert.Equal(t, "b", log[1].AtomName)
}
