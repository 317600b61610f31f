package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-state/nexus-state/internal/serialize"
)

func entryFor(v float64) Entry {
	return Entry{Value: serialize.Value{Kind: serialize.KindPrimitive, Data: v}, Variant: "writable", Name: "x"}
}

func TestCompareDetectsAdd(t *testing.T) {
	a := &Snapshot{ID: "a", State: map[string]Entry{}}
	b := &Snapshot{ID: "b", State: map[string]Entry{"x": entryFor(1)}}

	diff := Compare(a, b, CompareOptions{})
	require.Len(t, diff.Changes, 1)
	assert.Equal(t, OpAdd, diff.Changes[0].Op)
	assert.Nil(t, diff.Changes[0].OldValue)
}

func TestCompareDetectsRemove(t *testing.T) {
	a := &Snapshot{ID: "a", State: map[string]Entry{"x": entryFor(1)}}
	b := &Snapshot{ID: "b", State: map[string]Entry{}}

	diff := Compare(a, b, CompareOptions{})
	require.Len(t, diff.Changes, 1)
	assert.Equal(t, OpRemove, diff.Changes[0].Op)
	assert.Nil(t, diff.Changes[0].NewValue)
}

func TestCompareDetectsModify(t *testing.T) {
	a := &Snapshot{ID: "a", State: map[string]Entry{"x": entryFor(1)}}
	b := &Snapshot{ID: "b", State: map[string]Entry{"x": entryFor(2)}}

	diff := Compare(a, b, CompareOptions{})
	require.Len(t, diff.Changes, 1)
	assert.Equal(t, OpModify, diff.Changes[0].Op)
}

func TestCompareNoChangesWhenEqual(t *testing.T) {
	a := &Snapshot{ID: "a", State: map[string]Entry{"x": entryFor(1)}}
	b := &Snapshot{ID: "b", State: map[string]Entry{"x": entryFor(1)}}

	diff := Compare(a, b, CompareOptions{})
	assert.Empty(t, diff.Changes)
}

func TestCompareHandlesNilSnapshots(t *testing.T) {
	b := &Snapshot{ID: "b", State: map[string]Entry{"x": entryFor(1)}}
	diff := Compare(nil, b, CompareOptions{})
	require.Len(t, diff.Changes, 1)
	assert.Equal(t, OpAdd, diff.Changes[0].Op)
	assert.Empty(t, diff.FromID)
}

func TestCompareDeepVsShallowDivergeOnNestedArrays(t *testing.T) {
	nestedA := serialize.Value{Kind: serialize.KindArray, Data: []any{
		serialize.Value{Kind: serialize.KindPrimitive, Data: 1.0},
	}}
	nestedB := serialize.Value{Kind: serialize.KindArray, Data: []any{
		serialize.Value{Kind: serialize.KindPrimitive, Data: 2.0},
	}}
	a := &Snapshot{ID: "a", State: map[string]Entry{
		"x": {Value: serialize.Value{Kind: serialize.KindArray, Data: []any{nestedA}}, Name: "x"},
	}}
	b := &Snapshot{ID: "b", State: map[string]Entry{
		"x": {Value: serialize.Value{Kind: serialize.KindArray, Data: []any{nestedB}}, Name: "x"},
	}}

	shallow := Compare(a, b, CompareOptions{DeepEqual: false})
	assert.Empty(t, shallow.Changes, "same shape, shallow equality ignores the nested element difference")

	deep := Compare(a, b, CompareOptions{DeepEqual: true})
	require.Len(t, deep.Changes, 1)
	assert.Equal(t, OpModify, deep.Changes[0].Op)
}
