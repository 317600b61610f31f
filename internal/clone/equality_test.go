package clone

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEqualPrimitives(t *testing.T) {
	assert.True(t, Equal(1, 1))
	assert.False(t, Equal(1, 2))
	assert.True(t, Equal("a", "a"))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, 1))
}

func TestEqualNaNNeverEqualsItself(t *testing.T) {
	nan := math.NaN()
	assert.False(t, Equal(nan, nan), "diverges from ECMA SameValueZero on purpose")
}

func TestEqualMapsShallow(t *testing.T) {
	a := map[string]any{"x": 1}
	b := map[string]any{"x": 1}
	assert.True(t, Equal(a, b))

	c := map[string]any{"x": 2}
	assert.False(t, Equal(a, c))
}

func TestEqualSlices(t *testing.T) {
	assert.True(t, Equal([]any{1, 2}, []any{1, 2}))
	assert.False(t, Equal([]any{1, 2}, []any{1, 3}))
	assert.False(t, Equal([]any{1, 2}, []any{1}))
}

func TestEqualTimeByValue(t *testing.T) {
	now := time.Now()
	other := now.Add(0)
	assert.True(t, Equal(now, other))
}

func TestEqualDifferentTypesAreUnequal(t *testing.T) {
	assert.False(t, Equal(1, "1"))
	assert.False(t, Equal(map[string]any{"a": 1}, []any{1}))
}

func TestDeepEqualRecursesFully(t *testing.T) {
	a := map[string]any{"nested": map[string]any{"b": []any{1, 2}}}
	b := map[string]any{"nested": map[string]any{"b": []any{1, 2}}}
	assert.True(t, DeepEqual(a, b))

	c := map[string]any{"nested": map[string]any{"b": []any{1, 3}}}
	assert.False(t, DeepEqual(a, c))
}
