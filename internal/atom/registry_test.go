package atom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGetByID(t *testing.T) {
	r := NewRegistry()
	a := New("counter", 0)
	r.Register(a)

	got, ok := r.Get(a.ID())
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestRegisterAndGetByName(t *testing.T) {
	r := NewRegistry()
	a := New("counter", 0)
	r.Register(a)

	got, ok := r.GetByName("counter")
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestRegisterUnnamedAtomSkipsNameIndex(t *testing.T) {
	r := NewRegistry()
	a := New("", 0)
	r.Register(a)

	_, ok := r.GetByName("")
	assert.False(t, ok)
	_, ok = r.Get(a.ID())
	assert.True(t, ok)
}

func TestRegisterCollisionLastWriterWinsAndCounts(t *testing.T) {
	r := NewRegistry()
	first := New("counter", 0)
	second := New("counter", 1)
	r.Register(first)
	r.Register(second)

	got, ok := r.GetByName("counter")
	require.True(t, ok)
	assert.Same(t, second, got, "last-registered-wins per collision policy")
	assert.Equal(t, 1, r.CollisionCount("counter"))
}

func TestGetAllReturnsIndependentCopy(t *testing.T) {
	r := NewRegistry()
	r.Register(New("a", 0))
	r.Register(New("b", 0))

	all := r.GetAll()
	require.Len(t, all, 2)
	all[0] = nil
	assert.Len(t, r.GetAll(), 2, "mutating the returned slice must not affect the registry")
}

func TestClearEmptiesRegistry(t *testing.T) {
	r := NewRegistry()
	a := New("counter", 0)
	r.Register(a)
	r.Clear()

	_, ok := r.Get(a.ID())
	assert.False(t, ok)
	assert.Empty(t, r.GetAll())
	assert.Equal(t, 0, r.CollisionCount("counter"))
}

type fakeStoreAttacher struct {
	preloaded []*Atom
}

func (f *fakeStoreAttacher) RegisterPreloaded(a *Atom) {
	f.preloaded = append(f.preloaded, a)
}

func TestAttachStoreAnnouncesExistingAtoms(t *testing.T) {
	r := NewRegistry()
	a := New("counter", 0)
	r.Register(a)

	s := &fakeStoreAttacher{}
	r.AttachStore(s)

	require.Len(t, s.preloaded, 1)
	assert.Same(t, a, s.preloaded[0])
}

func TestAtomStringAndParseIDStringRoundTrip(t *testing.T) {
	a := New("counter", 0)
	str := a.String()

	id, ok := ParseIDString(str)
	require.True(t, ok)
	assert.Equal(t, a.ID(), id)
}

func TestParseIDStringRejectsMalformedInput(t *testing.T) {
	_, ok := ParseIDString("not-an-atom-string")
	assert.False(t, ok)
}
