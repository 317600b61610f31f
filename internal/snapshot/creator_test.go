package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-state/nexus-state/internal/atom"
	"github.com/nexus-state/nexus-state/internal/store"
)

func newRig(t *testing.T) (*atom.Registry, *store.Store, *atom.Atom) {
	t.Helper()
	registry := atom.NewRegistry()
	s := store.New(store.DefaultConfig())
	counter := atom.New("counter", 0)
	registry.Register(counter)
	registry.AttachStore(s)
	return registry, s, counter
}

func TestCreateIncludesRegisteredAtoms(t *testing.T) {
	registry, s, counter := newRig(t)
	require.NoError(t, s.Set(counter, store.Val(5)))

	c := NewCreator(registry, s, DefaultCreatorConfig())
	snap, err := c.Create(CreateOptions{})
	require.NoError(t, err)
	require.NotNil(t, snap)

	entry, ok := snap.State["counter"]
	require.True(t, ok)
	assert.Equal(t, 5, entry.Value.Data)
	assert.Equal(t, 1, snap.Metadata.AtomCount)
}

func TestCreateExcludesConfiguredAtoms(t *testing.T) {
	registry, s, _ := newRig(t)
	cfg := DefaultCreatorConfig()
	cfg.ExcludeAtoms = []string{"counter"}
	c := NewCreator(registry, s, cfg)

	snap, err := c.Create(CreateOptions{})
	require.NoError(t, err)
	assert.Empty(t, snap.State)
}

func TestCreateFiltersByVariant(t *testing.T) {
	registry, s, _ := newRig(t)
	cfg := DefaultCreatorConfig()
	cfg.IncludeTypes = []atom.Variant{atom.Computed}
	c := NewCreator(registry, s, cfg)

	snap, err := c.Create(CreateOptions{})
	require.NoError(t, err)
	assert.Empty(t, snap.State, "the only registered atom is Writable, not Computed")
}

func TestCreateAutoCaptureSuppressesUnchangedState(t *testing.T) {
	registry, s, counter := newRig(t)
	cfg := DefaultCreatorConfig()
	cfg.AutoCapture = true
	c := NewCreator(registry, s, cfg)

	first, err := c.Create(CreateOptions{})
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := c.Create(CreateOptions{})
	require.NoError(t, err)
	assert.Nil(t, second, "unchanged state under auto-capture must suppress emission, not error")

	require.NoError(t, s.Set(counter, store.Val(1)))
	third, err := c.Create(CreateOptions{})
	require.NoError(t, err)
	assert.NotNil(t, third, "changed state must resume emission")
}

func TestCreateNotifiesSubscribers(t *testing.T) {
	registry, s, _ := newRig(t)
	c := NewCreator(registry, s, DefaultCreatorConfig())

	var seen *Snapshot
	c.Subscribe(func(s *Snapshot) { seen = s })

	snap, err := c.Create(CreateOptions{})
	require.NoError(t, err)
	assert.Same(t, snap, seen)
}

func TestCreateWithResultNeverErrors(t *testing.T) {
	registry, s, _ := newRig(t)
	c := NewCreator(registry, s, DefaultCreatorConfig())

	res := c.CreateWithResult(CreateOptions{})
	assert.True(t, res.Success)
	assert.Nil(t, res.Error)
	assert.NotNil(t, res.Snapshot)
}
