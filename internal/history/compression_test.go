package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-state/nexus-state/internal/serialize"
	"github.com/nexus-state/nexus-state/internal/snapshot"
)

func TestLZ4CompressorRoundTrip(t *testing.T) {
	c := NewLZ4Compressor(0)
	snap := snap("a", 1)

	cs, err := c.Compress(snap)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, cs.ID)

	back, err := c.Decompress(cs)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, back.ID)
	assert.Equal(t, snap.State["counter"].Value.Data, back.State["counter"].Value.Data)
}

func TestLZ4CompressorMinSizeThreshold(t *testing.T) {
	c := NewLZ4Compressor(1 << 20) // 1MiB, far larger than a tiny test snapshot
	assert.False(t, c.ShouldCompress(snap("a", 1)))

	c = NewLZ4Compressor(0)
	assert.True(t, c.ShouldCompress(snap("a", 1)), "zero MinSize means always compress")
}

func TestManagerCompressesAboveThresholdAndDecompressesTransparently(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Compressor = NewLZ4Compressor(0)
	m := New(cfg)

	s := &snapshot.Snapshot{
		ID:       "big",
		Metadata: snapshot.Metadata{Timestamp: time.Now(), AtomCount: 1},
		State: map[string]snapshot.Entry{
			"counter": {Value: serialize.Value{Kind: serialize.KindPrimitive, Data: 7.0}, Name: "counter"},
		},
	}
	m.Add(s)

	got := m.Current()
	require.NotNil(t, got)
	assert.Equal(t, "big", got.ID)
	assert.Equal(t, 7.0, got.State["counter"].Value.Data)

	stats := m.GetStats()
	assert.Equal(t, 1, stats.CompressedCount)
}
