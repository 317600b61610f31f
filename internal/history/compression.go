package history

import (
	"bytes"
	"encoding/json"

	"github.com/pierrec/lz4/v4"

	"github.com/nexus-state/nexus-state/internal/snapshot"
)

// Compressor decides, for a given snapshot, whether it should be replaced
// by a compressed stand-in, and can reverse that decision on read (spec.md
// §4.6 step 5: "if a compression strategy is attached and elects to
// compress for the current shape").
type Compressor interface {
	ShouldCompress(s *snapshot.Snapshot) bool
	Compress(s *snapshot.Snapshot) (*CompressedSnapshot, error)
	Decompress(c *CompressedSnapshot) (*snapshot.Snapshot, error)
}

// CompressedSnapshot keeps the fields a Manager needs without decompressing
// (id, action label, atom count), plus the lz4-compressed JSON body.
type CompressedSnapshot struct {
	ID         string
	Action     string
	AtomCount  int
	Compressed []byte
	RawSize    int
}

// LZ4Compressor compresses a Snapshot's JSON encoding with lz4, and elects
// to compress any snapshot above a configurable size threshold -- grounded
// on Sumatoshi-tech-codefang's use of pierrec/lz4 for its on-disk segment
// compaction, generalized here from "segment file" to "history slot".
type LZ4Compressor struct {
	// MinSize is the JSON-encoded size (bytes) above which ShouldCompress
	// returns true. Zero means always compress.
	MinSize int
}

// NewLZ4Compressor returns a compressor that compresses snapshots whose
// JSON encoding exceeds minSize bytes.
func NewLZ4Compressor(minSize int) *LZ4Compressor {
	return &LZ4Compressor{MinSize: minSize}
}

func (c *LZ4Compressor) ShouldCompress(s *snapshot.Snapshot) bool {
	if c.MinSize <= 0 {
		return true
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return false
	}
	return len(raw) > c.MinSize
}

func (c *LZ4Compressor) Compress(s *snapshot.Snapshot) (*CompressedSnapshot, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return &CompressedSnapshot{
		ID:         s.ID,
		Action:     s.Metadata.Action,
		AtomCount:  s.Metadata.AtomCount,
		Compressed: buf.Bytes(),
		RawSize:    len(raw),
	}, nil
}

func (c *LZ4Compressor) Decompress(cs *CompressedSnapshot) (*snapshot.Snapshot, error) {
	zr := lz4.NewReader(bytes.NewReader(cs.Compressed))
	var out bytes.Buffer
	if _, err := out.ReadFrom(zr); err != nil {
		return nil, err
	}
	var s snapshot.Snapshot
	if err := json.Unmarshal(out.Bytes(), &s); err != nil {
		return nil, err
	}
	return &s, nil
}
