package restore

import (
	"time"

	"github.com/nexus-state/nexus-state/internal/atom"
)

// preImage is one entry in a Checkpoint's previousValues, kept as a slice
// (not a map) so rollback can traverse it "in reverse insertion order"
// exactly as spec.md §4.5 requires.
type preImage struct {
	AtomID atom.ID
	Value  any
}

// CheckpointMetadata mirrors spec.md Data Model "Checkpoint": { atomCount,
// inProgress, committed }.
type CheckpointMetadata struct {
	AtomCount  int
	InProgress bool
	Committed  bool
}

// Checkpoint is a pre-image store used to undo a partially applied
// transactional restore (spec.md Data Model "Checkpoint").
type Checkpoint struct {
	ID         string
	Timestamp  time.Time
	SnapshotID string
	Metadata   CheckpointMetadata

	previousValues []preImage
	index          map[atom.ID]int
}

func newCheckpoint(id, snapshotID string) *Checkpoint {
	return &Checkpoint{
		ID:         id,
		Timestamp:  time.Now(),
		SnapshotID: snapshotID,
		Metadata:   CheckpointMetadata{InProgress: true},
		index:      map[atom.ID]int{},
	}
}

// capture records atomID's pre-image value, once -- a later capture for the
// same atom within one checkpoint is a no-op, since the first-seen value is
// the one that must be restored on rollback.
func (c *Checkpoint) capture(atomID atom.ID, value any) {
	if _, already := c.index[atomID]; already {
		return
	}
	c.index[atomID] = len(c.previousValues)
	c.previousValues = append(c.previousValues, preImage{AtomID: atomID, Value: value})
	c.Metadata.AtomCount = len(c.previousValues)
}

// PreviousValues exposes the captured pre-images keyed by atom identity,
// for callers that just want the map spec.md's data model describes.
func (c *Checkpoint) PreviousValues() map[atom.ID]any {
	out := make(map[atom.ID]any, len(c.previousValues))
	for _, p := range c.previousValues {
		out[p.AtomID] = p.Value
	}
	return out
}
