// Package delta implements the Delta Calculator, Reconstructor, and
// Delta-Aware History Manager (spec.md §4.7).
package delta

import (
	"github.com/nexus-state/nexus-state/internal/serialize"
	"github.com/nexus-state/nexus-state/internal/snapshot"
)

// ChangeOp mirrors snapshot.ChangeOp for delta entries, kept distinct so
// this package does not need to import snapshot's comparator for its own
// vocabulary.
type ChangeOp string

const (
	OpAdd    ChangeOp = "add"
	OpRemove ChangeOp = "remove"
	OpModify ChangeOp = "modify"
)

// Change is one atom-name-keyed delta entry (spec.md §4.7 "Delta
// Calculator").
type Change struct {
	AtomName string
	Op       ChangeOp
	OldValue *serialize.Value
	NewValue *serialize.Value
}

// Delta is the calculated difference between two snapshots, base -> target.
type Delta struct {
	BaseID    string
	TargetID  string
	ID        string
	Changes   []Change
}

// Calculator computes deltas between snapshots.
type Calculator struct {
	cfg Config
}

// NewCalculator builds a Calculator using cfg's ChangeDetection and
// SkipEmptyDeltas policy.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Calculate diffs a (base) against b (target), producing add/remove/modify
// changes keyed by atom name (spec.md §4.7).
func (c *Calculator) Calculate(a, b *snapshot.Snapshot) *Delta {
	d := &Delta{BaseID: a.ID, TargetID: b.ID, ID: b.ID}
	for name, be := range b.State {
		ae, ok := a.State[name]
		if !ok {
			nv := be.Value
			d.Changes = append(d.Changes, Change{AtomName: name, Op: OpAdd, NewValue: &nv})
			continue
		}
		if !c.valuesEqual(ae.Value, be.Value) {
			ov, nv := ae.Value, be.Value
			d.Changes = append(d.Changes, Change{AtomName: name, Op: OpModify, OldValue: &ov, NewValue: &nv})
		}
	}
	for name, ae := range a.State {
		if _, ok := b.State[name]; !ok {
			ov := ae.Value
			d.Changes = append(d.Changes, Change{AtomName: name, Op: OpRemove, OldValue: &ov})
		}
	}
	return d
}

// IsEmpty reports whether a delta carries no changes -- the Manager skips
// storing these when SkipEmptyDeltas is set.
func (d *Delta) IsEmpty() bool { return len(d.Changes) == 0 }

// valuesEqual defers to snapshot.ShallowValueEqual/the deep walk below so
// "shallow" and "deep" mean the same thing here as in the snapshot
// comparator (spec.md Open Question (d)).
func (c *Calculator) valuesEqual(a, b serialize.Value) bool {
	if c.cfg.ChangeDetection == Deep {
		return deepEqualValue(a, b)
	}
	return snapshot.ShallowValueEqual(a, b)
}

func deepEqualValue(a, b serialize.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	return deepEqualAny(a.Data, b.Data)
}

func deepEqualAny(a, b any) bool {
	switch av := a.(type) {
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqualAny(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			if !deepEqualAny(v, bv[k]) {
				return false
			}
		}
		return true
	case serialize.Value:
		bv, ok := b.(serialize.Value)
		return ok && deepEqualValue(av, bv)
	case [2]any:
		bv, ok := b.([2]any)
		return ok && deepEqualAny(av[0], bv[0]) && deepEqualAny(av[1], bv[1])
	default:
		return a == b
	}
}
