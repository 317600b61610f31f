// Package snapshot implements the Snapshot Creator, Validator, Comparator,
// and Formatter (spec.md §4.3-§4.5 minus restoration, which lives in
// internal/restore).
package snapshot

import (
	"time"

	"github.com/nexus-state/nexus-state/internal/atom"
	"github.com/nexus-state/nexus-state/internal/serialize"
)

// Entry is one atom's recorded value inside a Snapshot (spec.md Data Model
// "Snapshot": "state: a mapping from atom-name -> {serializedValue,
// variant, name, atomIdString}").
type Entry struct {
	Value        serialize.Value `json:"value"`
	Variant      atom.Variant    `json:"variant"`
	Name         string          `json:"name"`
	AtomIDString string          `json:"atomIdString"`
}

// Metadata describes a Snapshot's provenance.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action,omitempty"`
	AtomCount int       `json:"atomCount"`
}

// Snapshot is an immutable, serializable record of a subset of atom values
// at a moment (spec.md Data Model "Snapshot").
type Snapshot struct {
	ID       string           `json:"id"`
	Metadata Metadata         `json:"metadata"`
	State    map[string]Entry `json:"state"`
}

// StateEqual reports whether two snapshots' state maps are structurally
// equal -- same keys, and per-entry equal value and variant -- the
// definition the Creator's auto-capture suppression uses (spec.md §4.3).
func (s *Snapshot) StateEqual(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.State) != len(other.State) {
		return false
	}
	for name, entry := range s.State {
		otherEntry, ok := other.State[name]
		if !ok {
			return false
		}
		if entry.Variant != otherEntry.Variant {
			return false
		}
		if !valueEqual(entry.Value, otherEntry.Value) {
			return false
		}
	}
	return true
}

func valueEqual(a, b serialize.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	return deepEqualJSON(a.Data, b.Data)
}

// ShallowValueEqual exports shallowValueEqual for callers outside this
// package (internal/delta's Calculator uses the same definition so
// "shallow" means one thing across the whole time-travel subsystem).
func ShallowValueEqual(a, b serialize.Value) bool { return shallowValueEqual(a, b) }

// shallowValueEqual mirrors a JS-style shallowEqual: scalar kinds compare
// by ==; compound kinds (map/set/array/object) compare only one level
// deep, treating nested compound elements as equal iff their top-level
// shape (kind + element count) matches, without recursing further (spec.md
// Open Question (d): shallow vs deep equality changes which keys a delta
// reports as modified).
func shallowValueEqual(a, b serialize.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case serialize.KindPrimitive, serialize.KindNull, serialize.KindDate, serialize.KindRegexp:
		return a.Data == b.Data
	case serialize.KindArray, serialize.KindSet:
		av, aok := a.Data.([]any)
		bv, bok := b.Data.([]any)
		if !aok || !bok {
			return false
		}
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !shallowElementEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case serialize.KindMap:
		av, aok := a.Data.([]any)
		bv, bok := b.Data.([]any)
		if !aok || !bok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			ap, apok := av[i].([2]any)
			bp, bpok := bv[i].([2]any)
			if !apok || !bpok || ap[0] != bp[0] {
				return false
			}
			if !shallowElementEqual(ap[1], bp[1]) {
				return false
			}
		}
		return true
	case serialize.KindObject:
		av, aok := a.Data.(map[string]any)
		bv, bok := b.Data.(map[string]any)
		if !aok || !bok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, ok := bv[k]
			if !ok || !shallowElementEqual(v, other) {
				return false
			}
		}
		return true
	default:
		return deepEqualJSON(a.Data, b.Data)
	}
}

// shallowElementEqual compares one nested element by top-level shape only:
// scalar serialize.Values compare by Data, compound ones compare by kind
// and element count, without descending further.
func shallowElementEqual(a, b any) bool {
	av, aok := a.(serialize.Value)
	bv, bok := b.(serialize.Value)
	if !aok || !bok {
		return a == b
	}
	if av.Kind != bv.Kind {
		return false
	}
	switch av.Kind {
	case serialize.KindPrimitive, serialize.KindNull, serialize.KindDate, serialize.KindRegexp:
		return av.Data == bv.Data
	case serialize.KindArray, serialize.KindSet, serialize.KindMap:
		al, _ := av.Data.([]any)
		bl, _ := bv.Data.([]any)
		return len(al) == len(bl)
	case serialize.KindObject:
		am, _ := av.Data.(map[string]any)
		bm, _ := bv.Data.(map[string]any)
		return len(am) == len(bm)
	default:
		return true
	}
}

// deepEqualJSON compares serialize.Value payloads, which are built only out
// of JSON-ish shapes (primitives, []any, map[string]any, nested
// serialize.Value and [2]any pairs), so a structural walk is enough without
// pulling in reflect.DeepEqual's broader (and here unneeded) type coverage.
func deepEqualJSON(a, b any) bool {
	switch av := a.(type) {
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqualJSON(av[i], bv[i]) {
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
			if !deepEqualJSON(v, bv[k]) {
				return false
			}
		}
		return true
	case serialize.Value:
		bv, ok := b.(serialize.Value)
		return ok && valueEqual(av, bv)
	case [2]any:
		bv, ok := b.([2]any)
		return ok && deepEqualJSON(av[0], bv[0]) && deepEqualJSON(av[1], bv[1])
	default:
		return a == b
	}
}
