// Package clone implements the structural equality and deep-copy helpers
// every other nexus-state package relies on: the store uses Equal to decide
// whether a write actually changed anything, the snapshot and delta packages
// use it to diff state, and Clone backs the store's reset-to-initial and the
// transactional restorer's pre-image capture.
//
// The shallow-copy-plus-clone-on-write idiom here is grounded on the
// teacher's storage.Store.GetAllData / copyTimePtr (internal/storage/store.go)
// and storage.Hash/Set.Clone (internal/storage/hash.go, set.go).
package clone

import (
	"reflect"
	"regexp"
	"time"
)

// Equal reports whether a and b are interchangeable for the purposes of the
// store's change-detection: reference equality first (cheap, and correct for
// every comparable primitive), then a structural shallow check for the
// handful of composite shapes the spec calls out (maps, slices, time.Time,
// *regexp.Regexp-like values compared via String()).
//
// NaN never equals itself here, matching spec.md Open Question (c): this
// diverges from ECMA SameValueZero on purpose, not by omission.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if av, bv := reflect.ValueOf(a), reflect.ValueOf(b); av.Type() == bv.Type() {
		switch av.Kind() {
		case reflect.Func, reflect.Chan:
			return av.Pointer() == bv.Pointer()
		case reflect.Map, reflect.Slice, reflect.Array:
			// Map and slice dynamic types are not comparable with == -- Go
			// panics at runtime rather than returning false. Route these
			// straight to the structural check instead of falling through.
			return shallowStructuralEqual(a, b)
		}
	}
	if a == b {
		return true
	}
	return shallowStructuralEqual(a, b)
}

// DeepEqual performs a recursive structural comparison, used by the delta
// calculator when configured for "deep" change detection (§4.7) rather than
// the store's default shallow check.
func DeepEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

func shallowStructuralEqual(a, b any) bool {
	at, bt := reflect.TypeOf(a), reflect.TypeOf(b)
	if at != bt {
		return false
	}

	if ta, ok := a.(time.Time); ok {
		tb := b.(time.Time)
		return ta.Equal(tb)
	}

	if ra, ok := a.(*regexp.Regexp); ok {
		rb := b.(*regexp.Regexp)
		if ra == nil || rb == nil {
			return ra == rb
		}
		return ra.String() == rb.String()
	}

	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	switch av.Kind() {
	case reflect.Map:
		if av.Len() != bv.Len() {
			return false
		}
		iter := av.MapRange()
		for iter.Next() {
			bval := bv.MapIndex(iter.Key())
			if !bval.IsValid() {
				return false
			}
			if !Equal(iter.Value().Interface(), bval.Interface()) {
				return false
			}
		}
		return true
	case reflect.Slice, reflect.Array:
		if av.Len() != bv.Len() {
			return false
		}
		for i := 0; i < av.Len(); i++ {
			if !Equal(av.Index(i).Interface(), bv.Index(i).Interface()) {
				return false
			}
		}
		return true
	case reflect.Ptr:
		if av.IsNil() || bv.IsNil() {
			return av.IsNil() == bv.IsNil()
		}
		if av.Elem().Kind() == reflect.Struct && !av.Elem().Type().Comparable() {
			// Distinct pointers to a struct Go cannot compare with == (such
			// as *Set or *OrderedMap) are unequal.
			return false
		}
		return Equal(av.Elem().Interface(), bv.Elem().Interface())
	default:
		return false
	}
}
