package clone

import (
	"reflect"
	"regexp"
	"time"
)

// Clone deep-copies an arbitrary value, handling the special objects the
// spec calls out (time.Time, *regexp.Regexp, *Set, *OrderedMap) plus plain
// maps and slices. Maps, *Set and *OrderedMap are guarded against reference
// cycles the way a JS structuredClone would: a value met again while it is
// being copied resolves to the copy already made for it, not to a second
// copy. []any values are copied without this check.
func Clone(v any) any {
	return cloneWithSeen(v, make(map[any]any))
}

func cloneWithSeen(v any, seen map[any]any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val
	case *regexp.Regexp:
		if val == nil {
			return val
		}
		if copied, ok := seen[val]; ok {
			return copied
		}
		re := regexp.MustCompile(val.String())
		seen[val] = re
		return re
	case *Set:
		if val == nil {
			return val
		}
		if copied, ok := seen[val]; ok {
			return copied
		}
		out := NewSet()
		seen[val] = out
		for _, item := range val.order {
			out.Add(cloneWithSeen(item, seen))
		}
		return out
	case *OrderedMap:
		if val == nil {
			return val
		}
		if copied, ok := seen[val]; ok {
			return copied
		}
		out := NewOrderedMap()
		seen[val] = out
		for _, k := range val.keys {
			out.Set(k, cloneWithSeen(val.values[k], seen))
		}
		return out
	case map[string]any:
		if val == nil {
			return val
		}
		key := reflect.ValueOf(val).Pointer()
		if copied, ok := seen[key]; ok {
			return copied
		}
		out := make(map[string]any, len(val))
		seen[key] = out
		for k, item := range val {
			out[k] = cloneWithSeen(item, seen)
		}
		return out
	case []any:
		if val == nil {
			return val
		}
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneWithSeen(item, seen)
		}
		return out
	default:
		// primitives (string, numeric kinds, bool) and anything else the
		// caller put into an atom are returned as-is: Go's assignment
		// semantics already copy them by value.
		return v
	}
}
