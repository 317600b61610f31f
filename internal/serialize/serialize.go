// Package serialize implements the "Advanced Serializer" (spec.md §2):
// turning an arbitrary atom value into a JSON-ish, snapshot-storable shape,
// with configurable policy for the values JSON cannot represent natively --
// cycles, functions, errors, and Go's closest analogue of a JS symbol (an
// opaque unsupported type).
//
// Grounded on the teacher's value-type handling (internal/storage/hash.go,
// set.go) generalized from Redis's fixed value kinds to nexus-state's open
// value space, and on internal/rdb's "one tag byte, one payload" wire shape
// (internal/rdb/rdb.go) generalized to an in-memory tagged Value instead of
// a binary RDB record.
package serialize

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"time"

	"github.com/nexus-state/nexus-state/internal/clone"
)

// Kind tags how Data should be interpreted.
type Kind string

const (
	KindNull        Kind = "null"
	KindPrimitive   Kind = "primitive"
	KindDate        Kind = "date"
	KindRegexp      Kind = "regexp"
	KindMap         Kind = "map"
	KindSet         Kind = "set"
	KindArray       Kind = "array"
	KindObject      Kind = "object"
	KindFunction    Kind = "function"
	KindError       Kind = "error"
	KindCycle       Kind = "cycle"
	KindUnsupported Kind = "unsupported"
)

// Value is the serialized, JSON-marshalable representation of one atom
// value. Data's shape depends on Kind:
//
//	primitive -> the value itself, unchanged (string, bool, or any Go integer/float kind)
//	date      -> RFC3339Nano string
//	regexp    -> pattern string
//	map       -> []any of [2]any{key, value} pairs, values already serialized
//	set       -> []any of members, already serialized
//	array     -> []any of elements, already serialized
//	object    -> map[string]any of fields, already serialized
//	function  -> a string placeholder ("stringified" policy) or omitted
//	error     -> the error's message string
//	cycle     -> the fixed marker string "[Circular]"
//	unsupported -> a string description
type Value struct {
	Kind Kind `json:"kind"`
	Data any  `json:"data"`
}

// CyclePolicy controls what happens when Serialize revisits a pointer/map
// already on the current recursion path.
type CyclePolicy int

const (
	CycleError CyclePolicy = iota
	CycleNull
	CycleMarker
)

// FunctionPolicy controls what happens when a function value is encountered.
type FunctionPolicy int

const (
	FunctionOmit FunctionPolicy = iota
	FunctionStringify
	FunctionError
)

// ErrorPolicy controls how error values are serialized.
type ErrorPolicy int

const (
	ErrorMessageOnly ErrorPolicy = iota
	ErrorFull
)

// UnsupportedPolicy controls values of a type the serializer has no rule
// for -- Go's nearest analogue of a JS symbol.
type UnsupportedPolicy int

const (
	UnsupportedOmit UnsupportedPolicy = iota
	UnsupportedError
)

// Config configures a Serializer. The zero value differs from DefaultConfig
// only in OnCycle: it rejects cycles with ErrCycleRejected instead of
// marking them -- callers should use DefaultConfig for the permissive
// defaults snapshot creation actually wants.
type Config struct {
	OnCycle       CyclePolicy
	OnFunction    FunctionPolicy
	OnError       ErrorPolicy
	OnUnsupported UnsupportedPolicy
}

// DefaultConfig returns the policy snapshot creation uses by default:
// cycles are marked rather than erroring (a snapshot should never fail to
// serialize because one atom happens to hold a self-referential graph),
// functions serialize as null, errors serialize to their message,
// unsupported values become a KindUnsupported entry naming their Go type.
func DefaultConfig() Config {
	return Config{
		OnCycle:       CycleMarker,
		OnFunction:    FunctionOmit,
		OnError:       ErrorMessageOnly,
		OnUnsupported: UnsupportedOmit,
	}
}

// ErrCycleRejected is returned when CycleError policy is active and a cycle
// is encountered.
var ErrCycleRejected = errors.New("serialize: cyclic value rejected by policy")

// ErrFunctionRejected is returned when FunctionError policy is active and a
// function value is encountered.
var ErrFunctionRejected = errors.New("serialize: function value rejected by policy")

// ErrUnsupportedRejected is returned when UnsupportedError policy is active.
var ErrUnsupportedRejected = errors.New("serialize: unsupported value rejected by policy")

// Serializer converts Go values to and from the Value wire shape.
type Serializer struct {
	cfg Config
}

// New creates a Serializer with the given policy configuration.
func New(cfg Config) *Serializer {
	return &Serializer{cfg: cfg}
}

// Serialize converts v into its Value representation.
func (s *Serializer) Serialize(v any) (Value, error) {
	return s.serialize(v, map[uintptr]bool{})
}

func (s *Serializer) serialize(v any, path map[uintptr]bool) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Value{Kind: KindNull}, nil
	case time.Time:
		return Value{Kind: KindDate, Data: val.Format(time.RFC3339Nano)}, nil
	case *regexp.Regexp:
		if val == nil {
			return Value{Kind: KindNull}, nil
		}
		return Value{Kind: KindRegexp, Data: val.String()}, nil
	case *clone.OrderedMap:
		if val == nil {
			return Value{Kind: KindNull}, nil
		}
		ptr := reflect.ValueOf(val).Pointer()
		if path[ptr] {
			return s.onCycle()
		}
		path[ptr] = true
		defer delete(path, ptr)

		entries := val.Entries()
		pairs := make([]any, 0, len(entries))
		for _, kv := range entries {
			sv, err := s.serialize(kv[1], path)
			if err != nil {
				return Value{}, err
			}
			pairs = append(pairs, [2]any{kv[0], sv})
		}
		return Value{Kind: KindMap, Data: pairs}, nil
	case *clone.Set:
		if val == nil {
			return Value{Kind: KindNull}, nil
		}
		ptr := reflect.ValueOf(val).Pointer()
		if path[ptr] {
			return s.onCycle()
		}
		path[ptr] = true
		defer delete(path, ptr)

		items := val.Items()
		out := make([]any, 0, len(items))
		for _, item := range items {
			sv, err := s.serialize(item, path)
			if err != nil {
				return Value{}, err
			}
			out = append(out, sv)
		}
		return Value{Kind: KindSet, Data: out}, nil
	case error:
		msg := val.Error()
		if s.cfg.OnError == ErrorFull {
			if unwrapped := errors.Unwrap(val); unwrapped != nil {
				msg = fmt.Sprintf("%s: %s", msg, unwrapped.Error())
			}
		}
		return Value{Kind: KindError, Data: msg}, nil
	case []any:
		if val == nil {
			return Value{Kind: KindNull}, nil
		}
		out := make([]any, 0, len(val))
		for _, item := range val {
			sv, err := s.serialize(item, path)
			if err != nil {
				return Value{}, err
			}
			out = append(out, sv)
		}
		return Value{Kind: KindArray, Data: out}, nil
	case map[string]any:
		if val == nil {
			return Value{Kind: KindNull}, nil
		}
		ptr := reflect.ValueOf(val).Pointer()
		if path[ptr] {
			return s.onCycle()
		}
		path[ptr] = true
		defer delete(path, ptr)

		out := make(map[string]any, len(val))
		for k, item := range val {
			sv, err := s.serialize(item, path)
			if err != nil {
				return Value{}, err
			}
			out[k] = sv
		}
		return Value{Kind: KindObject, Data: out}, nil
	case string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return Value{Kind: KindPrimitive, Data: val}, nil
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Func {
			return s.onFunction()
		}
		return s.onUnsupported(v)
	}
}

func (s *Serializer) onCycle() (Value, error) {
	switch s.cfg.OnCycle {
	case CycleError:
		return Value{}, ErrCycleRejected
	case CycleNull:
		return Value{Kind: KindNull}, nil
	default:
		return Value{Kind: KindCycle, Data: "[Circular]"}, nil
	}
}

func (s *Serializer) onFunction() (Value, error) {
	switch s.cfg.OnFunction {
	case FunctionError:
		return Value{}, ErrFunctionRejected
	case FunctionStringify:
		return Value{Kind: KindFunction, Data: "[Function]"}, nil
	default:
		return Value{Kind: KindNull}, nil
	}
}

func (s *Serializer) onUnsupported(v any) (Value, error) {
	switch s.cfg.OnUnsupported {
	case UnsupportedError:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedRejected, v)
	default:
		return Value{Kind: KindUnsupported, Data: fmt.Sprintf("%T", v)}, nil
	}
}

// asValue recovers a nested Value from either a literal Value (the shape
// Serialize itself produces) or the map[string]interface{} shape
// encoding/json leaves behind after a Value has been round-tripped through
// snapshot.WriteTo/ReadFrom -- JSON decode has no way to know a field typed
// `any` used to hold a Value, so it comes back as a generic map keyed by
// the "kind"/"data" struct tags.
func asValue(x any) (Value, bool) {
	switch t := x.(type) {
	case Value:
		return t, true
	case map[string]any:
		kindRaw, ok := t["kind"].(string)
		if !ok {
			return Value{}, false
		}
		return Value{Kind: Kind(kindRaw), Data: t["data"]}, true
	default:
		return Value{}, false
	}
}

// asPair recovers a [key, value] pair from either the literal [2]any
// Serialize produces or the []interface{} of length 2 it becomes after a
// JSON round-trip (encoding/json has no fixed-size-array counterpart, so
// array-of-two decodes as a plain slice).
func asPair(x any) ([2]any, bool) {
	switch t := x.(type) {
	case [2]any:
		return t, true
	case []any:
		if len(t) == 2 {
			return [2]any{t[0], t[1]}, true
		}
	}
	return [2]any{}, false
}

// Deserialize reverses Serialize, reconstructing the Go value a Value
// stands for. This mirrors the restorer's per-type deserialization rule
// (spec.md §4.5 step 5): ISO string -> Date, string -> RegExp, array-of-pairs
// -> Map, array -> Set, else identity -- expressed here over the tagged
// Value rather than raw JSON, but tolerant of the generic shapes JSON
// decoding substitutes for [2]any and Value (see asPair/asValue), so a
// snapshot written by WriteTo and read back by ReadFrom deserializes the
// same as one that never left memory (spec.md §6).
func Deserialize(v Value) (any, error) {
	switch v.Kind {
	case KindNull, KindCycle, KindFunction, KindUnsupported:
		return nil, nil
	case KindPrimitive:
		return v.Data, nil
	case KindDate:
		s, ok := v.Data.(string)
		if !ok {
			return nil, fmt.Errorf("serialize: date payload is not a string: %T", v.Data)
		}
		return time.Parse(time.RFC3339Nano, s)
	case KindRegexp:
		s, ok := v.Data.(string)
		if !ok {
			return nil, fmt.Errorf("serialize: regexp payload is not a string: %T", v.Data)
		}
		return regexp.Compile(s)
	case KindMap:
		pairs, ok := v.Data.([]any)
		if !ok {
			return nil, fmt.Errorf("serialize: map payload is not a pair list: %T", v.Data)
		}
		out := clone.NewOrderedMap()
		for _, p := range pairs {
			pair, ok := asPair(p)
			if !ok {
				return nil, errors.New("serialize: malformed map entry")
			}
			sv, ok := asValue(pair[1])
			if !ok {
				out.Set(pair[0], pair[1])
				continue
			}
			val, err := Deserialize(sv)
			if err != nil {
				return nil, err
			}
			out.Set(pair[0], val)
		}
		return out, nil
	case KindSet:
		items, ok := v.Data.([]any)
		if !ok {
			return nil, fmt.Errorf("serialize: set payload is not an array: %T", v.Data)
		}
		out := clone.NewSet()
		for _, item := range items {
			sv, ok := asValue(item)
			if !ok {
				out.Add(item)
				continue
			}
			val, err := Deserialize(sv)
			if err != nil {
				return nil, err
			}
			out.Add(val)
		}
		return out, nil
	case KindArray:
		items, ok := v.Data.([]any)
		if !ok {
			return nil, fmt.Errorf("serialize: array payload is not an array: %T", v.Data)
		}
		out := make([]any, len(items))
		for i, item := range items {
			sv, ok := asValue(item)
			if !ok {
				out[i] = item
				continue
			}
			val, err := Deserialize(sv)
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil
	case KindObject:
		fields, ok := v.Data.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("serialize: object payload is not a map: %T", v.Data)
		}
		out := make(map[string]any, len(fields))
		for k, item := range fields {
			sv, ok := asValue(item)
			if !ok {
				out[k] = item
				continue
			}
			val, err := Deserialize(sv)
			if err != nil {
				return nil, err
			}
			out[k] = val
		}
		return out, nil
	case KindError:
		msg, _ := v.Data.(string)
		return errors.New(msg), nil
	default:
		return nil, fmt.Errorf("serialize: unknown kind %q", v.Kind)
	}
}
