// Package atom defines the reactive store's unit of state -- the Atom --
// and the process-scoped registry that maps an atom's identity to its
// descriptor. Identity allocation and the registry's map-plus-secondary-index
// shape are grounded on the teacher's storage.PubSub subscriber bookkeeping
// (internal/storage/pubsub.go: subscribers map + subscriberChannels
// secondary index), generalized from "subscriber ID -> Subscriber" to
// "atom ID -> Descriptor".
package atom

import "sync/atomic"

// Variant tags what kind of cell an atom is, replacing the source's runtime
// type branching (spec.md §9) with an explicit three-case tagged variant.
type Variant string

const (
	Primitive Variant = "primitive"
	Writable  Variant = "writable"
	Computed  Variant = "computed"
)

// ID is an atom's opaque, process-unique identity. It is never reused once
// allocated, and is never parsed by application code -- only by the
// restorer, which needs to turn a persisted id string back into an ID when
// an atom can't be found by name (spec.md §4.5 step 4).
type ID uint64

var nextID uint64

// NewID allocates a fresh, never-reused identity.
func NewID() ID {
	return ID(atomic.AddUint64(&nextID, 1))
}

// ReadFunc is a computed atom's pure read function: given a value accessor
// (supplied by the store so dependency tracking can observe which atoms it
// reads), it produces the computed value or an error.
type ReadFunc func(get Getter) (any, error)

// Getter is the read-side capability a computed atom's ReadFunc is given;
// the store's own Get implements it so that reading through it records a
// dependency edge.
type Getter interface {
	Get(a *Atom) (any, error)
}

// Atom is a single state cell with identity. Its initial/read fields are
// set at construction and never mutated thereafter -- all subsequent state
// (current value, memoized computed value, dependency set) lives in the
// store, not here, so an Atom value itself is safe to share and compare by
// pointer.
type Atom struct {
	id      ID
	name    string
	variant Variant
	initial any      // set for Primitive/Writable; nil for Computed
	read    ReadFunc // set only for Computed
}

// New constructs a writable atom with the given initial value.
func New(name string, initial any) *Atom {
	return &Atom{id: NewID(), name: name, variant: Writable, initial: initial}
}

// NewPrimitive constructs a primitive atom. Like a writable atom it accepts
// Set (see IsWritable); it differs only in its Variant tag.
func NewPrimitive(name string, initial any) *Atom {
	return &Atom{id: NewID(), name: name, variant: Primitive, initial: initial}
}

// NewComputed constructs a computed atom from a pure read function.
func NewComputed(name string, read ReadFunc) *Atom {
	return &Atom{id: NewID(), name: name, variant: Computed, read: read}
}

// ID returns the atom's identity.
func (a *Atom) ID() ID { return a.id }

// Name returns the atom's human name, which may be empty.
func (a *Atom) Name() string { return a.name }

// Variant returns the atom's kind.
func (a *Atom) Variant() Variant { return a.variant }

// Initial returns the value a writable/primitive atom starts with.
func (a *Atom) Initial() any { return a.initial }

// Read returns the computed atom's read function, or nil if this atom is
// not computed.
func (a *Atom) Read() ReadFunc { return a.read }

// IsWritable reports whether Set is a valid operation for this atom.
func (a *Atom) IsWritable() bool { return a.variant == Primitive || a.variant == Writable }
