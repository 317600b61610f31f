package delta

import "errors"

// ErrEmptyChain is returned by Undo/Redo when there is nowhere to move.
var ErrEmptyChain = errors.New("delta: no entry at that position")

// ErrIndexOutOfRangeChain is returned by ReconstructTo for an out-of-range
// index.
var ErrIndexOutOfRangeChain = errors.New("delta: index out of range")
