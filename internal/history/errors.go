package history

import "errors"

// ErrEmpty is returned by Undo/Redo/JumpTo when there is nothing to move to.
var ErrEmpty = errors.New("history: no entry at that position")

// ErrIndexOutOfRange is returned by JumpTo for an index outside [0, total).
var ErrIndexOutOfRange = errors.New("history: index out of range")
