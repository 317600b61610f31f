package store

import "errors"

// ErrStoreDestroyed is returned by every operation except Destroy once the
// store has been torn down (spec.md §4.1 "Post-destroy rule"). Grounded on
// the teacher's sentinel-error style (internal/storage/errors.go).
var ErrStoreDestroyed = errors.New("store: destroyed")
