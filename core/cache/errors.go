package cache

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by every operation on a cache that has been shut
// down. A shut-down cache cannot be restarted.
var ErrClosed = errors.New("cache is shut down")

// Error wraps a backing-store failure with the cache and keys it hit.
//
// For single-entry and bulk write operations, the in-memory tables were
// already mutated when the error occurred; for bulk reads, no mutation has
// happened.
type Error struct {
	Cache string
	Op    string
	Keys  []any
	Err   error
}

func (e *Error) Error() string {
	if len(e.Keys) == 1 {
		return fmt.Sprintf("cache %s: %s %v: %v", e.Cache, e.Op, e.Keys[0], e.Err)
	}
	return fmt.Sprintf("cache %s: %s (%d keys): %v", e.Cache, e.Op, len(e.Keys), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
