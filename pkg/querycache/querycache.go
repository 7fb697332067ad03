// Package querycache defines the contract this module requires of the
// reactive query cache it keeps consistent, along with an in-memory
// implementation used by tests and the CLI.
//
// Keys are ordered arrays of segments forming a hierarchy: ["tasks"] is a
// prefix of ["tasks", "proj-1"], so invalidating ["tasks"] marks every
// task list stale. The cache primitives must be no-ops for keys that do
// not exist; only genuine store failures may return an error.
package querycache

// Key is a hierarchical cache key: an ordered list of segments.
type Key []string

// HasPrefix reports whether the key starts with the given prefix,
// segment-wise.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, seg := range prefix {
		if k[i] != seg {
			return false
		}
	}
	return true
}

// Equal reports segment-wise equality.
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i, seg := range k {
		if other[i] != seg {
			return false
		}
	}
	return true
}

// Cache is the reactive query cache consumed by the sync engine.
//
// Implementations must treat operations on non-existent keys as no-ops,
// not errors: an error return signals a failure of the store itself,
// which the engine propagates rather than masks.
type Cache interface {
	// Invalidate marks every cached result under the key prefix as
	// stale, triggering a refetch on next read.
	Invalidate(prefix Key) error

	// SetQueryData writes a known-good value directly into the slot
	// addressed by key, ahead of any refetch.
	SetQueryData(key Key, value any) error

	// RemoveQueries deletes the slots under key entirely. Removed
	// records must disappear from point lookups immediately, not merely
	// be marked stale.
	RemoveQueries(key Key) error
}
