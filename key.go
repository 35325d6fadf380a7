package mutcache

import (
	"slices"
	"strings"
)

// Key is the opaque identity of a cacheable resource: a single value or an
// ordered tuple of values. A nil/empty Key is the "unbound" state: cache
// operations on it are no-ops and a Mutation bound to it never fetches.
type Key []string

// K builds a Key from its ordered parts.
func K(parts ...string) Key { return Key(parts) }

// IsZero reports whether the key is unbound.
func (k Key) IsZero() bool { return len(k) == 0 }

// Parts exposes the tuple positionally; fetchers consume them as the
// leading arguments of the resource identity.
func (k Key) Parts() []string { return k }

// Equal compares keys by normalized identity: same parts in the same order.
func (k Key) Equal(o Key) bool { return slices.Equal(k, o) }

// String renders the key for logs. Not collision-free; use canonical()
// where identity matters.
func (k Key) String() string { return strings.Join(k, "/") }

// canonical is the collision-free in-process identity of the tuple.
func (k Key) canonical() string { return strings.Join(k, "\x1f") }
