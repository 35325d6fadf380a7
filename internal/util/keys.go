package util

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Composite key parts are joined with a unit separator so a tuple can never
// collide with a single key that happens to contain the join character.
const partSep = "\x1f"

// maxPlainKey bounds storage key length; longer identities get hashed.
const maxPlainKey = 128

// EntryKey returns the canonical storage key for a (possibly composite)
// resource identity. Equal tuples map to the same storage key regardless of
// how the caller built them.
func EntryKey(prefix string, parts []string) string {
	joined := strings.Join(parts, partSep)
	if len(prefix)+1+len(joined) <= maxPlainKey {
		return prefix + ":" + joined
	}
	sum := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("%s:%x", prefix, sum)[:len(prefix)+1+16] // prefix + ":" + first 16 hex chars
}
