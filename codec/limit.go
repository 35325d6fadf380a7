package codec

import "fmt"

// Limit wraps another codec and refuses to decode payloads larger than Max
// bytes. Encode passes through unchanged.
//
// The shared cache self-heals entries whose payload fails to decode, so an
// oversized or poisoned entry rejected here is deleted on the next read
// instead of being unmarshalled into memory.
type Limit[V any] struct {
	// Inner is the wrapped codec. It must be set.
	Inner Codec[V]
	// Max is the largest payload Decode accepts, in bytes; <= 0 disables
	// the cap.
	Max int
}

func (c Limit[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }

func (c Limit[V]) Decode(b []byte) (V, error) {
	if c.Max > 0 && len(b) > c.Max {
		var zero V
		return zero, fmt.Errorf("payload too large: %d > %d", len(b), c.Max)
	}
	return c.Inner.Decode(b)
}
