package codec

// Codec turns values into the byte payloads stored inside cache entry
// frames, and back. Implementations only ever see the payload; the frame
// header and request token around it belong to the cache.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
