package codec

import "github.com/fxamacker/cbor/v2"

// CBOR encodes entry payloads with fxamacker/cbor/v2 using the library's
// default modes. The zero value is ready to use.
//
// CBOR payloads are self-describing and binary-compact, a good fit for
// byte-oriented stores where every entry also carries frame overhead.
type CBOR[V any] struct{}

func (CBOR[V]) Encode(v V) ([]byte, error) { return cbor.Marshal(v) }

func (CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := cbor.Unmarshal(b, &v)
	return v, err
}
