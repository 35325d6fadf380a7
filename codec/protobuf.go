package codec

import "google.golang.org/protobuf/proto"

// Protobuf encodes entry payloads as protobuf messages. Decoding needs a
// concrete message to unmarshal into, so the zero value is not usable;
// construct with NewProtobuf and a message factory:
//
//	codec.NewProtobuf(func() *userpb.User { return &userpb.User{} })
type Protobuf[T proto.Message] struct {
	newMsg func() T
}

func NewProtobuf[T proto.Message](factory func() T) Protobuf[T] {
	return Protobuf[T]{newMsg: factory}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) { return proto.Marshal(v) }

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.newMsg()
	err := proto.Unmarshal(b, m)
	return m, err
}
