package handler

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Proto encodes proto.Message values. Decode targets must be proto.Message too,
// e.g. &mypb.User{}.
type Proto struct{}

func (Proto) Encode(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("%w: protobuf handler needs proto.Message, got %T", ErrUnsupported, v)
	}
	return proto.Marshal(m)
}

func (Proto) Decode(b []byte, out any) error {
	m, ok := out.(proto.Message)
	if !ok {
		return fmt.Errorf("%w: protobuf handler needs proto.Message target, got %T", ErrUnsupported, out)
	}
	return proto.Unmarshal(b, m)
}
