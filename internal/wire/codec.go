package wire

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// Name is the gRPC content-subtype served by Codec
// (content-type application/grpc+ecsign).
const Name = "ecsign"

// Codec marshals Message values with their protobuf wire encoding.
type Codec struct{}

func init() {
	encoding.RegisterCodec(Codec{})
}

func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("wire: cannot marshal %T", v)
	}
	return m.MarshalWire()
}

func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(Message)
	if !ok {
		return fmt.Errorf("wire: cannot unmarshal into %T", v)
	}
	return m.UnmarshalWire(data)
}

func (Codec) Name() string {
	return Name
}
