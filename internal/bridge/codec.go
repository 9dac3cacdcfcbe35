package bridge

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content-subtype the bridge speaks ("application/grpc+gob").
// gob keeps NaN and Inf intact, which JSON cannot encode.
const codecName = "gob"

type gobCodec struct{}

func (gobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(gobCodec{})
}
