package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// CBOR is a structured binary codec backed by github.com/fxamacker/cbor/v2.
// It is the recommended default codec for any payload type beyond plain
// strings.
type CBOR[T any] struct{}

// Encode implements Codec[T].
func (CBOR[T]) Encode(value T) ([]byte, error) {
	data, err := cbor.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("codec: cbor encode: %w", err)
	}
	return data, nil
}

// Decode implements Codec[T].
func (CBOR[T]) Decode(data []byte) (T, error) {
	var value T
	if err := cbor.Unmarshal(data, &value); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}
	return value, nil
}
