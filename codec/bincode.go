package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Bincode is the mandated structured binary codec: an opaque,
// self-describing binary serialization that must round-trip. Selium's Go
// rendition uses encoding/gob, the standard library's self-describing
// struct codec, as the closest stdlib analogue to the original Rust
// implementation's bincode/serde derive pairing for a generic struct type
// with no wire-format registration step (see DESIGN.md).
type Bincode[T any] struct{}

// Encode implements Codec[T].
func (Bincode[T]) Encode(value T) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return nil, fmt.Errorf("codec: bincode encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode implements Codec[T].
func (Bincode[T]) Decode(data []byte) (T, error) {
	var value T
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&value); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}
	return value, nil
}
