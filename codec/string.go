package codec

import "unicode/utf8"

// String is the mandated UTF-8 string codec: Encode emits raw
// UTF-8 bytes, Decode verifies UTF-8 and fails with ErrBadEncoding
// otherwise.
type String struct{}

// Encode implements Codec[string].
func (String) Encode(value string) ([]byte, error) {
	return []byte(value), nil
}

// Decode implements Codec[string].
func (String) Decode(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", ErrBadEncoding
	}
	return string(data), nil
}
