package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type stockEvent struct {
	Ticker string
	Change float64
}

func TestStringCodecRoundTrip(t *testing.T) {
	var c String
	data, err := c.Encode("Hello, world!")
	require.NoError(t, err)
	got, err := c.Decode(data)
	require.NoError(t, err)
	require.Equal(t, "Hello, world!", got)
}

func TestStringCodecRejectsInvalidUTF8(t *testing.T) {
	var c String
	_, err := c.Decode([]byte{0xff, 0xfe, 0xfd})
	require.ErrorIs(t, err, ErrBadEncoding)
}

func TestBincodeCodecRoundTrip(t *testing.T) {
	var c Bincode[stockEvent]
	want := stockEvent{Ticker: "ACME", Change: 1.5}
	data, err := c.Encode(want)
	require.NoError(t, err)
	got, err := c.Decode(data)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestCBORCodecRoundTrip(t *testing.T) {
	var c CBOR[stockEvent]
	want := stockEvent{Ticker: "ACME", Change: -2.25}
	data, err := c.Encode(want)
	require.NoError(t, err)
	got, err := c.Decode(data)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestCBORCodecBadEncoding(t *testing.T) {
	var c CBOR[stockEvent]
	_, err := c.Decode([]byte{0xff, 0xff, 0xff})
	require.ErrorIs(t, err, ErrBadEncoding)
}
