package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, f Frame) Frame {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, f))
	dec := NewDecoder(&buf, 0)
	got, err := dec.Decode()
	require.NoError(t, err)
	return got
}

func TestRoundTripAllVariants(t *testing.T) {
	cases := []Frame{
		RegisterPublisher("/acmeco/stocks", 0),
		RegisterPublisher("/acmeco/stocks", 5000),
		RegisterSubscriber("/t/1", 0),
		Message([]byte("Hello, world!")),
		Message(nil),
		Ack(),
		ErrorFrame("invalid topic"),
	}

	for _, want := range cases {
		got := roundTrip(t, want)
		require.Equal(t, want.Tag, got.Tag)
		require.Equal(t, want.Topic, got.Topic)
		require.Equal(t, want.KeepAliveMS, got.KeepAliveMS)
		require.Equal(t, want.Reason, got.Reason)
		if len(want.Payload) == 0 {
			require.Len(t, got.Payload, 0)
		} else {
			require.Equal(t, want.Payload, got.Payload)
		}
	}
}

func TestZeroByteMessageRoundTrips(t *testing.T) {
	got := roundTrip(t, Message([]byte{}))
	require.Equal(t, TagMessage, got.Tag)
	require.Len(t, got.Payload, 0)
}

func TestMaxFrameSizeBoundary(t *testing.T) {
	maxSize := uint32(32)
	var buf bytes.Buffer
	// body of (maxSize - 1) bytes keeps total length == maxSize.
	require.NoError(t, Encode(&buf, Message(make([]byte, int(maxSize)-1))))
	dec := NewDecoder(bytes.NewReader(buf.Bytes()), maxSize)
	_, err := dec.Decode()
	require.NoError(t, err)

	buf.Reset()
	require.NoError(t, Encode(&buf, Message(make([]byte, int(maxSize)))))
	dec = NewDecoder(bytes.NewReader(buf.Bytes()), maxSize)
	_, err = dec.Decode()
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestMalformedShortHeader(t *testing.T) {
	dec := NewDecoder(bytes.NewReader([]byte{0, 0, 0}), 0)
	_, err := dec.Decode()
	require.Error(t, err)
}

func TestUnknownTag(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Ack()))
	raw := buf.Bytes()
	raw[4] = 0xEE // corrupt the tag byte
	dec := NewDecoder(bytes.NewReader(raw), 0)
	_, err := dec.Decode()
	require.True(t, errors.Is(err, ErrUnknownTag))
}

func TestZeroLengthIsMalformed(t *testing.T) {
	// Full 5-byte header: length field 0, then a tag byte.
	dec := NewDecoder(bytes.NewReader([]byte{0, 0, 0, 0, byte(TagAck)}), 0)
	_, err := dec.Decode()
	require.ErrorIs(t, err, ErrMalformed)
}
