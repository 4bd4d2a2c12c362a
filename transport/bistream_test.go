package transport

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/selium-io/selium/wire"
)

func TestBiStreamSendRecvFIFO(t *testing.T) {
	a, b := NewPipePair(1, 2, 0)

	go func() {
		require.NoError(t, a.Send(wire.Message([]byte("one"))))
		require.NoError(t, a.Send(wire.Message([]byte("two"))))
		require.NoError(t, a.Send(wire.Message([]byte("three"))))
	}()

	for _, want := range []string{"one", "two", "three"} {
		f, err := b.Recv()
		require.NoError(t, err)
		require.Equal(t, wire.TagMessage, f.Tag)
		require.Equal(t, want, string(f.Payload))
	}
}

func TestBiStreamFinishClosesWriteHalf(t *testing.T) {
	a, b := NewPipePair(1, 2, 0)

	require.NoError(t, a.Finish())
	require.ErrorIs(t, a.Send(wire.Ack()), ErrClosed)

	_, err := b.Recv()
	require.Error(t, err)
}

func TestBiStreamStreamIDs(t *testing.T) {
	a, _ := NewPipePair(7, 2, 0)
	require.Equal(t, int64(7), a.SendStreamID())
	require.Equal(t, int64(7), a.RecvStreamID())
}
