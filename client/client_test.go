package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/selium-io/selium/codec"
	"github.com/selium-io/selium/transport"
	"github.com/selium-io/selium/wire"
)

func TestPublisherHandshakeRejectedOnError(t *testing.T) {
	clientSide, brokerSide := transport.NewPipePair(1, 2, 0)
	c := newClientOverStream(clientSide, 0)

	go func() {
		reg, err := brokerSide.Recv()
		require.NoError(t, err)
		require.Equal(t, wire.TagRegisterPublisher, reg.Tag)
		require.NoError(t, brokerSide.Send(wire.ErrorFrame("invalid topic")))
	}()

	_, err := Publisher[string](c, "bad-topic").WithEncoder(codec.String{}).Open(context.Background())
	require.Error(t, err)
}

func TestPublisherSendRoundTripsThroughBroker(t *testing.T) {
	clientSide, brokerSide := transport.NewPipePair(1, 2, 0)
	c := newClientOverStream(clientSide, 5000)

	go func() {
		reg, err := brokerSide.Recv()
		require.NoError(t, err)
		require.Equal(t, "/acmeco/stocks", reg.Topic)
		require.Equal(t, uint32(5000), reg.KeepAliveMS)
		require.NoError(t, brokerSide.Send(wire.Ack()))
	}()

	pub, err := Publisher[string](c, "/acmeco/stocks").WithEncoder(codec.String{}).Open(context.Background())
	require.NoError(t, err)

	go func() {
		require.NoError(t, pub.Send("hello"))
	}()

	f, err := brokerSide.Recv()
	require.NoError(t, err)
	require.Equal(t, wire.TagMessage, f.Tag)
	require.Equal(t, "hello", string(f.Payload))
}

func TestSubscriberDecodesMessagesAndSurfacesErrors(t *testing.T) {
	clientSide, brokerSide := transport.NewPipePair(1, 2, 0)
	c := newClientOverStream(clientSide, 0)

	go func() {
		reg, err := brokerSide.Recv()
		require.NoError(t, err)
		require.Equal(t, wire.TagRegisterSubscriber, reg.Tag)
		require.NoError(t, brokerSide.Send(wire.Ack()))
		require.NoError(t, brokerSide.Send(wire.Message([]byte("first"))))
		require.NoError(t, brokerSide.Send(wire.ErrorFrame("slow subscriber")))
	}()

	sub, err := Subscriber[string](c, "/acmeco/stocks").WithDecoder(codec.String{}).Open(context.Background())
	require.NoError(t, err)

	v, err := sub.Next()
	require.NoError(t, err)
	require.Equal(t, "first", v)

	_, err = sub.Next()
	require.Error(t, err)
}

func TestPublisherOpenRequiresEncoder(t *testing.T) {
	clientSide, _ := transport.NewPipePair(1, 2, 0)
	c := newClientOverStream(clientSide, 0)

	_, err := Publisher[string](c, "/topic").Open(context.Background())
	require.Error(t, err)
}
