package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/selium-io/selium/internal/metrics"
	"github.com/selium-io/selium/transport"
	"github.com/selium-io/selium/wire"
)

func newTestAcceptor() *Acceptor {
	router := NewRouter(RouterConfig{
		SubscriberTimeout: time.Second,
		Metrics:           metrics.New(),
	})
	return NewAcceptor(AcceptorConfig{
		Router:       router,
		MaxFrameSize: 0,
		Metrics:      metrics.New(),
	})
}

func TestAcceptorRejectsInvalidTopicOnPublisherHandshake(t *testing.T) {
	a := newTestAcceptor()
	server, client := transport.NewPipePair(1, 2, 0)

	done := make(chan struct{})
	go func() {
		a.handleSubstream(server)
		close(done)
	}()

	require.NoError(t, client.Send(wire.RegisterPublisher("no-leading-slash", 0)))

	f, err := client.Recv()
	require.NoError(t, err)
	require.Equal(t, wire.TagError, f.Tag)
	require.Equal(t, "invalid topic", f.Reason)

	_, err = client.Recv()
	require.Error(t, err)

	<-done
}

func TestAcceptorRejectsInvalidTopicOnSubscriberHandshake(t *testing.T) {
	a := newTestAcceptor()
	server, client := transport.NewPipePair(1, 2, 0)

	done := make(chan struct{})
	go func() {
		a.handleSubstream(server)
		close(done)
	}()

	require.NoError(t, client.Send(wire.RegisterSubscriber("", 0)))

	f, err := client.Recv()
	require.NoError(t, err)
	require.Equal(t, wire.TagError, f.Tag)
	require.Equal(t, "invalid topic", f.Reason)

	<-done
}

func TestAcceptorRejectsUnknownFirstFrame(t *testing.T) {
	a := newTestAcceptor()
	server, client := transport.NewPipePair(1, 2, 0)

	done := make(chan struct{})
	go func() {
		a.handleSubstream(server)
		close(done)
	}()

	require.NoError(t, client.Send(wire.Message([]byte("not a handshake frame"))))

	f, err := client.Recv()
	require.NoError(t, err)
	require.Equal(t, wire.TagError, f.Tag)
	require.Equal(t, "handshake", f.Reason)

	<-done
}

func TestAcceptorRoutesPublisherToSubscriberThroughHandshake(t *testing.T) {
	a := newTestAcceptor()

	subServer, subClient := transport.NewPipePair(3, 4, 0)
	go a.handleSubstream(subServer)
	require.NoError(t, subClient.Send(wire.RegisterSubscriber("/acmeco/stocks", 0)))

	ack, err := subClient.Recv()
	require.NoError(t, err)
	require.Equal(t, wire.TagAck, ack.Tag)

	pubServer, pubClient := transport.NewPipePair(1, 2, 0)
	go a.handleSubstream(pubServer)
	require.NoError(t, pubClient.Send(wire.RegisterPublisher("/acmeco/stocks", 0)))

	ack, err = pubClient.Recv()
	require.NoError(t, err)
	require.Equal(t, wire.TagAck, ack.Tag)

	require.NoError(t, pubClient.Send(wire.Message([]byte("hello"))))

	msg, err := subClient.Recv()
	require.NoError(t, err)
	require.Equal(t, wire.TagMessage, msg.Tag)
	require.Equal(t, "hello", string(msg.Payload))
}

func TestAcceptorDrainClosesActivePublisherWithAck(t *testing.T) {
	a := newTestAcceptor()

	pubServer, pubClient := transport.NewPipePair(1, 2, 0)
	done := make(chan struct{})
	go func() {
		a.handleSubstream(pubServer)
		close(done)
	}()

	require.NoError(t, pubClient.Send(wire.RegisterPublisher("/acmeco/stocks", 0)))

	ack, err := pubClient.Recv()
	require.NoError(t, err)
	require.Equal(t, wire.TagAck, ack.Tag)

	require.Eventually(t, func() bool {
		a.streamsMu.Lock()
		defer a.streamsMu.Unlock()
		return len(a.streams) == 1
	}, time.Second, 5*time.Millisecond, "handlePublisher should have registered its stream with the acceptor")

	go a.Drain(time.Second)

	drainAck, err := pubClient.Recv()
	require.NoError(t, err)
	require.Equal(t, wire.TagAck, drainAck.Tag, "Drain closes an active publisher with a clean Ack-terminated frame")

	_, err = pubClient.Recv()
	require.Error(t, err)

	<-done
}

func TestAcceptorDrainClosesActiveSubscriberWithError(t *testing.T) {
	a := newTestAcceptor()

	subServer, subClient := transport.NewPipePair(1, 2, 0)
	done := make(chan struct{})
	go func() {
		a.handleSubstream(subServer)
		close(done)
	}()

	require.NoError(t, subClient.Send(wire.RegisterSubscriber("/acmeco/stocks", 0)))

	ack, err := subClient.Recv()
	require.NoError(t, err)
	require.Equal(t, wire.TagAck, ack.Tag)

	require.Eventually(t, func() bool {
		a.streamsMu.Lock()
		defer a.streamsMu.Unlock()
		return len(a.streams) == 1
	}, time.Second, 5*time.Millisecond, "handleSubscriber should have registered its stream with the acceptor")

	go a.Drain(time.Second)

	drainErr, err := subClient.Recv()
	require.NoError(t, err)
	require.Equal(t, wire.TagError, drainErr.Tag)
	require.Equal(t, "server draining", drainErr.Reason)

	<-done
}
