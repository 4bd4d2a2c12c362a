package broker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/selium-io/selium/internal/metrics"
	"github.com/selium-io/selium/transport"
	"github.com/selium-io/selium/wire"
)

func TestValidateTopic(t *testing.T) {
	require.NoError(t, ValidateTopic("/stocks/AAPL"))

	require.Error(t, ValidateTopic(""))
	require.Error(t, ValidateTopic("stocks/AAPL"))
	require.Error(t, ValidateTopic("/bad\x00topic"))
}

func TestRouterCreatesAndRemovesHubOnDemand(t *testing.T) {
	r := NewRouter(RouterConfig{Metrics: metrics.New()})
	require.Equal(t, 0, r.HubCount())

	server, _ := transport.NewPipePair(1, 2, 0)
	hub, sub := r.AttachSubscriber("/topic", server)
	require.Equal(t, 1, r.HubCount())

	hub.DetachSubscriber(sub)
	require.Equal(t, 0, r.HubCount())

	_, ok := r.Hub("/topic")
	require.False(t, ok)
}

func TestRouterSharesOneHubPerTopic(t *testing.T) {
	r := NewRouter(RouterConfig{Metrics: metrics.New()})

	serverA, clientA := transport.NewPipePair(1, 2, 0)
	serverB, clientB := transport.NewPipePair(3, 4, 0)

	hubA, _ := r.AttachSubscriber("/topic", serverA)
	hubB, _ := r.AttachSubscriber("/topic", serverB)
	require.Same(t, hubA, hubB)
	require.Equal(t, 1, r.HubCount())

	pubHub := r.AttachPublisher("/topic")
	require.Same(t, hubA, pubHub)

	pubHub.Broadcast(wire.Message([]byte("fanout")))

	for _, c := range []*transport.BiStream{clientA, clientB} {
		f, err := c.Recv()
		require.NoError(t, err)
		require.Equal(t, "fanout", string(f.Payload))
	}
}

func TestRouterKeepsHubAliveWhileEitherSideAttached(t *testing.T) {
	r := NewRouter(RouterConfig{Metrics: metrics.New()})

	hub := r.AttachPublisher("/topic")
	require.Equal(t, 1, r.HubCount())

	server, _ := transport.NewPipePair(1, 2, 0)
	_, sub := r.AttachSubscriber("/topic", server)

	hub.DetachPublisher()
	require.Equal(t, 1, r.HubCount(), "subscriber still attached")

	hub.DetachSubscriber(sub)
	require.Equal(t, 0, r.HubCount())
}
