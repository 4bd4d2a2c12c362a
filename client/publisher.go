package client

import (
	"context"
	"fmt"
	"time"

	"github.com/selium-io/selium/codec"
	"github.com/selium-io/selium/transport"
	"github.com/selium-io/selium/wire"
)

// PublisherBuilder accumulates options for opening a Publisher[T].
type PublisherBuilder[T any] struct {
	client       *Client
	topic        string
	codec        codec.Codec[T]
	maxFrameSize uint32
}

// Publisher starts building a publisher bound to topic.
func Publisher[T any](c *Client, topic string) *PublisherBuilder[T] {
	return &PublisherBuilder[T]{client: c, topic: topic}
}

// WithEncoder sets the codec used to serialize published values.
func (b *PublisherBuilder[T]) WithEncoder(c codec.Codec[T]) *PublisherBuilder[T] {
	b.codec = c
	return b
}

// MaxFrameSize overrides the default wire frame size cap.
func (b *PublisherBuilder[T]) MaxFrameSize(n uint32) *PublisherBuilder[T] {
	b.maxFrameSize = n
	return b
}

// Open performs the RegisterPublisher handshake and returns a ready
// PublisherHandle[T].
func (b *PublisherBuilder[T]) Open(ctx context.Context) (*PublisherHandle[T], error) {
	if b.codec == nil {
		return nil, fmt.Errorf("client: publisher %s: no encoder set", b.topic)
	}

	bs, err := b.client.openHandshake(ctx, b.maxFrameSize, wire.RegisterPublisher(b.topic, b.client.keepAliveMS))
	if err != nil {
		return nil, err
	}

	return &PublisherHandle[T]{stream: bs, codec: b.codec}, nil
}

// PublisherHandle is an open publisher BiStream typed over T.
type PublisherHandle[T any] struct {
	stream *transport.BiStream
	codec  codec.Codec[T]
}

// Send encodes value and writes it as a Message frame.
func (p *PublisherHandle[T]) Send(value T) error {
	payload, err := p.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("client: encode: %w", err)
	}
	return p.stream.Send(wire.Message(payload))
}

// SendWithTimeout is Send bounded by a per-call deadline, useful for
// benchmarking publish backpressure.
func (p *PublisherHandle[T]) SendWithTimeout(value T, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- p.Send(value) }()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("client: send timed out after %s", timeout)
	}
}

// Finish gracefully closes the publisher's write half.
func (p *PublisherHandle[T]) Finish() error {
	return p.stream.Finish()
}
