package client

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/selium-io/selium/codec"
	"github.com/selium-io/selium/transport"
	"github.com/selium-io/selium/wire"
)

// SubscriberBuilder accumulates options for opening a Subscriber[T]. Map,
// Filter and Retain are accepted for API parity with the original client's
// `.map()`/`.filter()`/`.retain()` chain, but have no effect: the wire
// protocol carries no slot for them and the broker runs no WASM transform or
// retention buffer, so these only record values on the builder.
type SubscriberBuilder[T any] struct {
	client       *Client
	topic        string
	codec        codec.Codec[T]
	maxFrameSize uint32

	mapModule    string
	filterModule string
	retain       time.Duration
}

// Subscriber starts building a subscriber bound to topic.
func Subscriber[T any](c *Client, topic string) *SubscriberBuilder[T] {
	return &SubscriberBuilder[T]{client: c, topic: topic}
}

// WithDecoder sets the codec used to deserialize received payloads.
func (b *SubscriberBuilder[T]) WithDecoder(c codec.Codec[T]) *SubscriberBuilder[T] {
	b.codec = c
	return b
}

// MaxFrameSize overrides the default wire frame size cap.
func (b *SubscriberBuilder[T]) MaxFrameSize(n uint32) *SubscriberBuilder[T] {
	b.maxFrameSize = n
	return b
}

// Map names a WASM transform module for the broker to apply to every
// message before delivery. No-op: see the type doc comment.
func (b *SubscriberBuilder[T]) Map(modulePath string) *SubscriberBuilder[T] {
	b.mapModule = modulePath
	return b
}

// Filter names a WASM predicate module for the broker to apply to every
// message before delivery. No-op: see the type doc comment.
func (b *SubscriberBuilder[T]) Filter(modulePath string) *SubscriberBuilder[T] {
	b.filterModule = modulePath
	return b
}

// Retain sets how long the broker should retain messages for this
// subscriber to replay on reconnect. No-op: see the type doc comment.
func (b *SubscriberBuilder[T]) Retain(d time.Duration) *SubscriberBuilder[T] {
	b.retain = d
	return b
}

// Open performs the RegisterSubscriber handshake and returns a ready
// SubscriberHandle[T]. Only messages published after this call returns are ever
// delivered: a late subscriber receives nothing published before it
// attached.
func (b *SubscriberBuilder[T]) Open(ctx context.Context) (*SubscriberHandle[T], error) {
	if b.codec == nil {
		return nil, fmt.Errorf("client: subscriber %s: no decoder set", b.topic)
	}

	bs, err := b.client.openHandshake(ctx, b.maxFrameSize, wire.RegisterSubscriber(b.topic, b.client.keepAliveMS))
	if err != nil {
		return nil, err
	}

	return &SubscriberHandle[T]{stream: bs, codec: b.codec}, nil
}

// SubscriberHandle is an open subscriber BiStream typed over T.
type SubscriberHandle[T any] struct {
	stream *transport.BiStream
	codec  codec.Codec[T]
}

// Next blocks for the next Message frame and decodes it, or returns io.EOF
// once the broker closes the stream.
func (s *SubscriberHandle[T]) Next() (T, error) {
	var zero T
	for {
		frame, err := s.stream.Recv()
		if err != nil {
			return zero, err
		}
		switch frame.Tag {
		case wire.TagMessage:
			v, err := s.codec.Decode(frame.Payload)
			if err != nil {
				return zero, fmt.Errorf("client: decode: %w", err)
			}
			return v, nil
		case wire.TagError:
			return zero, fmt.Errorf("client: broker error: %s", frame.Reason)
		default:
			// Unexpected frame on a subscriber stream; keep reading rather
			// than failing the whole subscription over one stray frame.
			continue
		}
	}
}

// Finish gracefully closes the subscriber's write half.
func (s *SubscriberHandle[T]) Finish() error {
	return s.stream.Finish()
}

var _ io.Closer = (*SubscriberHandle[struct{}])(nil)

// Close implements io.Closer.
func (s *SubscriberHandle[T]) Close() error {
	return s.stream.Close()
}
