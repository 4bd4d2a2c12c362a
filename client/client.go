// Package client implements the connecting side of Selium: a
// Client dials one QUIC connection to a broker, then opens any number of
// Publisher/Subscriber BiStreams on it, each with its own topic and codec.
//
// The builder-chain shape (ClientBuilder.KeepAlive().WithCertificateAuthority().Connect(),
// then Publisher[T](client, topic).WithEncoder(codec).Open()) gives each option
// its own method and returns an accessor struct from the final call, the
// same pattern used for connection setup elsewhere in this codebase.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/selium-io/selium/internal/tlsutil"
	"github.com/selium-io/selium/transport"
	"github.com/selium-io/selium/wire"
)

// ClientBuilder accumulates connection-level options before Connect opens
// the underlying QUIC connection.
type ClientBuilder struct {
	keepAlive time.Duration
	caFile    string
}

// NewClientBuilder returns an empty builder.
func NewClientBuilder() *ClientBuilder {
	return &ClientBuilder{}
}

// KeepAlive sets the QUIC keep-alive interval sent with every
// RegisterPublisher/RegisterSubscriber handshake.
func (b *ClientBuilder) KeepAlive(d time.Duration) *ClientBuilder {
	b.keepAlive = d
	return b
}

// WithCertificateAuthority trusts caFile instead of the host's root pool.
func (b *ClientBuilder) WithCertificateAuthority(caFile string) *ClientBuilder {
	b.caFile = caFile
	return b
}

// Connect dials addr and returns a Client wrapping the resulting connection.
func (b *ClientBuilder) Connect(ctx context.Context, addr string) (*Client, error) {
	tlsConf, err := tlsutil.ClientConfig(b.caFile, "")
	if err != nil {
		return nil, err
	}

	conn, err := quic.DialAddr(ctx, addr, tlsConf, tlsutil.QUICConfig(b.keepAlive))
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}

	return &Client{
		conn:        conn,
		keepAliveMS: uint32(b.keepAlive.Milliseconds()),
		openStream: func(ctx context.Context, maxFrameSize uint32) (*transport.BiStream, error) {
			return transport.Open(ctx, conn, maxFrameSize)
		},
	}, nil
}

// Client owns one QUIC connection, on which any number of Publisher and
// Subscriber BiStreams can be opened.
type Client struct {
	conn        quic.Connection
	keepAliveMS uint32

	// openStream opens a new outgoing BiStream. It is a field rather than a
	// direct transport.Open(ctx, c.conn, ...) call so tests can substitute an
	// in-memory BiStream pair (see newClientOverStream) without a live QUIC
	// connection.
	openStream func(ctx context.Context, maxFrameSize uint32) (*transport.BiStream, error)
}

// newClientOverStream builds a Client whose every handshake reuses the same
// pre-opened BiStream, for tests exercising the handshake/codec logic
// against a transport.NewPipePair fake.
func newClientOverStream(bs *transport.BiStream, keepAliveMS uint32) *Client {
	return &Client{
		keepAliveMS: keepAliveMS,
		openStream: func(context.Context, uint32) (*transport.BiStream, error) {
			return bs, nil
		},
	}
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.CloseWithError(0, "")
}

func (c *Client) openHandshake(ctx context.Context, maxFrameSize uint32, reg wire.Frame) (*transport.BiStream, error) {
	bs, err := c.openStream(ctx, maxFrameSize)
	if err != nil {
		return nil, err
	}
	if err := bs.Send(reg); err != nil {
		_ = bs.Close()
		return nil, fmt.Errorf("client: send handshake: %w", err)
	}
	ack, err := bs.Recv()
	if err != nil {
		_ = bs.Close()
		return nil, fmt.Errorf("client: await handshake ack: %w", err)
	}
	if ack.Tag == wire.TagError {
		_ = bs.Close()
		return nil, fmt.Errorf("client: broker rejected handshake: %s", ack.Reason)
	}
	if ack.Tag != wire.TagAck {
		_ = bs.Close()
		return nil, fmt.Errorf("client: unexpected handshake reply tag %s", ack.Tag)
	}
	return bs, nil
}
