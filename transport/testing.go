package transport

import (
	"io"
	"net"

	"github.com/quic-go/quic-go"
)

// pipeStream adapts one half of an in-memory net.Pipe to frameStream, so
// tests elsewhere in this module can exercise BiStream-dependent code
// without a live QUIC connection.
type pipeStream struct {
	net.Conn
	id quic.StreamID
}

func (p *pipeStream) CancelRead(quic.StreamErrorCode) {}
func (p *pipeStream) StreamID() quic.StreamID         { return p.id }

// NewPipePair returns two BiStreams connected by an in-memory pipe,
// identified by the given stream IDs. It is exported for use by other
// packages' tests (e.g. broker) that need a working BiStream without
// standing up a real QUIC connection; production code always constructs
// BiStreams via Open/Accept.
func NewPipePair(idA, idB int64, maxFrameSize uint32) (*BiStream, *BiStream) {
	a, b := net.Pipe()
	bsA := newBiStream(&pipeStream{Conn: a, id: quic.StreamID(idA)}, maxFrameSize)
	bsB := newBiStream(&pipeStream{Conn: b, id: quic.StreamID(idB)}, maxFrameSize)
	return bsA, bsB
}

var _ io.ReadWriteCloser = (*pipeStream)(nil)
