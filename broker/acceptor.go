package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	logging "gopkg.in/op/go-logging.v1"

	"github.com/selium-io/selium/internal/metrics"
	"github.com/selium-io/selium/internal/worker"
	"github.com/selium-io/selium/transport"
	"github.com/selium-io/selium/wire"
)

// DefaultDrainTimeout bounds how long Drain waits for in-flight publisher
// and subscriber BiStreams to finish after they are signalled closed.
const DefaultDrainTimeout = 30 * time.Second

// Listener is the subset of quic.Listener the Acceptor needs.
type Listener interface {
	Accept(ctx context.Context) (quic.Connection, error)
	Close() error
}

// AcceptorConfig configures a new Acceptor.
type AcceptorConfig struct {
	Router       *Router
	MaxFrameSize uint32
	Metrics      *metrics.Registry
	Log          *logging.Logger
}

// Acceptor is the Connection Acceptor: a single process-wide
// task that accepts QUIC connections, then, for each, spawns a
// per-connection task that repeatedly accepts incoming substreams, runs the
// session handshake, and binds the resulting BiStream to the router.
type Acceptor struct {
	worker.Worker

	router       *Router
	maxFrameSize uint32
	metrics      *metrics.Registry
	log          *logging.Logger

	connWG sync.WaitGroup

	streamsMu sync.Mutex
	streams   map[*transport.BiStream]bool // value: true if publisher, false if subscriber
}

// NewAcceptor constructs an Acceptor bound to cfg.Router. Connections carry
// no shared state beyond this router reference.
func NewAcceptor(cfg AcceptorConfig) *Acceptor {
	return &Acceptor{
		router:       cfg.Router,
		maxFrameSize: cfg.MaxFrameSize,
		metrics:      cfg.Metrics,
		log:          cfg.Log,
		streams:      make(map[*transport.BiStream]bool),
	}
}

func (a *Acceptor) trackStream(bs *transport.BiStream, isPublisher bool) {
	a.streamsMu.Lock()
	a.streams[bs] = isPublisher
	a.streamsMu.Unlock()
}

func (a *Acceptor) untrackStream(bs *transport.BiStream) {
	a.streamsMu.Lock()
	delete(a.streams, bs)
	a.streamsMu.Unlock()
}

// Serve runs the accept loop until ctx is cancelled or Halt is called.
func (a *Acceptor) Serve(ctx context.Context, listener Listener) error {
	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			select {
			case <-a.HaltCh():
				return nil
			case <-ctx.Done():
				return nil
			default:
			}
			return fmt.Errorf("broker: accept connection: %w", err)
		}

		if a.metrics != nil {
			a.metrics.ConnectionsAccepted.Inc()
		}

		a.connWG.Add(1)
		a.Go(func() {
			defer a.connWG.Done()
			a.serveConnection(ctx, conn)
		})
	}
}

// Drain stops accepting new connections, signals every currently active
// publisher BiStream closed with a clean Ack-terminated frame (and every
// active subscriber BiStream closed with an Error explaining why), then
// waits up to timeout for the resulting handshake loops and connection
// tasks to return. A zero timeout selects DefaultDrainTimeout. Drain always
// returns once timeout elapses, even if some tasks are still unwinding —
// bounded shutdown takes priority over waiting on a stuck peer.
func (a *Acceptor) Drain(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultDrainTimeout
	}

	a.Halt()
	a.closeActiveStreams()

	done := make(chan struct{})
	go func() {
		a.connWG.Wait()
		a.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		if a.log != nil {
			a.log.Warningf("drain: timed out after %s waiting for connections to finish", timeout)
		}
	}
}

// closeActiveStreams signals every tracked BiStream closed so that any
// handleSubstream loop blocked in Recv unblocks promptly instead of waiting
// for its peer to speak or for the transport to time out.
func (a *Acceptor) closeActiveStreams() {
	a.streamsMu.Lock()
	defer a.streamsMu.Unlock()

	for bs, isPublisher := range a.streams {
		if isPublisher {
			_ = bs.Send(wire.Ack())
		} else {
			_ = bs.Send(wire.ErrorFrame("server draining"))
		}
		_ = bs.Close()
	}
}

func (a *Acceptor) serveConnection(ctx context.Context, conn quic.Connection) {
	for {
		select {
		case <-a.HaltCh():
			return
		default:
		}

		bs, err := transport.Accept(ctx, conn, a.maxFrameSize)
		if err != nil {
			return
		}

		a.Go(func() {
			a.handleSubstream(bs)
		})
	}
}

// handleSubstream reads the first frame on a newly accepted BiStream and
// dispatches on the handshake variant. Anything other
// than RegisterPublisher/RegisterSubscriber as the first frame, or an I/O
// failure before the handshake completes, yields immediate close with
// Error("handshake").
func (a *Acceptor) handleSubstream(bs *transport.BiStream) {
	first, err := bs.Recv()
	if err != nil {
		if a.metrics != nil {
			a.metrics.HandshakeFailures.Inc()
		}
		_ = bs.Send(wire.ErrorFrame("handshake"))
		_ = bs.Close()
		return
	}

	switch first.Tag {
	case wire.TagRegisterPublisher:
		a.handlePublisher(bs, first)
	case wire.TagRegisterSubscriber:
		a.handleSubscriber(bs, first)
	default:
		if a.metrics != nil {
			a.metrics.HandshakeFailures.Inc()
		}
		_ = bs.Send(wire.ErrorFrame("handshake"))
		_ = bs.Close()
	}
}

func (a *Acceptor) handlePublisher(bs *transport.BiStream, reg wire.Frame) {
	if err := ValidateTopic(reg.Topic); err != nil {
		a.rejectHandshake(bs, "invalid topic")
		return
	}

	if err := bs.Send(wire.Ack()); err != nil {
		_ = bs.Close()
		return
	}

	hub := a.router.AttachPublisher(reg.Topic)
	defer hub.DetachPublisher()

	a.trackStream(bs, true)
	defer a.untrackStream(bs)

	for {
		frame, err := bs.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) && a.log != nil {
				a.log.Debugf("publisher on %s ended: %v", reg.Topic, err)
			}
			return
		}
		if frame.Tag != wire.TagMessage {
			// Only Message frames are valid after handshake on a
			// publisher BiStream.
			_ = bs.Send(wire.ErrorFrame("unexpected frame"))
			_ = bs.Close()
			return
		}
		hub.Broadcast(frame)
	}
}

func (a *Acceptor) handleSubscriber(bs *transport.BiStream, reg wire.Frame) {
	if err := ValidateTopic(reg.Topic); err != nil {
		a.rejectHandshake(bs, "invalid topic")
		return
	}

	if err := bs.Send(wire.Ack()); err != nil {
		_ = bs.Close()
		return
	}

	hub, sub := a.router.AttachSubscriber(reg.Topic, bs)

	a.trackStream(bs, false)
	defer a.untrackStream(bs)

	// A subscriber BiStream's client->server direction is only used for a
	// clean Finish; draining it here lets us notice the client
	// closing its read/finish half and detach promptly instead of leaking
	// the hub entry until the next broadcast failure.
	for {
		_, err := bs.Recv()
		if err != nil {
			hub.DetachSubscriber(sub)
			return
		}
	}
}

func (a *Acceptor) rejectHandshake(bs *transport.BiStream, reason string) {
	if a.metrics != nil {
		a.metrics.HandshakeFailures.Inc()
	}
	_ = bs.Send(wire.ErrorFrame(reason))
	_ = bs.Close()
}
