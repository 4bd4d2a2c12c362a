// Package broker implements the Topic Router and Connection Acceptor
//: the server-side fan-out component that owns the topic
// registry, attaches publishers and subscribers, and broadcasts Message
// frames with per-subscriber slow-consumer eviction.
package broker

import (
	"errors"
	"sync"
	"time"

	logging "gopkg.in/op/go-logging.v1"

	"github.com/selium-io/selium/internal/metrics"
	"github.com/selium-io/selium/internal/worker"
	"github.com/selium-io/selium/transport"
	"github.com/selium-io/selium/wire"
)

// DefaultSubscriberTimeout is the default per-send timeout before a
// subscriber is considered slow and evicted.
const DefaultSubscriberTimeout = 5 * time.Second

var (
	errSlowSubscriber = errors.New("broker: subscriber did not drain in time")
	errHalted         = errors.New("broker: subscriber halted")
)

// subscriberChanDepth bounds how many frames the hub will buffer for one
// subscriber ahead of its own delivery goroutine. It absorbs short bursts
// without blocking Broadcast; an outbox that stays full is itself evidence
// of a slow subscriber.
const subscriberChanDepth = 16

// subscriber is one attached subscriber BiStream, owned exclusively by its
// Hub. Concurrent sends to it are serialized by its own dedicated delivery
// goroutine reading off outbox.
type subscriber struct {
	worker.Worker

	stream *transport.BiStream
	id     int64
	outbox chan wire.Frame
}

func newSubscriber(stream *transport.BiStream) *subscriber {
	return &subscriber{
		stream: stream,
		id:     stream.SendStreamID(),
		outbox: make(chan wire.Frame, subscriberChanDepth),
	}
}

// deliver runs as the subscriber's dedicated outbound task: it drains
// outbox in FIFO order and serializes writes to this subscriber's BiStream,
// so the hub's broadcast loop never blocks on one subscriber's transport
// progress while feeding another. Each send is bounded by timeout; a send
// that errors or fails to complete in time marks the subscriber slow.
func (s *subscriber) deliver(timeout time.Duration, onSlow func(*subscriber)) {
	for {
		select {
		case <-s.HaltCh():
			return
		case frame, ok := <-s.outbox:
			if !ok {
				return
			}
			if err := s.sendWithTimeout(frame, timeout); err != nil {
				onSlow(s)
				return
			}
		}
	}
}

// sendWithTimeout races a single Send against timeout. The send is run on a
// helper goroutine so a transport that never unblocks cannot leak this
// subscriber's deliver goroutine forever; the helper goroutine itself exits
// once the underlying Send call returns or errors.
func (s *subscriber) sendWithTimeout(frame wire.Frame, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- s.stream.Send(frame) }()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return errSlowSubscriber
	case <-s.HaltCh():
		return errHalted
	}
}

// offer hands frame to this subscriber's dedicated delivery goroutine. The
// channel is sized to absorb bursts; when it is full, offer waits up to
// timeout for room and reports failure if none frees up in time (or if the
// subscriber has been halted), which marks the subscriber slow. Because
// Broadcast calls offer synchronously and in frame order for a given
// subscriber, enqueue order — and therefore delivery order — matches send
// order.
func (s *subscriber) offer(frame wire.Frame, timeout time.Duration) bool {
	select {
	case s.outbox <- frame:
		return true
	default:
	}

	select {
	case s.outbox <- frame:
		return true
	case <-time.After(timeout):
		return false
	case <-s.HaltCh():
		return false
	}
}

// Hub is the per-topic server-side state: the topic path, the set of
// currently attached subscribers, and a count of attached publishers. A Hub
// exists in the Router's registry iff subscriber-set is non-empty or
// publisher-count > 0.
type Hub struct {
	mu sync.Mutex

	topic           string
	subscribers     map[int64]*subscriber
	publisherCount  int
	subscriberTimeout time.Duration

	metrics *metrics.Registry
	log     *logging.Logger

	onEmpty func()
}

func newHub(topic string, subscriberTimeout time.Duration, reg *metrics.Registry, log *logging.Logger, onEmpty func()) *Hub {
	return &Hub{
		topic:             topic,
		subscribers:       make(map[int64]*subscriber),
		subscriberTimeout: subscriberTimeout,
		metrics:           reg,
		log:               log,
		onEmpty:           onEmpty,
	}
}

// Topic returns the hub's topic path.
func (h *Hub) Topic() string {
	return h.topic
}

// AttachPublisher increments the publisher count.
func (h *Hub) AttachPublisher() {
	h.mu.Lock()
	h.publisherCount++
	h.mu.Unlock()
}

// DetachPublisher decrements the publisher count and, if the hub is now
// empty (publisher count and subscriber set both zero), calls onEmpty.
func (h *Hub) DetachPublisher() {
	h.mu.Lock()
	h.publisherCount--
	empty := h.publisherCount <= 0 && len(h.subscribers) == 0
	h.mu.Unlock()

	if empty {
		h.onEmpty()
	}
}

// AttachSubscriber inserts stream's write half into the subscriber set,
// keyed by its send-stream-id, and starts its dedicated delivery goroutine.
func (h *Hub) AttachSubscriber(stream *transport.BiStream) *subscriber {
	sub := newSubscriber(stream)

	h.mu.Lock()
	h.subscribers[sub.id] = sub
	h.mu.Unlock()

	sub.Go(func() {
		sub.deliver(h.subscriberTimeout, func(slow *subscriber) {
			h.evict(slow, "slow subscriber")
		})
	})

	return sub
}

// DetachSubscriber removes sub from the hub's subscriber set (e.g. on its
// read half signalling close) without closing its stream, which the caller
// owns.
func (h *Hub) DetachSubscriber(sub *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, sub.id)
	empty := h.publisherCount <= 0 && len(h.subscribers) == 0
	h.mu.Unlock()

	sub.Halt()

	if empty {
		h.onEmpty()
	}
}

// evict removes a subscriber the hub has judged slow, closing its stream
// with an Error frame.
func (h *Hub) evict(sub *subscriber, reason string) {
	h.mu.Lock()
	_, attached := h.subscribers[sub.id]
	delete(h.subscribers, sub.id)
	empty := h.publisherCount <= 0 && len(h.subscribers) == 0
	h.mu.Unlock()

	if !attached {
		return
	}

	sub.Halt()
	if h.log != nil {
		h.log.Warningf("evicting subscriber %d on topic %s: %s", sub.id, h.topic, reason)
	}
	if h.metrics != nil {
		h.metrics.SlowSubscriberEvict.Inc()
	}
	// Best-effort: the stream may already be broken, hence the send
	// failure that triggered eviction in the first place.
	_ = sub.stream.Send(wire.ErrorFrame(reason))
	_ = sub.stream.Close()

	if empty {
		h.onEmpty()
	}
}

// Broadcast snapshots the current subscriber set and offers frame to each,
// releasing the hub lock before any send is attempted. Fast subscribers receive the frame and stay attached; a
// subscriber that cannot accept the frame within the hub's configured
// timeout is dropped and closed with Error("slow subscriber"). Delivery is
// best-effort fan-out: a slow subscriber holds up a broadcast for at most
// that timeout before it is evicted.
func (h *Hub) Broadcast(frame wire.Frame) {
	h.mu.Lock()
	snapshot := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		snapshot = append(snapshot, sub)
	}
	h.mu.Unlock()

	for _, sub := range snapshot {
		if sub.offer(frame, h.subscriberTimeout) {
			if h.metrics != nil {
				h.metrics.MessagesRouted.Inc()
			}
			continue
		}
		// Outbox stayed full for the whole timeout: this subscriber isn't
		// draining fast enough. Evict without blocking the rest of this
		// broadcast.
		go h.evict(sub, "slow subscriber")
	}
}

// IsEmpty reports whether the hub currently has no attached publishers and
// no attached subscribers.
func (h *Hub) IsEmpty() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.publisherCount <= 0 && len(h.subscribers) == 0
}

// SubscriberCount returns the number of currently attached subscribers.
// Exposed for tests exercising the hub-existence invariant.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// PublisherCount returns the number of currently attached publishers.
func (h *Hub) PublisherCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.publisherCount
}
