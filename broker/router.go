package broker

import (
	"fmt"
	"strings"
	"sync"
	"time"

	logging "gopkg.in/op/go-logging.v1"

	"github.com/selium-io/selium/internal/metrics"
	"github.com/selium-io/selium/transport"
)

// Router is the central fan-out component: a process-wide
// mapping from topic path to Hub, behind a lock discipline that permits
// concurrent routing on distinct topics without contention and serialises
// structural modification (insert/remove) of a given topic's entry.
type Router struct {
	mu    sync.Mutex
	hubs  map[string]*Hub

	subscriberTimeout time.Duration
	metrics           *metrics.Registry
	log               *logging.Logger
}

// RouterConfig configures a new Router.
type RouterConfig struct {
	// SubscriberTimeout is the per-send timeout before a subscriber is
	// judged slow. Zero selects DefaultSubscriberTimeout.
	SubscriberTimeout time.Duration
	Metrics           *metrics.Registry
	Log               *logging.Logger
}

// NewRouter constructs an empty topic registry.
func NewRouter(cfg RouterConfig) *Router {
	timeout := cfg.SubscriberTimeout
	if timeout <= 0 {
		timeout = DefaultSubscriberTimeout
	}
	return &Router{
		hubs:              make(map[string]*Hub),
		subscriberTimeout: timeout,
		metrics:           cfg.Metrics,
		log:               cfg.Log,
	}
}

// ValidateTopic enforces the topic path constraints: non-empty,
// `/`-prefixed, no embedded NUL bytes.
func ValidateTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("invalid topic: empty")
	}
	if !strings.HasPrefix(topic, "/") {
		return fmt.Errorf("invalid topic: must start with '/'")
	}
	if strings.IndexByte(topic, 0) != -1 {
		return fmt.Errorf("invalid topic: contains NUL byte")
	}
	return nil
}

// hubFor returns the hub for topic, creating it if absent. The short
// critical section only ever touches the registry map; the hub's own
// broadcast/attach work always happens after this returns and the registry
// lock is released.
func (r *Router) hubFor(topic string) *Hub {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.hubs[topic]; ok {
		return h
	}

	h := newHub(topic, r.subscriberTimeout, r.metrics, r.log, func() {
		r.removeIfEmpty(topic)
	})
	r.hubs[topic] = h
	if r.metrics != nil {
		r.metrics.LiveHubs.Set(float64(len(r.hubs)))
	}
	return h
}

// removeIfEmpty drops topic's hub from the registry once both its
// publisher count and subscriber set have reached zero.
func (r *Router) removeIfEmpty(topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.hubs[topic]
	if !ok || !h.IsEmpty() {
		return
	}
	delete(r.hubs, topic)
	if r.metrics != nil {
		r.metrics.LiveHubs.Set(float64(len(r.hubs)))
	}
}

// AttachPublisher looks up or creates topic's hub and registers a new
// publisher on it.
func (r *Router) AttachPublisher(topic string) *Hub {
	h := r.hubFor(topic)
	h.AttachPublisher()
	return h
}

// AttachSubscriber looks up or creates topic's hub and attaches stream as a
// subscriber.
func (r *Router) AttachSubscriber(topic string, stream *transport.BiStream) (*Hub, *subscriber) {
	h := r.hubFor(topic)
	sub := h.AttachSubscriber(stream)
	return h, sub
}

// HubCount returns the number of currently live hubs. Exposed for tests.
func (r *Router) HubCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hubs)
}

// Hub returns the hub currently registered for topic, if any. Exposed for
// tests verifying the hub-existence invariant.
func (r *Router) Hub(topic string) (*Hub, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hubs[topic]
	return h, ok
}
