package broadcast

import (
	"sync"

	"github.com/elariis/portal-chat/internal/observability"
)

const subscriberBuffer = 64

// Hub fans events out to all subscribers of a topic. Delivery is
// at-most-once and best-effort: a subscriber whose queue is full misses the
// event, and a disconnected client is expected to reconnect and poll the
// message log.
type Hub struct {
	mu      sync.RWMutex
	topics  map[string]map[*Subscription]struct{}
	metrics *observability.Metrics
}

// Subscription receives events for one topic until Close is called.
type Subscription struct {
	C     chan any
	hub   *Hub
	topic string
	once  sync.Once
}

func NewHub(metrics *observability.Metrics) *Hub {
	return &Hub{
		topics:  make(map[string]map[*Subscription]struct{}),
		metrics: metrics,
	}
}

// Subscribe registers interest in a topic. The caller must Close the
// subscription when done.
func (h *Hub) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		C:     make(chan any, subscriberBuffer),
		hub:   h,
		topic: topic,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Subscription]struct{})
	}
	h.topics[topic][sub] = struct{}{}
	return sub
}

// Publish delivers the event to every current subscriber of the topic.
// It never blocks; saturated subscribers are skipped.
func (h *Hub) Publish(topic string, event any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.topics[topic] {
		select {
		case sub.C <- event:
		default:
			if h.metrics != nil {
				h.metrics.DroppedEvents.WithLabelValues("session").Inc()
			}
		}
	}
}

// SubscriberCount reports the current number of subscribers for a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Close removes the subscription from its topic. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		if subs := s.hub.topics[s.topic]; subs != nil {
			delete(subs, s)
			if len(subs) == 0 {
				delete(s.hub.topics, s.topic)
			}
		}
		s.hub.mu.Unlock()
		close(s.C)
	})
}
