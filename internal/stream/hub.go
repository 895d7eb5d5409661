// Package stream implements the push-based read model: writers notify a Hub
// after every committed change, and watchers re-query a full snapshot for
// each notification. Subscribers always see complete, consistent lists,
// never deltas.
package stream

import (
	"log/slog"
	"sync"
)

const (
	EntityEntry    EntityKind = "entry"
	EntityCategory EntityKind = "category"

	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

type (
	EntityKind string
	Op         string

	// Change describes one committed write.
	Change struct {
		Kind EntityKind
		Op   Op
		ID   int64
	}
)

// Hub fans committed-change signals out to subscribers. Delivery is a
// coalesced dirty flag: a subscriber that has not yet drained its signal
// will see a single signal for a burst of writes, which is enough because
// every emission is a fresh full snapshot.
type Hub struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// Subscription is one subscriber's handle on the hub. Receive from C and
// re-query; Close when done.
type Subscription struct {
	C   chan struct{}
	hub *Hub
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber. The signal channel has capacity one
// so notifications coalesce instead of blocking writers.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		C:   make(chan struct{}, 1),
		hub: h,
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// Notify signals every subscriber that data changed. Never blocks: a
// subscriber with a pending signal simply keeps the one it has.
func (h *Hub) Notify(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		select {
		case sub.C <- struct{}{}:
		default:
			// signal already pending, snapshot re-query will cover this change
		}
	}

	slog.Debug("Change notified", "kind", c.Kind, "op", c.Op, "id", c.ID)
}

// Close removes the subscription; no further signals are delivered. Safe to
// call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	delete(s.hub.subs, s)
	s.hub.mu.Unlock()
}

// Subscribers reports the current number of subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
