package main

import (
	"sync"
)

// subscription is a client's interest filter. unscoped clients receive
// every push; scoped clients only receive pushes whose affected delivery
// ids intersect their set. A scoped subscription with an empty set is
// subscribed to nothing.
type subscription struct {
	unscoped    bool
	deliveryIDs map[int64]struct{}
}

// ClientRegistry is the set of connected subscribers and their interest
// filters. It is the only state shared between the request context that
// fires publishes and the hub's dispatch loop, so every operation is
// guarded; the guard is never held across a network send.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*subscription
}

// NewClientRegistry creates an empty registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]*subscription)}
}

// Register adds a client with an unscoped subscription. A client that never
// sends a subscribe message receives all pushes until it does.
func (r *ClientRegistry) Register(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[clientID] = &subscription{unscoped: true}
}

// Unregister removes a client. Safe to call for unknown ids.
func (r *ClientRegistry) Unregister(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, clientID)
}

// SetInterest replaces (not merges) a client's subscription filter.
// A nil slice stores an unscoped subscription; an empty non-nil slice
// subscribes the client to nothing. Unknown clients are ignored.
func (r *ClientRegistry) SetInterest(clientID string, deliveryIDs []int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.clients[clientID]
	if !ok {
		return
	}
	if deliveryIDs == nil {
		sub.unscoped = true
		sub.deliveryIDs = nil
		return
	}
	ids := make(map[int64]struct{}, len(deliveryIDs))
	for _, id := range deliveryIDs {
		ids[id] = struct{}{}
	}
	sub.unscoped = false
	sub.deliveryIDs = ids
}

// SnapshotInterested returns a point-in-time copy of the client ids whose
// interest intersects the given delivery ids, plus all unscoped clients.
// The returned slice is safe to iterate without holding any lock.
func (r *ClientRegistry) SnapshotInterested(deliveryIDs []int64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	interested := make([]string, 0, len(r.clients))
	for id, sub := range r.clients {
		if sub.unscoped {
			interested = append(interested, id)
			continue
		}
		for _, did := range deliveryIDs {
			if _, ok := sub.deliveryIDs[did]; ok {
				interested = append(interested, id)
				break
			}
		}
	}
	return interested
}

// Count returns the number of registered clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
