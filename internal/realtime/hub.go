package realtime

import "sync"

const subscriberBuffer = 16

// Hub keeps in-memory subscribers grouped by scope key. It is process-local;
// cross-instance delivery goes through the Bridge.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan ChangeEvent]struct{}
}

// NewHub constructs a Hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[chan ChangeEvent]struct{})}
}

// Subscribe registers a scope-specific subscriber and returns its channel
// plus an unsubscribe function that must be called on teardown.
func (h *Hub) Subscribe(scope string) (<-chan ChangeEvent, func()) {
	ch := make(chan ChangeEvent, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subscribers[scope]
	if !ok {
		set = make(map[chan ChangeEvent]struct{})
		h.subscribers[scope] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		if set, ok := h.subscribers[scope]; ok {
			if _, present := set[ch]; present {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subscribers, scope)
			}
		}
		h.mu.Unlock()
	}

	return ch, unsubscribe
}

// Publish sends an event to all subscribers of its scope. Slow consumers are
// skipped so producer code never blocks on a stalled channel.
func (h *Hub) Publish(ev ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[ev.Scope] {
		select {
		case ch <- ev:
		default:
			// drop if subscriber is slow
		}
	}
}
