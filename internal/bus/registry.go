package bus

import (
	"sync"

	"ward/internal/ports"
)

// SubscriptionRegistry guarantees that each distinct bus receives exactly one
// subscribed handler no matter how many scheduler instances reference it.
// Passed explicitly at scheduler construction; there is no package-level
// shared state.
type SubscriptionRegistry struct {
	mu         sync.Mutex
	subscribed map[ports.MessageBus]func()
}

// NewSubscriptionRegistry creates an empty registry.
func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{
		subscribed: make(map[ports.MessageBus]func()),
	}
}

// EnsureSubscribed subscribes fn on b once per bus identity. Later calls for
// the same bus are no-ops, regardless of which scheduler instance makes them.
func (r *SubscriptionRegistry) EnsureSubscribed(b ports.MessageBus, fn func(ports.PolicyUpdate)) {
	if b == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subscribed[b]; ok {
		return
	}
	r.subscribed[b] = b.Subscribe(fn)
}

// Release drops the registry's subscription on b, if any.
func (r *SubscriptionRegistry) Release(b ports.MessageBus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if unsubscribe, ok := r.subscribed[b]; ok {
		unsubscribe()
		delete(r.subscribed, b)
	}
}
