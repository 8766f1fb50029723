// Package bus carries policy-update messages between scheduler instances and
// the policy engine.
package bus

import (
	"fmt"
	"sync"
	"sync/atomic"

	"ward/internal/async"
	"ward/internal/logging"
	"ward/internal/ports"
)

// Bus is an in-process message bus with buffered, ordered delivery.
type Bus struct {
	mu       sync.RWMutex
	handlers map[int]func(ports.PolicyUpdate)
	nextID   int
	messages chan ports.PolicyUpdate
	done     chan struct{}
	closed   atomic.Bool
	logger   logging.Logger
}

// New creates a bus with the given publish buffer size.
func New(bufferSize int, logger logging.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	b := &Bus{
		handlers: make(map[int]func(ports.PolicyUpdate)),
		messages: make(chan ports.PolicyUpdate, bufferSize),
		done:     make(chan struct{}),
		logger:   logging.OrNop(logger),
	}
	async.Go(b.logger, "bus-dispatch", b.dispatch)
	return b
}

// Publish enqueues an update for delivery. Fire and forget: a full buffer is
// an error to the caller but never blocks the scheduler.
func (b *Bus) Publish(update ports.PolicyUpdate) error {
	if b.closed.Load() {
		return fmt.Errorf("bus is closed")
	}
	select {
	case b.messages <- update:
		return nil
	default:
		return fmt.Errorf("bus buffer full, dropped update %s", update.ID)
	}
}

// Subscribe registers fn for every subsequent update and returns an
// unsubscribe func.
func (b *Bus) Subscribe(fn func(ports.PolicyUpdate)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

// Close stops delivery. Pending messages are dropped. The messages channel
// is never closed so a racing Publish can only enqueue into the buffer,
// never panic.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}
	close(b.done)
}

func (b *Bus) dispatch() {
	for {
		select {
		case <-b.done:
			return
		case update := <-b.messages:
			b.mu.RLock()
			handlers := make([]func(ports.PolicyUpdate), 0, len(b.handlers))
			for _, fn := range b.handlers {
				handlers = append(handlers, fn)
			}
			b.mu.RUnlock()
			for _, fn := range handlers {
				fn(update)
			}
		}
	}
}
