package events

import (
	"sync"

	"github.com/google/uuid"

	"github.com/openflow/datasync/pkg/errors"
)

// Handler receives events delivered on a subscribed channel.
type Handler func(event DataChangedEvent)

// Channel is the subscribe side of an event delivery mechanism. The bus
// below implements it for in-process delivery; transports implement the
// publish side by feeding a bus.
type Channel interface {
	// Subscribe registers a handler on the named channel. The returned
	// subscription owns the handler's registration for its lifetime.
	Subscribe(channel string, handler Handler) (*Subscription, error)
}

// Bus is an in-process event channel. Delivery is synchronous: Publish
// invokes every matching handler before returning, in subscription order,
// so each subscription observes events strictly in publish order.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]*Subscription // channel -> ordered subscriptions
	closed bool
}

// NewBus creates a new in-process event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]*Subscription)}
}

// Compile-time interface check to ensure proper implementation.
var _ Channel = (*Bus)(nil)

// Subscribe registers a handler on the named channel. Subscribing to
// ChannelWildcard delivers every event regardless of channel. Returns
// errors.ErrClosed wrapped in a SubscriptionError once the bus is closed.
func (b *Bus) Subscribe(channel string, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, errors.NewSubscriptionError(channel, "handler must not be nil", errors.ErrInvalidInput)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.NewSubscriptionError(channel, "bus is closed", errors.ErrClosed)
	}

	sub := &Subscription{
		id:      uuid.NewString(),
		channel: channel,
		handler: handler,
		bus:     b,
	}
	b.subs[channel] = append(b.subs[channel], sub)
	return sub, nil
}

// Publish delivers an event to every subscription on the named channel and
// to wildcard subscriptions. Publishing on a closed bus is a no-op.
func (b *Bus) Publish(channel string, event DataChangedEvent) {
	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs[channel])+len(b.subs[ChannelWildcard]))
	targets = append(targets, b.subs[channel]...)
	if channel != ChannelWildcard {
		targets = append(targets, b.subs[ChannelWildcard]...)
	}
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		return
	}

	// Handlers run outside the lock so they may subscribe or unsubscribe.
	for _, sub := range targets {
		sub.deliver(event)
	}
}

// SubscriberCount returns the number of live subscriptions on a channel.
func (b *Bus) SubscriberCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}

// Close shuts down the bus. Existing subscriptions are released and
// further Subscribe calls fail; Publish becomes a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[string][]*Subscription)
}

// remove drops a subscription from its channel's list.
func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[sub.channel]
	for i, s := range list {
		if s == sub {
			b.subs[sub.channel] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Subscription is a live registration of a handler against a channel.
type Subscription struct {
	id      string
	channel string
	handler Handler
	bus     *Bus

	once     sync.Once
	mu       sync.RWMutex
	canceled bool
}

// ID returns the unique identifier of this subscription.
func (s *Subscription) ID() string { return s.id }

// Channel returns the channel this subscription listens on.
func (s *Subscription) Channel() string { return s.channel }

// Unsubscribe releases the handler's registration. It is idempotent:
// calling it again, or after the bus is closed, has no further effect.
// An event already being delivered runs to completion.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.mu.Lock()
		s.canceled = true
		s.mu.Unlock()
		s.bus.remove(s)
	})
}

// deliver invokes the handler unless the subscription was canceled.
func (s *Subscription) deliver(event DataChangedEvent) {
	s.mu.RLock()
	canceled := s.canceled
	s.mu.RUnlock()
	if canceled {
		return
	}
	s.handler(event)
}
