package events

import "sync"

// Publisher is the delivery side of an event channel. Implementations
// should be non-blocking and fire-and-forget: delivery failures are
// logged by the implementation, not propagated to the producer.
type Publisher interface {
	Publish(channel string, event DataChangedEvent)
}

// Compile-time interface checks to ensure proper implementation.
var (
	_ Publisher = (*Bus)(nil)
	_ Publisher = (*NullPublisher)(nil)
	_ Publisher = (*CollectingPublisher)(nil)
)

// NullPublisher discards every event. Useful for tests and for wiring
// components that do not need notifications.
type NullPublisher struct{}

// NewNullPublisher creates a new null publisher.
func NewNullPublisher() *NullPublisher { return &NullPublisher{} }

// Publish implements Publisher by doing nothing.
func (*NullPublisher) Publish(string, DataChangedEvent) {}

// CollectingPublisher records every published event for inspection.
// Intended for tests.
type CollectingPublisher struct {
	mu     sync.Mutex
	events []DataChangedEvent
}

// NewCollectingPublisher creates a new collecting publisher.
func NewCollectingPublisher() *CollectingPublisher {
	return &CollectingPublisher{}
}

// Publish implements Publisher by recording the event.
func (c *CollectingPublisher) Publish(_ string, event DataChangedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

// Events returns all collected events.
func (c *CollectingPublisher) Events() []DataChangedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]DataChangedEvent, len(c.events))
	copy(out, c.events)
	return out
}

// Len returns the number of collected events.
func (c *CollectingPublisher) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// Clear drops all collected events.
func (c *CollectingPublisher) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}
