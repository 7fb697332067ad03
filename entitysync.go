package datasync

import (
	"github.com/openflow/datasync/pkg/errors"
	"github.com/openflow/datasync/pkg/events"
)

// EntitySync is the handle for one per-entity sync session. It owns the
// session's subscription; Stop releases it and is idempotent.
type EntitySync struct {
	entity string
	sub    *events.Subscription
	client *client
}

// Entity returns the entity type this session filters on.
func (h *EntitySync) Entity() string { return h.entity }

// Stop releases the session's subscription. An event already being
// processed runs to completion; further events are dropped.
func (h *EntitySync) Stop() {
	h.sub.Unsubscribe()

	h.client.mu.Lock()
	delete(h.client.scoped, h)
	h.client.mu.Unlock()
}

// StartEntitySync implements Client. The session subscribes to the same
// channel as global sync but discards events for other entity types:
// they are not counted, not forwarded, and trigger no invalidation.
//
// Matching events invoke onEvent first, then invalidate the entity's
// resolved prefixes. Per-entity sync is a read-side convenience: it never
// performs optimistic point updates or removals, so callers needing full
// consistency should run global sync instead (or as well).
func (c *client) StartEntitySync(entityType string, onEvent EventHook) (*EntitySync, error) {
	if entityType == "" {
		return nil, errors.NewValidationError("entityType", entityType, "cannot be empty")
	}
	if onEvent == nil {
		return nil, errors.NewValidationError("onEvent", nil, "handler is required")
	}

	handle := &EntitySync{entity: entityType, client: c}

	sub, err := c.channel.Subscribe(events.ChannelDataChanged, func(ev events.DataChangedEvent) {
		if ev.Entity != entityType {
			return
		}

		c.safeHook("onEvent", onEvent, ev)

		if err := c.executor.InvalidateKeys(c.resolve(entityType)); err != nil {
			c.logger.Error().
				Err(err).
				Str("entity", entityType).
				Str("id", ev.ID).
				Msg("Cache invalidation failed")
		}
	})
	if err != nil {
		return nil, errors.WrapSubscription(events.ChannelDataChanged, err)
	}
	handle.sub = sub

	c.mu.Lock()
	c.scoped[handle] = struct{}{}
	c.mu.Unlock()

	c.logger.Debug().
		Str("entity", entityType).
		Str("subscription_id", sub.ID()).
		Msg("Entity sync started")
	return handle, nil
}

// StopEntitySync implements Client.
func (c *client) StopEntitySync(handle *EntitySync) {
	if handle == nil {
		return
	}
	handle.Stop()
	c.logger.Debug().
		Str("entity", handle.entity).
		Msg("Entity sync stopped")
}
