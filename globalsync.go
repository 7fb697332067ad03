package datasync

import (
	"sync/atomic"

	"github.com/openflow/datasync/pkg/errors"
	"github.com/openflow/datasync/pkg/events"
	"github.com/openflow/datasync/pkg/invalidation"
)

// heartbeatInterval is how many events pass between diagnostic summaries.
// The first event always logs one.
const heartbeatInterval = 100

// globalSession is one run of the application-wide sync controller. A
// session is created fresh on every start; no counter state survives a
// stop/start cycle.
type globalSession struct {
	client *client
	cfg    *syncConfig
	sub    *events.Subscription
	count  atomic.Uint64
}

// StartGlobalSync implements Client.
func (c *client) StartGlobalSync(opts ...SyncOption) error {
	cfg := defaultSyncConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.global != nil {
		// Duplicate setup is a caller bug worth diagnosing, not silently
		// stacking subscriptions.
		c.logger.Warn().Msg("Global sync already started")
		return errors.ErrAlreadyStarted
	}

	session := &globalSession{client: c, cfg: cfg}

	if !cfg.enabled {
		// Session exists but subscribes to nothing. Re-enabling means a
		// fresh StartGlobalSync, which subscribes anew; events emitted in
		// between are lost to this controller and reconciled by refetch.
		c.global = session
		c.logger.Debug().Msg("Global sync created disabled")
		return nil
	}

	sub, err := c.channel.Subscribe(events.ChannelDataChanged, session.handle)
	if err != nil {
		return errors.WrapSubscription(events.ChannelDataChanged, err)
	}
	session.sub = sub
	c.global = session

	c.logger.Debug().
		Str("subscription_id", sub.ID()).
		Bool("optimistic", cfg.optimisticUpdate).
		Msg("Global sync started")
	return nil
}

// StopGlobalSync implements Client.
func (c *client) StopGlobalSync() {
	c.mu.Lock()
	session := c.global
	c.global = nil
	c.mu.Unlock()

	if session == nil {
		return
	}
	if session.sub != nil {
		session.sub.Unsubscribe()
	}
	c.logger.Debug().
		Uint64("events_processed", session.count.Load()).
		Msg("Global sync stopped")
}

// handle processes one event: count, side-channel callback, resolve and
// apply, heartbeat. The callback is best-effort; resolution and cache
// application always run.
func (s *globalSession) handle(ev events.DataChangedEvent) {
	n := s.count.Add(1)

	if s.cfg.onDataChange != nil {
		s.client.safeHook("onDataChange", s.cfg.onDataChange, ev)
	}

	keys := s.client.resolve(ev.Entity)
	err := s.client.executor.Apply(ev, keys, invalidation.Options{
		OptimisticUpdate: s.cfg.optimisticUpdate,
	})
	if err != nil {
		// A cache failure is not recoverable here and masking it would
		// mean silent inconsistency. Keep the subscription alive; later
		// events may still succeed.
		s.client.logger.Error().
			Err(err).
			Str("entity", ev.Entity).
			Str("action", ev.Action.String()).
			Str("id", ev.ID).
			Msg("Cache update failed")
	}

	if n == 1 || n%heartbeatInterval == 0 {
		s.client.logger.Info().
			Str("entity", ev.Entity).
			Str("action", ev.Action.String()).
			Uint64("event_count", n).
			Msg("Sync heartbeat")
	}
}
