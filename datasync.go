// Package datasync keeps a client's reactive query cache consistent with
// server-owned entities. It is a notification-to-cache-action engine:
// every DataChangedEvent delivered on the event channel is mapped to the
// cache-key prefixes it staleness-taints, applied as invalidations plus an
// optional optimistic point update, and surfaced to caller-supplied
// callbacks.
//
// Multiple independent clients (application windows, browser tabs)
// observing the same backend each run their own instance; the backend
// broadcasts one event per mutation and every instance converges by
// invalidate-and-refetch.
//
// Example usage:
//
//	bus := events.NewBus()
//	c, err := datasync.New(
//	    datasync.WithChannel(bus),
//	    datasync.WithCache(cache),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.StopGlobalSync()
//
//	// Application-wide sync: invalidate + optimistic updates for every
//	// entity the backend reports.
//	err = c.StartGlobalSync(
//	    datasync.WithOnDataChange(func(ev events.DataChangedEvent) {
//	        log.Printf("changed: %s %s", ev.Entity, ev.ID)
//	    }),
//	)
//
//	// Per-entity sync: observe one entity type, invalidation only.
//	handle, err := c.StartEntitySync(events.EntityTask, onTaskEvent)
//	defer c.StopEntitySync(handle)
package datasync

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/openflow/datasync/pkg/errors"
	"github.com/openflow/datasync/pkg/events"
	"github.com/openflow/datasync/pkg/invalidation"
	"github.com/openflow/datasync/pkg/logging"
	"github.com/openflow/datasync/pkg/querycache"
	"github.com/openflow/datasync/pkg/querykeys"
)

// EventHook is a caller-supplied callback invoked for matching events.
// Hooks are best-effort: a panicking hook is recovered, reported, and
// never prevents cache invalidation.
type EventHook func(event events.DataChangedEvent)

// Client owns the sync controllers for one application scope.
type Client interface {
	// StartGlobalSync begins the application-wide sync session: every
	// event on the data-changed channel is counted, forwarded to the
	// configured callback, and applied to the cache. Returns
	// errors.ErrAlreadyStarted if a session is already running.
	StartGlobalSync(opts ...SyncOption) error

	// StopGlobalSync tears the global session down. The subscription is
	// released; a fresh StartGlobalSync counts from zero again.
	StopGlobalSync()

	// EventCount reports how many events the current global session has
	// processed. Zero when no session is running.
	EventCount() uint64

	// StartEntitySync begins a per-entity sync session: events for other
	// entity types are discarded, matching events are forwarded to
	// onEvent and followed by prefix invalidation only.
	StartEntitySync(entityType string, onEvent EventHook) (*EntitySync, error)

	// StopEntitySync releases a per-entity session. Safe to call more
	// than once and with a nil handle.
	StopEntitySync(handle *EntitySync)

	// Close stops every session this client owns.
	Close() error
}

// client is the internal implementation of the Client interface.
type client struct {
	options *options

	channel  events.Channel
	cache    querycache.Cache
	keys     querykeys.Map
	executor *invalidation.Executor
	logger   *zerolog.Logger

	mu     sync.Mutex
	global *globalSession
	scoped map[*EntitySync]struct{}
}

// Compile-time interface check to ensure proper implementation.
var _ Client = (*client)(nil)

// New creates a new Client instance with the given options.
func New(opts ...Option) (Client, error) {
	o, err := defaults().apply(opts...)
	if err != nil {
		return nil, err
	}

	// The fallback path for unmapped entities depends on every configured
	// entry being well-formed, so the table is validated up front.
	if err := o.keys.Validate(); err != nil {
		return nil, err
	}

	c := &client{
		options:  o,
		channel:  o.channel,
		cache:    o.cache,
		keys:     o.keys,
		logger:   o.logger,
		scoped:   make(map[*EntitySync]struct{}),
		executor: invalidation.New(o.cache, o.logger),
	}

	c.logger.Debug().
		Int("entities", len(c.keys)).
		Msg("Datasync client created")

	return c, nil
}

// EventCount implements Client.
func (c *client) EventCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.global == nil {
		return 0
	}
	return c.global.count.Load()
}

// Close implements Client.
func (c *client) Close() error {
	c.StopGlobalSync()

	c.mu.Lock()
	handles := make([]*EntitySync, 0, len(c.scoped))
	for h := range c.scoped {
		handles = append(handles, h)
	}
	c.mu.Unlock()

	for _, h := range handles {
		c.StopEntitySync(h)
	}
	return nil
}

// resolve maps an entity to its cache-key prefixes via the configured
// table, falling back to the entity name itself.
func (c *client) resolve(entity string) []string {
	return c.keys.Resolve(entity)
}

// safeHook invokes a caller-supplied hook, converting a panic into a
// reported CallbackError. Cache consistency never depends on hooks.
func (c *client) safeHook(name string, hook EventHook, ev events.DataChangedEvent) {
	defer func() {
		if r := recover(); r != nil {
			cbErr := errors.NewCallbackError(name, ev.Entity, recoverMessage(r))
			c.logger.Error().
				Str("entity", ev.Entity).
				Str("action", ev.Action.String()).
				Str("id", ev.ID).
				Msg(cbErr.Error())
		}
	}()
	hook(ev)
}

func recoverMessage(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	if s, ok := r.(string); ok {
		return s
	}
	return "panic in callback"
}

// loggerOrDefault is shared by option wiring.
func loggerOrDefault(l *zerolog.Logger) *zerolog.Logger {
	if l == nil {
		return logging.Default()
	}
	return l
}
