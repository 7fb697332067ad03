package datasync

import (
	"github.com/rs/zerolog"

	"github.com/openflow/datasync/pkg/errors"
	"github.com/openflow/datasync/pkg/events"
	"github.com/openflow/datasync/pkg/querycache"
	"github.com/openflow/datasync/pkg/querykeys"
)

// Option is a function that configures a Client instance.
type Option func(*options) error

// options are the configured options for a client.
type options struct {
	channel events.Channel
	cache   querycache.Cache
	keys    querykeys.Map
	logger  *zerolog.Logger
}

// defaults returns the default client options: a private in-process bus,
// an in-memory cache, and the default entity key map.
func defaults() *options {
	return &options{
		channel: events.NewBus(),
		cache:   querycache.NewMemory(),
		keys:    querykeys.Default(),
		logger:  loggerOrDefault(nil),
	}
}

// apply runs each option over the defaults.
func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithChannel configures the event channel the controllers subscribe to.
// Callers that feed events from a transport pass the same bus here and to
// the transport.
func WithChannel(channel events.Channel) Option {
	return func(o *options) error {
		if channel == nil {
			return errors.NewConfigError("datasync", "channel cannot be nil", errors.ErrInvalidInput)
		}
		o.channel = channel
		return nil
	}
}

// WithCache configures the reactive query cache the engine keeps
// consistent.
func WithCache(cache querycache.Cache) Option {
	return func(o *options) error {
		if cache == nil {
			return errors.NewConfigError("datasync", "cache cannot be nil", errors.ErrInvalidInput)
		}
		o.cache = cache
		return nil
	}
}

// WithKeyMap replaces the default entity-to-prefix table.
func WithKeyMap(keys querykeys.Map) Option {
	return func(o *options) error {
		if keys == nil {
			return errors.NewConfigError("datasync", "key map cannot be nil", errors.ErrInvalidInput)
		}
		o.keys = keys
		return nil
	}
}

// WithLogger configures the logger used by the client and its sessions.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) error {
		o.logger = loggerOrDefault(logger)
		return nil
	}
}

// SyncOption is a function that configures a global sync session.
type SyncOption func(*syncConfig) error

// syncConfig is the per-session configuration for global sync.
type syncConfig struct {
	enabled          bool
	optimisticUpdate bool
	onDataChange     EventHook
}

// defaultSyncConfig returns the global sync defaults: enabled, with
// optimistic updates.
func defaultSyncConfig() *syncConfig {
	return &syncConfig{
		enabled:          true,
		optimisticUpdate: true,
	}
}

// WithEnabled configures whether the session subscribes at all. A
// disabled session performs no cache work; events emitted while disabled
// are not replayed on re-enable, the cache simply refetches on next read.
func WithEnabled(enabled bool) SyncOption {
	return func(c *syncConfig) error {
		c.enabled = enabled
		return nil
	}
}

// WithOptimisticUpdates configures whether created/updated events write
// their payload straight into the point slot ahead of refetch.
func WithOptimisticUpdates(enabled bool) SyncOption {
	return func(c *syncConfig) error {
		c.optimisticUpdate = enabled
		return nil
	}
}

// WithOnDataChange configures a side-channel callback invoked for every
// processed event, before cache actions run. Best-effort: panics are
// recovered and reported.
func WithOnDataChange(hook EventHook) SyncOption {
	return func(c *syncConfig) error {
		c.onDataChange = hook
		return nil
	}
}
