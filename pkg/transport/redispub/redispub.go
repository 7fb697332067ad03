// Package redispub bridges datasync events over Redis pub/sub. A Source
// subscribes to a Redis channel and republishes decoded events on a
// local bus; a Publisher does the reverse for processes that emit
// change notifications.
package redispub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/openflow/datasync/pkg/errors"
	"github.com/openflow/datasync/pkg/events"
	"github.com/openflow/datasync/pkg/logging"
)

// Option configures a Source or Publisher.
type Option func(*config)

type config struct {
	channel string
	logger  *zerolog.Logger
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		channel: events.ChannelDataChanged,
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithChannel overrides the Redis channel name.
func WithChannel(channel string) Option {
	return func(c *config) {
		if channel != "" {
			c.channel = channel
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Source republishes events from a Redis channel onto a local bus.
type Source struct {
	rdb *redis.Client
	bus events.Publisher
	cfg *config
}

// NewSource builds a Source. Run must be called to start consuming.
func NewSource(rdb *redis.Client, bus events.Publisher, opts ...Option) (*Source, error) {
	if rdb == nil {
		return nil, errors.NewConfigError("redispub", "redis client cannot be nil", errors.ErrInvalidInput)
	}
	if bus == nil {
		return nil, errors.NewConfigError("redispub", "bus cannot be nil", errors.ErrInvalidInput)
	}
	return &Source{rdb: rdb, bus: bus, cfg: newConfig(opts...)}, nil
}

// Run consumes the Redis channel until ctx is canceled or the
// subscription fails. Undecodable messages are logged and skipped.
func (s *Source) Run(ctx context.Context) error {
	pubsub := s.rdb.Subscribe(ctx, s.cfg.channel)
	defer pubsub.Close()

	// Fail fast if the subscription never establishes.
	if _, err := pubsub.Receive(ctx); err != nil {
		return errors.NewSubscriptionError(s.cfg.channel, "redis subscribe failed", err)
	}

	s.cfg.logger.Debug().Str("channel", s.cfg.channel).Msg("Redis event source running")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.NewSubscriptionError(s.cfg.channel, "redis subscription closed", errors.ErrClosed)
			}
			ev, err := Decode([]byte(msg.Payload))
			if err != nil {
				s.cfg.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("Undecodable event payload")
				continue
			}
			s.bus.Publish(msg.Channel, ev)
		}
	}
}

// Publisher emits change notifications onto a Redis channel.
type Publisher struct {
	rdb *redis.Client
	cfg *config
}

// NewPublisher builds a Publisher.
func NewPublisher(rdb *redis.Client, opts ...Option) (*Publisher, error) {
	if rdb == nil {
		return nil, errors.NewConfigError("redispub", "redis client cannot be nil", errors.ErrInvalidInput)
	}
	return &Publisher{rdb: rdb, cfg: newConfig(opts...)}, nil
}

// Publish marshals the event and pushes it to the configured channel.
func (p *Publisher) Publish(ctx context.Context, event events.DataChangedEvent) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, p.cfg.channel, payload).Err(); err != nil {
		return errors.NewSubscriptionError(p.cfg.channel, "redis publish failed", err)
	}
	return nil
}

// Encode marshals an event to its wire form.
func Encode(event events.DataChangedEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, errors.NewValidationError("event", event, "event is not serializable")
	}
	return payload, nil
}

// Decode unmarshals an event from its wire form.
func Decode(payload []byte) (events.DataChangedEvent, error) {
	var ev events.DataChangedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return events.DataChangedEvent{}, err
	}
	return ev, nil
}
