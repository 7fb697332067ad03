package app

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/openflow/datasync"
	"github.com/openflow/datasync/pkg/events"
	"github.com/openflow/datasync/pkg/querycache"
	"github.com/openflow/datasync/pkg/querykeys"
	"github.com/openflow/datasync/pkg/transport/redispub"
	"github.com/openflow/datasync/pkg/transport/ws"
)

// NewWatchCommand creates the watch command. It connects to an event
// transport, runs a sync session against an in-memory cache, and logs
// every cache action until interrupted.
func (a *App) NewWatchCommand() *cobra.Command {
	var entity string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch data-changed events and mirror them into a local cache",
		Long: `Watch subscribes to the configured event transport and applies each
data-changed notification to an in-memory query cache, logging every
event as it arrives. With --entity it runs a scoped session that only
reacts to one entity type and skips optimistic updates.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runWatch(cmd.Context(), entity)
		},
	}

	cmd.Flags().StringVar(&entity, "entity", "", "only react to events for this entity type")
	cmd.Flags().StringVar(&a.config.Transport, "transport", a.config.Transport, "event transport: ws or redis")
	cmd.Flags().StringVar(&a.config.ServerURL, "server-url", a.config.ServerURL, "WebSocket endpoint URL")
	cmd.Flags().StringVar(&a.config.RedisURL, "redis-url", a.config.RedisURL, "Redis connection URL")
	cmd.Flags().StringVar(&a.config.KeymapFile, "keymap", a.config.KeymapFile, "YAML file with extra entity-to-key mappings")
	cmd.Flags().BoolVar(&a.config.OptimisticUpdates, "optimistic-updates", a.config.OptimisticUpdates, "write event payloads directly into the cache")

	return cmd
}

func (a *App) runWatch(ctx context.Context, entity string) error {
	keys, err := a.loadKeymap()
	if err != nil {
		return err
	}

	bus := events.NewBus()
	cache := querycache.NewMemory()

	client, err := datasync.New(
		datasync.WithChannel(bus),
		datasync.WithCache(cache),
		datasync.WithKeyMap(keys),
		datasync.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	logEvent := func(ev events.DataChangedEvent) {
		a.logger.Info().
			Str("entity", ev.Entity).
			Str("action", ev.Action.String()).
			Str("id", ev.ID).
			Bool("has_data", ev.HasData()).
			Msg("Event received")
	}

	if entity != "" {
		if _, err := client.StartEntitySync(entity, logEvent); err != nil {
			return err
		}
	} else {
		err := client.StartGlobalSync(
			datasync.WithOptimisticUpdates(a.config.OptimisticUpdates),
			datasync.WithOnDataChange(logEvent),
		)
		if err != nil {
			return err
		}
	}

	a.logger.Info().
		Str("transport", a.config.Transport).
		Msg("Watching for data-changed events")

	err = a.runTransport(ctx, bus)

	a.logger.Info().
		Uint64("event_count", client.EventCount()).
		Int("cached_entries", cache.Len()).
		Msg("Watch session finished")
	return err
}

// runTransport pumps events from the configured transport into the bus
// until ctx is canceled or the connection fails.
func (a *App) runTransport(ctx context.Context, bus events.Publisher) error {
	switch a.config.Transport {
	case TransportWebSocket:
		opts := []ws.Option{ws.WithLogger(a.logger)}
		if a.config.EventChannel != "" {
			opts = append(opts, ws.WithChannels(a.config.EventChannel))
		}
		source, err := ws.Dial(ctx, a.config.ServerURL, bus, opts...)
		if err != nil {
			return err
		}
		defer source.Close()

		select {
		case <-ctx.Done():
			return nil
		case <-source.Done():
			return source.Err()
		}

	case TransportRedis:
		redisOpts, err := redis.ParseURL(a.config.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
		rdb := redis.NewClient(redisOpts)
		defer rdb.Close()

		opts := []redispub.Option{redispub.WithLogger(a.logger)}
		if a.config.EventChannel != "" {
			opts = append(opts, redispub.WithChannel(a.config.EventChannel))
		}
		source, err := redispub.NewSource(rdb, bus, opts...)
		if err != nil {
			return err
		}
		if err := source.Run(ctx); err != nil && !stderrors.Is(err, context.Canceled) {
			return err
		}
		return nil

	default:
		return fmt.Errorf("unknown transport %q (expected %q or %q)",
			a.config.Transport, TransportWebSocket, TransportRedis)
	}
}

// loadKeymap resolves the effective entity-to-key map: defaults merged
// with the optional keymap file.
func (a *App) loadKeymap() (querykeys.Map, error) {
	keys := querykeys.Default()
	if a.config.KeymapFile == "" {
		return keys, nil
	}

	extra, err := querykeys.Load(a.config.KeymapFile)
	if err != nil {
		return nil, err
	}
	return keys.Merge(extra), nil
}
