// Package invalidation turns one change notification into the cache
// actions that keep a client's query cache consistent: prefix
// invalidation, an optional optimistic point write, and point removal for
// deletions.
package invalidation

import (
	"github.com/rs/zerolog"

	"github.com/openflow/datasync/pkg/errors"
	"github.com/openflow/datasync/pkg/events"
	"github.com/openflow/datasync/pkg/logging"
	"github.com/openflow/datasync/pkg/querycache"
)

// Options controls how an event is applied.
type Options struct {
	// OptimisticUpdate writes the event's data straight into the point
	// slot [entity, id] so reads are consistent before the invalidated
	// queries refetch. The point slot may briefly diverge from what a
	// refetched list query would show; the lists are invalidated in the
	// same pass and reconcile on next read.
	OptimisticUpdate bool
}

// Executor applies resolved cache actions against a cache.
type Executor struct {
	cache  querycache.Cache
	logger *zerolog.Logger
}

// New creates an executor for the given cache. A nil logger falls back to
// the default logger.
func New(cache querycache.Cache, logger *zerolog.Logger) *Executor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Executor{cache: cache, logger: logger}
}

// Apply performs the cache actions for one event, in order:
//
//  1. Invalidate every resolved key prefix. Unconditional, for every
//     action including deleted: deletions still change list membership.
//  2. If opts.OptimisticUpdate and the event carries data and is not a
//     deletion, write the data into the [entity, id] slot.
//  3. If the event is a deletion, remove the [entity, id] slot entirely.
//
// Only failures of the cache itself abort the sequence; they are returned
// because masking them would leave the cache silently inconsistent.
func (e *Executor) Apply(event events.DataChangedEvent, keys []string, opts Options) error {
	if err := e.InvalidateKeys(keys); err != nil {
		return err
	}

	slot := querycache.Key{event.Entity, event.ID}

	if opts.OptimisticUpdate && event.HasData() {
		e.logger.Trace().
			Str("entity", event.Entity).
			Str("id", event.ID).
			Msg("Optimistic cache write")
		if err := e.cache.SetQueryData(slot, event.Data); err != nil {
			return errors.WrapCache("set", slot, err)
		}
	}

	if event.Action.IsDeleted() {
		e.logger.Trace().
			Str("entity", event.Entity).
			Str("id", event.ID).
			Msg("Removing deleted record from cache")
		if err := e.cache.RemoveQueries(slot); err != nil {
			return errors.WrapCache("remove", slot, err)
		}
	}

	return nil
}

// InvalidateKeys invalidates each key prefix exactly once, preserving
// order. Duplicate prefixes in keys are collapsed.
func (e *Executor) InvalidateKeys(keys []string) error {
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		prefix := querycache.Key{k}
		if err := e.cache.Invalidate(prefix); err != nil {
			return errors.WrapCache("invalidate", prefix, err)
		}
	}
	return nil
}
