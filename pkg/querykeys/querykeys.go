// Package querykeys maps backend entity names to the cache-key prefixes
// that must be invalidated when that entity changes. It decouples the
// backend's wire vocabulary from the cache's key taxonomy: the backend
// emits "worktree", but three cache namespaces (worktrees, worktree, git)
// go stale when one changes.
package querykeys

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/openflow/datasync/pkg/errors"
)

// Map is the entity to cache-key-prefix table. Prefix order is preserved
// so invalidation order is deterministic.
type Map map[string][]string

// Default returns the key map for the current backend's entity vocabulary.
func Default() Map {
	return Map{
		"project":         {"projects", "project"},
		"task":            {"tasks", "task"},
		"chat":            {"chats", "chat"},
		"message":         {"messages", "message"},
		"executorProfile": {"executorProfiles", "executorProfile"},
		"setting":         {"settings", "setting"},
		"process":         {"processes", "process"},
		"worktree":        {"worktrees", "worktree", "git"},
	}
}

// Resolve returns the cache-key prefixes for an entity. Entities absent
// from the map resolve to the entity name itself, so the result is never
// empty and never an error: new backend entity types work without a
// client release.
func (m Map) Resolve(entity string) []string {
	if prefixes, ok := m[entity]; ok {
		out := make([]string, len(prefixes))
		copy(out, prefixes)
		return out
	}
	return []string{entity}
}

// Validate checks the configuration invariant: every entity maps to a
// non-empty list of non-empty prefixes.
func (m Map) Validate() error {
	for entity, prefixes := range m {
		if entity == "" {
			return errors.NewValidationError("entity", entity, "entity name cannot be empty")
		}
		if len(prefixes) == 0 {
			return errors.NewValidationError(entity, prefixes, "must map to at least one prefix")
		}
		for _, p := range prefixes {
			if p == "" {
				return errors.NewValidationError(entity, prefixes, "prefix cannot be empty")
			}
		}
	}
	return nil
}

// Merge returns a copy of m with every entry of other laid over it.
// Used to extend the default table from configuration.
func (m Map) Merge(other Map) Map {
	out := make(Map, len(m)+len(other))
	for entity, prefixes := range m {
		out[entity] = append([]string(nil), prefixes...)
	}
	for entity, prefixes := range other {
		out[entity] = append([]string(nil), prefixes...)
	}
	return out
}

// Load reads a key map from a YAML file of the form:
//
//	task: [tasks, task]
//	worktree: [worktrees, worktree, git]
//
// The loaded map is validated before being returned.
func Load(path string) (Map, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError("querykeys", fmt.Sprintf("cannot read %s", path), err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML key map.
func Parse(raw []byte) (Map, error) {
	var m Map
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, errors.NewConfigError("querykeys", "cannot parse key map", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
