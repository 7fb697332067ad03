// Package events defines the change-notification vocabulary shared by the
// backend and every connected client, and the in-process bus that fans
// notifications out to sync controllers.
//
// A DataChangedEvent is self-contained: processing one must never require a
// network round-trip back to the backend.
package events

import (
	"fmt"
	"strings"

	"github.com/agentstation/utc"
)

// ChannelDataChanged is the channel on which entity CRUD notifications are
// delivered.
const ChannelDataChanged = "data-changed"

// ChannelWildcard receives every published event regardless of channel.
// Useful for debugging and diagnostics.
const ChannelWildcard = "*"

// Known entity names emitted by the backend. The entity vocabulary is
// open-ended: these constants cover the current backend, but events carrying
// names outside this list are still processed (see querykeys fallback).
const (
	EntityProject         = "project"
	EntityTask            = "task"
	EntityChat            = "chat"
	EntityMessage         = "message"
	EntityExecutorProfile = "executorProfile"
	EntitySetting         = "setting"
	EntityProcess         = "process"
	EntityWorktree        = "worktree"
)

// KnownEntities returns the entity names the current backend emits.
func KnownEntities() []string {
	return []string{
		EntityProject,
		EntityTask,
		EntityChat,
		EntityMessage,
		EntityExecutorProfile,
		EntitySetting,
		EntityProcess,
		EntityWorktree,
	}
}

// Action is the terminal state of the mutation that produced an event.
type Action string

// Actions an entity mutation can report.
const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// ParseAction parses an action string. Both the past-tense wire form and
// the bare verb are accepted.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "created", "create":
		return ActionCreated, nil
	case "updated", "update":
		return ActionUpdated, nil
	case "deleted", "delete":
		return ActionDeleted, nil
	default:
		return "", fmt.Errorf("invalid data action: %q", s)
	}
}

// Valid reports whether the action is one of the three known values.
func (a Action) Valid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionDeleted:
		return true
	default:
		return false
	}
}

// IsDeleted reports whether this is a delete action.
func (a Action) IsDeleted() bool { return a == ActionDeleted }

// HasData reports whether an event with this action carries entity data.
// Delete events do not include the entity payload.
func (a Action) HasData() bool { return a != ActionDeleted }

// String implements fmt.Stringer.
func (a Action) String() string { return string(a) }

// DataChangedEvent is emitted when entity data changes. It is the primary
// unit of cache invalidation across all connected clients: the backend
// broadcasts one for every CRUD operation so each client can update its
// local cache without refetching.
type DataChangedEvent struct {
	// Entity is the logical type of the record that changed.
	Entity string `json:"entity"`

	// Action is what happened to the record.
	Action Action `json:"action"`

	// ID identifies the affected record, stable within an entity type.
	ID string `json:"id"`

	// Data is the full or partial record snapshot post-mutation.
	// Present for created/updated, nil for deleted.
	Data any `json:"data,omitempty"`

	// Timestamp is when the change occurred, if the backend stamped it.
	Timestamp *utc.Time `json:"timestamp,omitempty"`

	// ParentID links hierarchical entities to their owner
	// (e.g. task.projectId, message.chatId).
	ParentID string `json:"parentId,omitempty"`
}

// Created builds a created event stamped with the current time.
func Created(entity, id string, data any) DataChangedEvent {
	now := utc.Now()
	return DataChangedEvent{
		Entity:    entity,
		Action:    ActionCreated,
		ID:        id,
		Data:      data,
		Timestamp: &now,
	}
}

// Updated builds an updated event stamped with the current time.
func Updated(entity, id string, data any) DataChangedEvent {
	now := utc.Now()
	return DataChangedEvent{
		Entity:    entity,
		Action:    ActionUpdated,
		ID:        id,
		Data:      data,
		Timestamp: &now,
	}
}

// Deleted builds a deleted event. Delete events never carry data.
func Deleted(entity, id string) DataChangedEvent {
	now := utc.Now()
	return DataChangedEvent{
		Entity:    entity,
		Action:    ActionDeleted,
		ID:        id,
		Timestamp: &now,
	}
}

// WithParent returns a copy of the event with the parent ID set.
func (e DataChangedEvent) WithParent(parentID string) DataChangedEvent {
	e.ParentID = parentID
	return e
}

// HasData reports whether the event carries a usable record snapshot.
func (e DataChangedEvent) HasData() bool {
	return e.Data != nil && e.Action.HasData()
}
