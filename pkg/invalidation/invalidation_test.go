package invalidation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/openflow/datasync/pkg/errors"
	"github.com/openflow/datasync/pkg/events"
	"github.com/openflow/datasync/pkg/logging"
	"github.com/openflow/datasync/pkg/querycache"
)

func newExecutor(t *testing.T) (*Executor, *querycache.Recorder) {
	t.Helper()
	rec := querycache.NewRecorder()
	return New(rec, logging.NewNopLogger()), rec
}

func TestApplyUpdateWithOptimisticWrite(t *testing.T) {
	// Scenario: task updated with data and default options.
	exec, rec := newExecutor(t)

	ev := events.DataChangedEvent{
		Entity: "task",
		Action: events.ActionUpdated,
		ID:     "t1",
		Data:   map[string]any{"title": "X"},
	}
	require.NoError(t, exec.Apply(ev, []string{"tasks", "task"}, Options{OptimisticUpdate: true}))

	ops := rec.Ops()
	require.Len(t, ops, 3)
	assert.Equal(t, "invalidate", ops[0].Kind)
	assert.Equal(t, querycache.Key{"tasks"}, ops[0].Key)
	assert.Equal(t, "invalidate", ops[1].Kind)
	assert.Equal(t, querycache.Key{"task"}, ops[1].Key)
	assert.Equal(t, "set", ops[2].Kind)
	assert.Equal(t, querycache.Key{"task", "t1"}, ops[2].Key)
	assert.Equal(t, map[string]any{"title": "X"}, ops[2].Value)
}

func TestApplyDeleteRemovesPointSlot(t *testing.T) {
	// Scenario: chat deleted. Invalidation still runs, the point slot is
	// removed, and no optimistic write happens even with data attached.
	exec, rec := newExecutor(t)

	ev := events.DataChangedEvent{
		Entity: "chat",
		Action: events.ActionDeleted,
		ID:     "c9",
		Data:   map[string]any{"stale": true},
	}
	require.NoError(t, exec.Apply(ev, []string{"chats", "chat"}, Options{OptimisticUpdate: true}))

	assert.Len(t, rec.OpsOf("invalidate"), 2)
	assert.Empty(t, rec.OpsOf("set"))

	removes := rec.OpsOf("remove")
	require.Len(t, removes, 1)
	assert.Equal(t, querycache.Key{"chat", "c9"}, removes[0].Key)
}

func TestApplyCreatedFallbackEntity(t *testing.T) {
	// Scenario: unmapped entity with a single fallback key.
	exec, rec := newExecutor(t)

	ev := events.Created("unknownThing", "u1", map[string]any{})
	require.NoError(t, exec.Apply(ev, []string{"unknownThing"}, Options{OptimisticUpdate: true}))

	inv := rec.OpsOf("invalidate")
	require.Len(t, inv, 1)
	assert.Equal(t, querycache.Key{"unknownThing"}, inv[0].Key)

	sets := rec.OpsOf("set")
	require.Len(t, sets, 1)
	assert.Equal(t, querycache.Key{"unknownThing", "u1"}, sets[0].Key)
}

func TestApplyOptimisticWriteGuard(t *testing.T) {
	tests := []struct {
		name    string
		action  events.Action
		data    any
		opt     bool
		wantSet bool
	}{
		{name: "created with data", action: events.ActionCreated, data: map[string]any{}, opt: true, wantSet: true},
		{name: "updated with data", action: events.ActionUpdated, data: map[string]any{}, opt: true, wantSet: true},
		{name: "deleted never writes", action: events.ActionDeleted, data: map[string]any{}, opt: true, wantSet: false},
		{name: "no data", action: events.ActionUpdated, opt: true, wantSet: false},
		{name: "optimistic disabled", action: events.ActionUpdated, data: map[string]any{}, opt: false, wantSet: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, rec := newExecutor(t)
			ev := events.DataChangedEvent{Entity: "task", Action: tt.action, ID: "t1", Data: tt.data}
			require.NoError(t, exec.Apply(ev, []string{"tasks"}, Options{OptimisticUpdate: tt.opt}))

			if tt.wantSet {
				assert.Len(t, rec.OpsOf("set"), 1)
			} else {
				assert.Empty(t, rec.OpsOf("set"))
			}
			// invalidation happens regardless
			assert.NotEmpty(t, rec.OpsOf("invalidate"))
		})
	}
}

func TestInvalidateKeysDedupesPreservingOrder(t *testing.T) {
	exec, rec := newExecutor(t)

	require.NoError(t, exec.InvalidateKeys([]string{"tasks", "task", "tasks", "git", "task"}))

	inv := rec.OpsOf("invalidate")
	require.Len(t, inv, 3)
	assert.Equal(t, querycache.Key{"tasks"}, inv[0].Key)
	assert.Equal(t, querycache.Key{"task"}, inv[1].Key)
	assert.Equal(t, querycache.Key{"git"}, inv[2].Key)
}

func TestApplyPropagatesCacheErrors(t *testing.T) {
	rec := querycache.NewRecorder()
	rec.Err = assert.AnError
	exec := New(rec, logging.NewNopLogger())

	err := exec.Apply(events.Created("task", "t1", map[string]any{}), []string{"tasks"}, Options{OptimisticUpdate: true})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCacheError(err))
}

func TestApplyAgainstMemoryCache(t *testing.T) {
	mem := querycache.NewMemory()
	require.NoError(t, mem.SetQueryData(querycache.Key{"tasks", "proj-1"}, []string{"t1"}))
	exec := New(mem, logging.NewNopLogger())

	ev := events.Updated("task", "t1", map[string]any{"title": "X"})
	require.NoError(t, exec.Apply(ev, []string{"tasks", "task"}, Options{OptimisticUpdate: true}))

	// list went stale, point slot is fresh and readable
	assert.True(t, mem.IsStale(querycache.Key{"tasks", "proj-1"}))
	v, ok := mem.Get(querycache.Key{"task", "t1"})
	require.True(t, ok)
	assert.Equal(t, map[string]any{"title": "X"}, v)

	// deletion drops the slot
	require.NoError(t, exec.Apply(events.Deleted("task", "t1"), []string{"tasks", "task"}, Options{OptimisticUpdate: true}))
	_, ok = mem.Get(querycache.Key{"task", "t1"})
	assert.False(t, ok)
}
