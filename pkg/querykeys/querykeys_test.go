package querykeys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/openflow/datasync/pkg/errors"
)

func TestDefaultMapping(t *testing.T) {
	m := Default()

	tests := []struct {
		entity string
		want   []string
	}{
		{entity: "project", want: []string{"projects", "project"}},
		{entity: "task", want: []string{"tasks", "task"}},
		{entity: "chat", want: []string{"chats", "chat"}},
		{entity: "message", want: []string{"messages", "message"}},
		{entity: "executorProfile", want: []string{"executorProfiles", "executorProfile"}},
		{entity: "setting", want: []string{"settings", "setting"}},
		{entity: "process", want: []string{"processes", "process"}},
		{entity: "worktree", want: []string{"worktrees", "worktree", "git"}},
	}

	for _, tt := range tests {
		t.Run(tt.entity, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Resolve(tt.entity))
		})
	}
}

func TestResolveFallback(t *testing.T) {
	m := Default()

	// Unmapped entities resolve to themselves, so resolution is total.
	assert.Equal(t, []string{"unknownThing"}, m.Resolve("unknownThing"))
	assert.Equal(t, []string{"workflowTemplate"}, m.Resolve("workflowTemplate"))

	// Even the empty string yields a non-empty set.
	got := m.Resolve("")
	require.Len(t, got, 1)
}

func TestResolveReturnsCopy(t *testing.T) {
	m := Default()
	got := m.Resolve("task")
	got[0] = "mutated"
	assert.Equal(t, []string{"tasks", "task"}, m.Resolve("task"))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Default().Validate())

	assert.Error(t, Map{"task": {}}.Validate())
	assert.Error(t, Map{"task": {""}}.Validate())
	assert.Error(t, Map{"": {"tasks"}}.Validate())

	err := Map{"task": {}}.Validate()
	assert.True(t, pkgerrors.IsValidationError(err))
}

func TestMerge(t *testing.T) {
	base := Default()
	merged := base.Merge(Map{
		"workflowTemplate": {"workflowTemplates", "workflowTemplate"},
		"worktree":         {"worktrees"},
	})

	assert.Equal(t, []string{"workflowTemplates", "workflowTemplate"}, merged.Resolve("workflowTemplate"))
	assert.Equal(t, []string{"worktrees"}, merged.Resolve("worktree"))

	// base is untouched
	assert.Equal(t, []string{"worktrees", "worktree", "git"}, base.Resolve("worktree"))
}

func TestParse(t *testing.T) {
	m, err := Parse([]byte("task: [tasks, task]\nworktree:\n  - worktrees\n  - git\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"tasks", "task"}, m.Resolve("task"))
	assert.Equal(t, []string{"worktrees", "git"}, m.Resolve("worktree"))
}

func TestParseRejectsInvalid(t *testing.T) {
	_, err := Parse([]byte("task: []\n"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidationError(err))

	_, err = Parse([]byte("not yaml: ["))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keymap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chat: [chats, chat]\n"), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"chats", "chat"}, m.Resolve("chat"))

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
