// ABOUTME: Tests for the JSON-backed task store
// ABOUTME: Covers upsert idempotence, cancellation, removal, and corrupt file recovery

package task

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore(afero.NewMemMapFs(), "/data/scheduled_tasks.json")
}

func TestStore_UpsertIdempotent(t *testing.T) {
	s := newTestStore()

	tk := Task{ID: "t1", Trigger: TriggerInterval, Script: ScriptShell, Body: "echo hi", IntervalSeconds: 60}
	require.NoError(t, s.Upsert(tk))
	require.NoError(t, s.Upsert(tk))

	tasks := s.List()
	require.Len(t, tasks, 1, "upserting the same record twice keeps one entry")
	assert.Equal(t, "t1", tasks[0].ID)
}

func TestStore_UpsertReplaces(t *testing.T) {
	s := newTestStore()

	require.NoError(t, s.Upsert(Task{ID: "t1", Trigger: TriggerInterval, Body: "echo old", IntervalSeconds: 60}))
	require.NoError(t, s.Upsert(Task{ID: "t1", Trigger: TriggerInterval, Body: "echo new", IntervalSeconds: 120}))

	got, err := s.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "echo new", got.Body)
	assert.Equal(t, 120, got.IntervalSeconds)
}

func TestStore_GetNotFound(t *testing.T) {
	s := newTestStore()
	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Remove(t *testing.T) {
	s := newTestStore()

	require.NoError(t, s.Upsert(Task{ID: "t1", Trigger: TriggerOnce}))
	require.NoError(t, s.Upsert(Task{ID: "t2", Trigger: TriggerInterval, IntervalSeconds: 60}))

	require.NoError(t, s.Remove("t1"))
	assert.Len(t, s.List(), 1)

	// Removing an absent id is fine
	require.NoError(t, s.Remove("t1"))
}

func TestStore_Cancel(t *testing.T) {
	s := newTestStore()

	require.NoError(t, s.Upsert(Task{ID: "t1", Trigger: TriggerCron, CronExpression: "0 3 * * *"}))
	require.NoError(t, s.Cancel("t1"))

	got, err := s.Get("t1")
	require.NoError(t, err)
	assert.True(t, got.Cancelled)
}

func TestStore_MarkRun(t *testing.T) {
	s := newTestStore()

	require.NoError(t, s.Upsert(Task{ID: "t1", Trigger: TriggerInterval, IntervalSeconds: 60}))

	at := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	require.NoError(t, s.MarkRun("t1", at))

	got, err := s.Get("t1")
	require.NoError(t, err)
	require.NotNil(t, got.LastRun)
	assert.True(t, got.LastRun.Equal(at))
}

func TestStore_CorruptFileTreatedAsEmpty(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/scheduled_tasks.json", []byte("[{broken"), 0o600))

	s := NewStore(fs, "/data/scheduled_tasks.json")
	assert.Empty(t, s.List())

	require.NoError(t, s.Upsert(Task{ID: "t1", Trigger: TriggerImmediate}))
	assert.Len(t, s.List(), 1)
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewStore(fs, "/data/scheduled_tasks.json")

	require.NoError(t, s.Upsert(Task{ID: "t1", Trigger: TriggerInterval, IntervalSeconds: 60}))

	s2 := NewStore(fs, "/data/scheduled_tasks.json")
	tasks := s2.List()
	require.Len(t, tasks, 1)
	assert.Equal(t, "t1", tasks[0].ID)
}
