package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"astra/internal/types"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData() types.SessionData {
	d := types.DefaultSessionData()
	d.Memory.Facts = []string{"prefers Go"}
	d.Tasks = []types.Task{{ID: "t1", Text: "ship", Completed: true}}
	d.Messages = []types.Message{{ID: "m1", Role: types.RoleUser, Text: "hi", Timestamp: 42}}
	d.TerminalLogs = []types.TerminalLog{{ID: "l1", Command: "ls", Output: "a", Timestamp: 7}}
	d.CustomStyle = "accent: #ff00ff"
	return d
}

func TestPatchMergeAndEmpty(t *testing.T) {
	assert.True(t, Patch{}.Empty())

	css := "x"
	tasks := []types.Task{{ID: "1"}}
	p := Patch{CustomStyle: &css}.Merge(Patch{Tasks: &tasks})
	assert.False(t, p.Empty())
	assert.Equal(t, "x", *p.CustomStyle)
	assert.Len(t, *p.Tasks, 1)
	assert.Nil(t, p.Memory)
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	_, err = s.LoadSession(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	data := sampleData()
	require.NoError(t, s.UpsertSession(ctx, "u1", FullPatch(data)))

	rec, err := s.LoadSession(ctx, "u1")
	require.NoError(t, err)
	if diff := cmp.Diff(data.Messages, *rec.Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, data.Memory, *rec.Memory)
	assert.Equal(t, data.SandboxConfig, *rec.SandboxConfig)
	assert.Equal(t, "accent: #ff00ff", *rec.CustomStyle)
	assert.WithinDuration(t, time.Now(), rec.UpdatedAt, time.Minute)
}

func TestSQLiteStore_PartialUpsertKeepsOtherColumns(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.UpsertSession(ctx, "u1", FullPatch(sampleData())))

	mem := types.UserMemory{Facts: []string{}}
	require.NoError(t, s.UpsertSession(ctx, "u1", Patch{Memory: &mem}))

	rec, err := s.LoadSession(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, rec.Memory.Facts)
	require.NotNil(t, rec.Tasks)
	assert.Equal(t, "ship", (*rec.Tasks)[0].Text)
}

func TestSQLiteStore_NullColumnsStayNil(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	css := ""
	require.NoError(t, s.UpsertSession(ctx, "u2", Patch{CustomStyle: &css}))
	rec, err := s.LoadSession(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, rec.Messages)
	assert.Nil(t, rec.Memory)
	require.NotNil(t, rec.CustomStyle)
	assert.Equal(t, "", *rec.CustomStyle)
}

func TestFirestoreFieldEncoding(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tasks := []types.Task{{ID: "a", Text: "b"}}
	doc, err := patchFields("u1", Patch{Tasks: &tasks}, now)
	require.NoError(t, err)
	assert.Equal(t, "u1", doc["user_id"])
	assert.NotContains(t, doc, ColMemory)

	rec := recordFromFields(doc)
	assert.Equal(t, now, rec.UpdatedAt)
	assert.Equal(t, tasks, *rec.Tasks)
	assert.Nil(t, rec.Memory)
}

func TestBoltStore_UserIDIsStable(t *testing.T) {
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "local.bolt"))
	require.NoError(t, err)

	id1, err := s.UserID()
	require.NoError(t, err)
	id2, err := s.UserID()
	require.NoError(t, err)
	assert.NotEmpty(t, id1)
	assert.Equal(t, id1, id2)

	v, ok, err := s.Get(KeyUserID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id1, v)
}

func TestBoltStore_SaveLoad(t *testing.T) {
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "local.bolt"))
	require.NoError(t, err)

	rec, err := s.Load()
	require.NoError(t, err)
	assert.True(t, rec.Empty())

	data := sampleData()
	require.NoError(t, s.Save(FullPatch(data)))

	rec, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, data.Tasks, *rec.Tasks)
	assert.Equal(t, data.TerminalLogs, *rec.TerminalLogs)
	assert.Equal(t, data.CustomStyle, *rec.CustomStyle)

	raw, ok, err := s.Get(KeyCSS)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "accent: #ff00ff", raw)
}

func TestBoltStore_CorruptKeySkipped(t *testing.T) {
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "local.bolt"))
	require.NoError(t, err)
	require.NoError(t, s.PutAll(map[string]string{KeyTasks: "{broken", KeyMemory: `{"facts":["a"]}`}))

	rec, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, rec.Tasks)
	assert.Equal(t, []string{"a"}, rec.Memory.Facts)
}
