package conversation

import (
	"errors"
	"testing"

	"astra/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(id string, role types.Role, text string) types.Message {
	return types.Message{ID: id, Role: role, Text: text}
}

func TestAppendAndUpdate(t *testing.T) {
	s := New()
	changes := 0
	s.OnChange(func() { changes++ })

	s.Append(msg("1", types.RoleUser, "hi"))
	s.Append(msg("2", types.RoleModel, ""))
	require.NoError(t, s.Update("2", func(m *types.Message) { m.Text += "hello" }))

	got, ok := s.Get("2")
	require.True(t, ok)
	assert.Equal(t, "hello", got.Text)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 3, changes)

	err := s.Update("missing", func(*types.Message) {})
	assert.True(t, errors.Is(err, ErrMessageNotFound))
}

func TestMessagesReturnsCopy(t *testing.T) {
	s := New()
	s.Append(types.Message{ID: "1", GroundingLinks: []types.GroundingLink{{URI: "a"}}})

	out := s.Messages()
	out[0].Text = "mutated"
	out[0].GroundingLinks[0].URI = "b"

	got, _ := s.Get("1")
	assert.Equal(t, "", got.Text)
	assert.Equal(t, "a", got.GroundingLinks[0].URI)
}

func TestBookmarks(t *testing.T) {
	s := New()
	s.Append(msg("1", types.RoleUser, "a"))
	s.Append(msg("2", types.RoleModel, "b"))

	require.NoError(t, s.ToggleBookmark("2"))
	marked := s.Bookmarked()
	require.Len(t, marked, 1)
	assert.Equal(t, "2", marked[0].ID)

	require.NoError(t, s.ToggleBookmark("2"))
	assert.Empty(t, s.Bookmarked())
}

func TestCopyContext(t *testing.T) {
	s := New()
	s.Append(msg("1", types.RoleUser, "question"))
	s.Append(msg("2", types.RoleModel, "answer"))
	s.Append(msg("3", types.RoleModel, "follow-up"))

	got, err := s.CopyContext(1)
	require.NoError(t, err)
	assert.Equal(t, "[USER]: question\n\n[MODEL]: answer", got)

	got, err = s.CopyContext(2)
	require.NoError(t, err)
	assert.Equal(t, "[MODEL]: follow-up", got)

	_, err = s.CopyContext(5)
	assert.Error(t, err)
}

func TestGenerationGuard(t *testing.T) {
	s := New()
	require.NoError(t, s.BeginGeneration())
	assert.True(t, s.IsGenerating())
	assert.ErrorIs(t, s.BeginGeneration(), ErrGenerationInProgress)

	s.EndGeneration()
	assert.False(t, s.IsGenerating())
	assert.NoError(t, s.BeginGeneration())
}

func TestResetAndReplace(t *testing.T) {
	s := New()
	s.Replace([]types.Message{msg("1", types.RoleUser, "x"), msg("2", types.RoleModel, "y")})
	assert.Equal(t, 2, s.Len())
	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.NotNil(t, s.Messages())
}
