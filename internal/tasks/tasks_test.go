package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddTrimsAndRejectsBlank(t *testing.T) {
	l := New()
	task, err := l.Add("  buy milk  ")
	require.NoError(t, err)
	assert.Equal(t, "buy milk", task.Text)
	assert.Len(t, task.ID, 8)
	assert.False(t, task.Completed)

	_, err = l.Add("   ")
	assert.ErrorIs(t, err, ErrEmptyTask)
	assert.Len(t, l.List(), 1)
}

func TestToggleTwiceRestores(t *testing.T) {
	l := New()
	task, err := l.Add("write tests")
	require.NoError(t, err)

	first, err := l.Toggle(task.ID)
	require.NoError(t, err)
	assert.True(t, first.Completed)

	second, err := l.Toggle(task.ID)
	require.NoError(t, err)
	assert.Equal(t, task, second)
}

func TestRemove(t *testing.T) {
	l := New()
	a, _ := l.Add("a")
	b, _ := l.Add("b")

	require.NoError(t, l.Remove(a.ID))
	got := l.List()
	require.Len(t, got, 1)
	assert.Equal(t, b.ID, got[0].ID)

	assert.ErrorIs(t, l.Remove("nope"), ErrTaskNotFound)
}

func TestApply(t *testing.T) {
	l := New()
	calls := 0
	l.OnChange(func() { calls++ })

	require.NoError(t, l.Apply(ActionAdd, "from event", ""))
	id := l.List()[0].ID

	require.NoError(t, l.Apply(ActionComplete, "", id))
	assert.True(t, l.List()[0].Completed)
	require.NoError(t, l.Apply(ActionComplete, "", id))
	assert.False(t, l.List()[0].Completed)

	require.NoError(t, l.Apply(ActionRemove, "", id))
	assert.Empty(t, l.List())
	assert.Equal(t, 4, calls)

	assert.Error(t, l.Apply("archive", "", id))
	assert.ErrorIs(t, l.Apply(ActionToggle, "", "missing"), ErrTaskNotFound)
}
