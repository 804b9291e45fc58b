package stream

import (
	"context"
	"errors"
	"iter"
	"testing"

	"astra/internal/conversation"
	"astra/internal/events"
	"astra/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqOf(chunks []types.Chunk, failAfter int, failErr error) iter.Seq2[types.Chunk, error] {
	return func(yield func(types.Chunk, error) bool) {
		for i, c := range chunks {
			if failErr != nil && i == failAfter {
				yield(types.Chunk{}, failErr)
				return
			}
			if !yield(c, nil) {
				return
			}
		}
	}
}

func newTarget() *conversation.Store {
	s := conversation.New()
	s.Append(types.Message{ID: "m1", Role: types.RoleModel, IsGenerating: true})
	return s
}

func TestIngestConcatenatesInOrder(t *testing.T) {
	s := newTarget()
	var seen []string
	chunks := []types.Chunk{{Text: "Hel"}, {Text: "lo, "}, {Text: ""}, {Text: "world"}}

	text, err := Ingest(context.Background(), seqOf(chunks, 0, nil), s, "m1", Options{
		Observer: func(m types.Message) { seen = append(seen, m.Text) },
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", text)

	msg, _ := s.Get("m1")
	assert.Equal(t, "Hello, world", msg.Text)
	assert.False(t, msg.IsGenerating)
	assert.False(t, msg.IsError)
	assert.Equal(t, []string{"Hel", "Hello, ", "Hello, world", "Hello, world"}, seen)
}

func TestIngestAppendsLinksWithoutDedup(t *testing.T) {
	s := newTarget()
	link := types.GroundingLink{URI: "https://go.dev", Title: "Go"}
	chunks := []types.Chunk{{Text: "a", Links: []types.GroundingLink{link}}, {Links: []types.GroundingLink{link}}}

	_, err := Ingest(context.Background(), seqOf(chunks, 0, nil), s, "m1", Options{})
	require.NoError(t, err)

	msg, _ := s.Get("m1")
	assert.Equal(t, []types.GroundingLink{link, link}, msg.GroundingLinks)
}

func TestIngestFailureMarksError(t *testing.T) {
	s := newTarget()
	chunks := []types.Chunk{{Text: "partial"}, {Text: "never"}}

	text, err := Ingest(context.Background(), seqOf(chunks, 1, errors.New("quota exceeded")), s, "m1", Options{})
	require.Error(t, err)
	assert.Equal(t, "partial", text)

	msg, _ := s.Get("m1")
	assert.True(t, msg.IsError)
	assert.False(t, msg.IsGenerating)
	assert.Equal(t, "Error: quota exceeded", msg.Text)
}

func TestIngestCancelled(t *testing.T) {
	s := newTarget()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Ingest(ctx, seqOf([]types.Chunk{{Text: "x"}}, 0, nil), s, "m1", Options{})
	assert.ErrorIs(t, err, context.Canceled)
	msg, _ := s.Get("m1")
	assert.Equal(t, "Generation was cancelled.", msg.Text)
}

func TestIngestDispatchesToolCalls(t *testing.T) {
	s := newTarget()
	bus := events.NewBus()
	var got []events.Event
	bus.Subscribe(events.TaskEvent, func(e events.Event) { got = append(got, e) })
	bus.Subscribe(events.TerminalEvent, func(e events.Event) { got = append(got, e) })

	chunks := []types.Chunk{{ToolCalls: []types.ToolCall{
		{Name: ToolManageTasks, Args: map[string]any{"action": "add", "task": "deploy"}},
		{Name: ToolLogTerminal, Args: map[string]any{"command": "go version", "output": "go1.24"}},
		{Name: "unknown"},
	}}}

	_, err := Ingest(context.Background(), seqOf(chunks, 0, nil), s, "m1", Options{Bus: bus})
	require.NoError(t, err)
	require.Len(t, got, 2)

	task, err := got[0].Task()
	require.NoError(t, err)
	assert.Equal(t, "deploy", task.Task)
	term, err := got[1].Terminal()
	require.NoError(t, err)
	assert.Equal(t, "go1.24", term.Output)
}

func TestIngestUnknownMessage(t *testing.T) {
	s := conversation.New()
	_, err := Ingest(context.Background(), seqOf([]types.Chunk{{Text: "x"}}, 0, nil), s, "ghost", Options{})
	assert.ErrorIs(t, err, conversation.ErrMessageNotFound)
}
