// Package stream applies a streamed model response to a message as it
// arrives.
package stream

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"astra/internal/events"
	"astra/internal/logging"
	"astra/internal/types"
)

// Tool names the model may call.
const (
	ToolManageTasks = "manage_tasks"
	ToolLogTerminal = "log_terminal"
)

// Target is the message container being streamed into.
type Target interface {
	Update(id string, fn func(*types.Message)) error
}

// Options configures Ingest.
type Options struct {
	// Bus receives tool calls as named events. Optional.
	Bus *events.Bus
	// Observer is called with a copy of the message after every change.
	Observer func(types.Message)
}

// Ingest consumes seq and applies every chunk to the message id in target,
// in arrival order. Text fragments are appended, citation links appended
// without deduplication and tool calls published on the bus. When the
// sequence ends the generating flag is cleared. A failure replaces the text
// with a readable description, sets the error flag and is returned.
func Ingest(ctx context.Context, seq iter.Seq2[types.Chunk, error], target Target, id string, opts Options) (string, error) {
	timer := logging.StartTimer(logging.CategoryStream, "ingest "+id)
	defer timer.Stop()

	var b strings.Builder
	chunks := 0

	apply := func(fn func(*types.Message)) error {
		var snapshot types.Message
		err := target.Update(id, func(m *types.Message) {
			fn(m)
			snapshot = m.Clone()
		})
		if err == nil && opts.Observer != nil {
			opts.Observer(snapshot)
		}
		return err
	}

	fail := func(err error) (string, error) {
		logging.StreamError("stream %s failed after %d chunks: %v", id, chunks, err)
		desc := Describe(err)
		_ = apply(func(m *types.Message) {
			m.Text = desc
			m.IsError = true
			m.IsGenerating = false
		})
		return b.String(), err
	}

	for chunk, err := range seq {
		if err != nil {
			return fail(err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fail(ctxErr)
		}
		chunks++

		if chunk.Text != "" || len(chunk.Links) > 0 {
			b.WriteString(chunk.Text)
			if err := apply(func(m *types.Message) {
				m.Text += chunk.Text
				m.GroundingLinks = append(m.GroundingLinks, chunk.Links...)
			}); err != nil {
				return b.String(), fmt.Errorf("failed to apply chunk: %w", err)
			}
		}

		for _, call := range chunk.ToolCalls {
			dispatch(opts.Bus, call)
		}
	}

	logging.StreamDebug("stream %s complete: %d chunks, %d bytes", id, chunks, b.Len())
	if err := apply(func(m *types.Message) { m.IsGenerating = false }); err != nil {
		return b.String(), fmt.Errorf("failed to finish message: %w", err)
	}
	return b.String(), nil
}

// Describe turns a generation failure into text suitable for display.
func Describe(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "Generation was cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "The model took too long to respond. Please try again."
	default:
		return "Error: " + err.Error()
	}
}

func dispatch(bus *events.Bus, call types.ToolCall) {
	if bus == nil {
		return
	}
	switch call.Name {
	case ToolManageTasks:
		bus.Publish(events.NewTaskEvent(argString(call.Args, "action"), argString(call.Args, "task"), argString(call.Args, "id")))
	case ToolLogTerminal:
		bus.Publish(events.NewTerminalEvent(argString(call.Args, "command"), argString(call.Args, "output")))
	default:
		logging.Get(logging.CategoryStream).Warn("ignoring unknown tool call %q", call.Name)
	}
}

func argString(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
