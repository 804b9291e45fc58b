package main

import (
	"fmt"
	"strings"

	"astra/internal/events"
	"astra/internal/tasks"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var emitTaskID string

// emitCmd posts events to a running client through the inbox directory.
var emitCmd = &cobra.Command{
	Use:   "emit",
	Short: "Send an event to the running chat",
	Long: `Writes an event file into the inbox watched by the interactive chat.
The running client applies it as if the model had called the tool.

Examples:
  astra emit task add "buy milk"
  astra emit task toggle 1a2b3c4d
  astra emit terminal "go test ./..." "ok  astra/internal/chat"`,
}

var emitTaskCmd = &cobra.Command{
	Use:   "task [add|remove|toggle|complete] [text]",
	Short: "Emit a task event",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		action := strings.ToLower(args[0])
		switch action {
		case tasks.ActionAdd, tasks.ActionRemove, tasks.ActionToggle, tasks.ActionComplete:
		default:
			return fmt.Errorf("unknown task action %q", action)
		}
		text := strings.Join(args[1:], " ")
		id := emitTaskID
		if action == tasks.ActionAdd {
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("task text required")
			}
		} else if id == "" {
			if len(args) < 2 {
				return fmt.Errorf("task id required for %s", action)
			}
			id, text = args[1], ""
		}
		return emit(cmd, events.NewTaskEvent(action, text, id))
	},
}

var emitTerminalCmd = &cobra.Command{
	Use:   "terminal [command] [output]",
	Short: "Emit a terminal log event",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		output := ""
		if len(args) == 2 {
			output = args[1]
		}
		return emit(cmd, events.NewTerminalEvent(args[0], output))
	},
}

func emit(cmd *cobra.Command, ev events.Event) error {
	path, err := events.WriteInbox(cfg.InboxDir(), ev)
	if err != nil {
		return err
	}
	logger.Debug("event written", zap.String("name", ev.Name), zap.String("path", path))
	fmt.Fprintf(cmd.OutOrStdout(), "Queued %s\n", ev.Name)
	return nil
}

func init() {
	emitTaskCmd.Flags().StringVar(&emitTaskID, "id", "", "Task id for remove/toggle/complete")
	emitCmd.AddCommand(emitTaskCmd, emitTerminalCmd)
}
