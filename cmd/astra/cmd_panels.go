package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// tasksCmd manages the task list panel.
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage the task list",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(commandContext(cmd), false, func(ctx context.Context, a *app) error {
			printTasks(cmd.OutOrStdout(), a)
			return nil
		})
	},
}

var tasksAddCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(commandContext(cmd), false, func(ctx context.Context, a *app) error {
			t, err := a.engine.Tasks().Add(strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s: %s\n", t.ID, t.Text)
			return nil
		})
	},
}

var tasksToggleCmd = &cobra.Command{
	Use:   "toggle [id]",
	Short: "Toggle a task's completion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(commandContext(cmd), false, func(ctx context.Context, a *app) error {
			t, err := a.engine.Tasks().Toggle(args[0])
			if err != nil {
				return err
			}
			state := "open"
			if t.Completed {
				state = "done"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", t.ID, state)
			return nil
		})
	},
}

var tasksRemoveCmd = &cobra.Command{
	Use:     "rm [id]",
	Aliases: []string{"remove"},
	Short:   "Remove a task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(commandContext(cmd), false, func(ctx context.Context, a *app) error {
			if err := a.engine.Tasks().Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		})
	},
}

func printTasks(w io.Writer, a *app) {
	list := a.engine.Tasks().List()
	if len(list) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	for _, t := range list {
		box := "[ ]"
		if t.Completed {
			box = "[x]"
		}
		fmt.Fprintf(w, "%s %s  %s\n", box, t.ID, t.Text)
	}
}

// memoryCmd shows or wipes the facts remembered about the user.
var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Show or wipe remembered facts",
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List remembered facts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(commandContext(cmd), false, func(ctx context.Context, a *app) error {
			facts := a.engine.Memory().Facts()
			if len(facts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No facts remembered.")
				return nil
			}
			for _, f := range facts {
				fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", f)
			}
			return nil
		})
	},
}

var memoryWipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Forget every remembered fact",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(commandContext(cmd), false, func(ctx context.Context, a *app) error {
			if err := a.engine.WipeMemory(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Memory wiped.")
			return nil
		})
	},
}

// terminalCmd shows or clears the terminal transcript.
var terminalCmd = &cobra.Command{
	Use:   "terminal",
	Short: "Show or clear the terminal transcript",
}

var terminalListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the terminal transcript",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(commandContext(cmd), false, func(ctx context.Context, a *app) error {
			logs := a.engine.Terminal().List()
			if len(logs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Terminal is empty.")
				return nil
			}
			for _, l := range logs {
				ts := time.UnixMilli(l.Timestamp).Format("15:04:05")
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] $ %s\n%s\n", ts, l.Command, l.Output)
			}
			return nil
		})
	},
}

var terminalClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the terminal transcript",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(commandContext(cmd), false, func(ctx context.Context, a *app) error {
			a.engine.Terminal().Clear()
			fmt.Fprintln(cmd.OutOrStdout(), "Terminal cleared.")
			return nil
		})
	},
}

// resetCmd clears the main conversation.
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the chat history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(commandContext(cmd), false, func(ctx context.Context, a *app) error {
			if err := a.engine.Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Chat history cleared.")
			return nil
		})
	},
}

func init() {
	tasksCmd.AddCommand(tasksListCmd, tasksAddCmd, tasksToggleCmd, tasksRemoveCmd)
	memoryCmd.AddCommand(memoryListCmd, memoryWipeCmd)
	terminalCmd.AddCommand(terminalListCmd, terminalClearCmd)
}
