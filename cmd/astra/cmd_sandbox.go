package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"astra/internal/chat"
	"astra/internal/sandbox"

	"github.com/spf13/cobra"
)

var (
	sbSystem      string
	sbTemperature float64
	sbTopK        int
	sbTopP        float64
)

// sandboxCmd manages the prompt playground.
var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Configure and test prompts in the training sandbox",
	Long: `The sandbox is an isolated conversation with its own system instruction,
sampling parameters and few-shot examples. Its configuration is saved with
the session; its messages are not.`,
}

var sandboxShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the sandbox configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(commandContext(cmd), false, func(ctx context.Context, a *app) error {
			printSandbox(cmd.OutOrStdout(), a.engine.Sandbox())
			return nil
		})
	},
}

var sandboxSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the system instruction or sampling parameters",
	Long: `Only the flags given are changed.

Example:
  astra sandbox set --system "Answer in haiku" --temperature 1.4 --topk 20`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(commandContext(cmd), false, func(ctx context.Context, a *app) error {
			sb := a.engine.Sandbox()
			flags := cmd.Flags()
			if flags.Changed("system") {
				if err := sb.SetSystemInstruction(sbSystem); err != nil {
					return err
				}
			}
			if flags.Changed("temperature") {
				if err := sb.SetTemperature(sbTemperature); err != nil {
					return err
				}
			}
			if flags.Changed("topk") {
				if err := sb.SetTopK(sbTopK); err != nil {
					return err
				}
			}
			if flags.Changed("topp") {
				if err := sb.SetTopP(sbTopP); err != nil {
					return err
				}
			}
			printSandbox(cmd.OutOrStdout(), sb)
			return nil
		})
	},
}

var sandboxExampleAddCmd = &cobra.Command{
	Use:   "example-add [input] [output]",
	Short: "Add a few-shot example",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(commandContext(cmd), false, func(ctx context.Context, a *app) error {
			if err := a.engine.Sandbox().AddExample(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added example %d\n", len(a.engine.Sandbox().Config().Examples))
			return nil
		})
	},
}

var sandboxExampleRemoveCmd = &cobra.Command{
	Use:   "example-rm [number]",
	Short: "Remove a few-shot example by its number in `sandbox show`",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid example number %q", args[0])
		}
		return withApp(commandContext(cmd), false, func(ctx context.Context, a *app) error {
			if err := a.engine.Sandbox().RemoveExample(n - 1); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed example %d\n", n)
			return nil
		})
	},
}

var sandboxRunCmd = &cobra.Command{
	Use:   "run [message]",
	Short: "Send a message through the sandbox configuration",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return withApp(ctx, true, func(ctx context.Context, a *app) error {
			return askOnce(ctx, a.engine, strings.Join(args, " "), chat.SendOptions{Sandbox: true}, cmd.OutOrStdout())
		})
	},
}

func printSandbox(w io.Writer, sb *sandbox.Sandbox) {
	c := sb.Config()
	fmt.Fprintf(w, "System instruction: %s\n", c.SystemInstruction)
	fmt.Fprintf(w, "Temperature: %.2f  TopK: %d  TopP: %.2f\n", c.Temperature, c.TopK, c.TopP)
	if len(c.Examples) == 0 {
		fmt.Fprintln(w, "Examples: none")
		return
	}
	fmt.Fprintln(w, "Examples:")
	for i, ex := range c.Examples {
		fmt.Fprintf(w, "  %d. %q -> %q\n", i+1, ex.Input, ex.Output)
	}
}

func init() {
	sandboxSetCmd.Flags().StringVar(&sbSystem, "system", "", "System instruction")
	sandboxSetCmd.Flags().Float64Var(&sbTemperature, "temperature", 1, "Temperature (0-2)")
	sandboxSetCmd.Flags().IntVar(&sbTopK, "topk", 40, "Top-K (1-100)")
	sandboxSetCmd.Flags().Float64Var(&sbTopP, "topp", 0.95, "Top-P (0-1)")

	sandboxCmd.AddCommand(sandboxShowCmd, sandboxSetCmd, sandboxExampleAddCmd, sandboxExampleRemoveCmd, sandboxRunCmd)
}
