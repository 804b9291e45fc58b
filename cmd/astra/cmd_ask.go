package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"astra/internal/chat"
	"astra/internal/types"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	askAttach  string
	askAgent   string
	askModel   string
	askThink   bool
	askSandbox bool
)

// askCmd sends one message and streams the answer to stdout.
var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Send a single message and print the streamed reply",
	Long: `Sends one message through the same pipeline as the interactive chat,
streaming the reply to stdout. The exchange is saved to the session.

Examples:
  astra ask "summarize the plot of Dune"
  astra ask --attach notes.pdf "what are the action items?"
  astra ask --agent Researcher "latest Go release"`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askAttach, "attach", "a", "", "Attach an image, PDF, HTML or text file")
	askCmd.Flags().StringVar(&askAgent, "agent", "", "Agent persona (General, Researcher, Creative, Coder, ...)")
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "Chat model id")
	askCmd.Flags().BoolVar(&askThink, "think", false, "Enable thinking mode")
	askCmd.Flags().BoolVar(&askSandbox, "sandbox", false, "Send to the training sandbox instead of the main chat")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withApp(ctx, true, func(ctx context.Context, a *app) error {
		if err := applyAskFlags(a.engine); err != nil {
			return err
		}
		if askAttach != "" {
			att, err := a.engine.Attach(askAttach)
			if err != nil {
				return fmt.Errorf("failed to attach %s: %w", askAttach, err)
			}
			logger.Debug("attached file", zap.String("name", att.Name), zap.String("kind", att.Kind.String()))
		}
		return askOnce(ctx, a.engine, strings.Join(args, " "), chat.SendOptions{Sandbox: askSandbox, MemoryNow: true}, cmd.OutOrStdout())
	})
}

func applyAskFlags(e *chat.Engine) error {
	if askModel != "" {
		m, ok := parseModel(askModel)
		if !ok {
			return fmt.Errorf("unknown model %q", askModel)
		}
		e.SetModel(m)
	}
	if askAgent != "" {
		agent, ok := types.ParseAgent(askAgent)
		if !ok {
			return fmt.Errorf("unknown agent %q", askAgent)
		}
		e.SetAgent(agent)
	}
	if askThink && !e.Options().Thinking {
		e.ToggleThinking()
	}
	return nil
}

// askOnce sends input and writes the reply as it streams.
func askOnce(ctx context.Context, e *chat.Engine, input string, so chat.SendOptions, w io.Writer) error {
	p := &replyPrinter{w: w, printed: make(map[string]int)}
	e.SetObserver(p.observe)
	defer e.SetObserver(nil)

	err := e.Send(ctx, input, so)
	p.finish()
	if err != nil {
		return err
	}
	return nil
}

// replyPrinter writes the new suffix of each model message it is shown.
type replyPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	printed map[string]int
	last    *types.Message
}

func (p *replyPrinter) observe(u chat.Update) {
	if u.Message == nil || u.Message.Role != types.RoleModel {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	m := *u.Message
	n := p.printed[m.ID]
	if m.IsError {
		p.last = &m
		return
	}
	if len(m.Text) > n {
		fmt.Fprint(p.w, m.Text[n:])
		p.printed[m.ID] = len(m.Text)
	}
	p.last = &m
}

func (p *replyPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return
	}
	fmt.Fprintln(p.w)
	if p.last.IsError {
		fmt.Fprintln(p.w, p.last.Text)
		return
	}
	if p.last.Image != "" {
		fmt.Fprintf(p.w, "[image: %d bytes, data URL]\n", len(p.last.Image))
	}
	if len(p.last.GroundingLinks) > 0 {
		fmt.Fprintln(p.w, "\nSources:")
		for _, l := range p.last.GroundingLinks {
			title := l.Title
			if title == "" {
				title = l.URI
			}
			fmt.Fprintf(p.w, "  - %s <%s>\n", title, l.URI)
		}
	}
}
