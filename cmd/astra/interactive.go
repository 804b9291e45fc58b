package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	chatui "astra/cmd/astra/chat"
	"astra/internal/events"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// runInteractiveChat runs the TUI alongside the event inbox until the user
// quits or a signal arrives.
func runInteractiveChat(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withApp(ctx, true, func(ctx context.Context, a *app) error {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		g, gctx := errgroup.WithContext(runCtx)

		if cfg.Events.Enabled {
			inbox, err := events.NewInbox(cfg.InboxDir(), a.bus)
			if err != nil {
				return err
			}
			if err := inbox.Start(gctx); err != nil {
				inbox.Stop()
				return err
			}
			g.Go(func() error {
				<-gctx.Done()
				inbox.Stop()
				logger.Debug("inbox stopped", zap.Int("delivered", inbox.Delivered()))
				return nil
			})
		}

		g.Go(func() error {
			// Leaving the TUI ends the group.
			defer cancel()
			err := chatui.Run(gctx, a.engine, chatui.Config{
				Theme:    cfg.UI.Theme,
				WordWrap: cfg.UI.WordWrap,
				InboxDir: cfg.InboxDir(),
			})
			if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
				return nil
			}
			return err
		})

		return g.Wait()
	})
}
