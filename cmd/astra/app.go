package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"astra/internal/chat"
	"astra/internal/config"
	"astra/internal/events"
	"astra/internal/llm"
	"astra/internal/session"
	"astra/internal/store"
	"astra/internal/types"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// closeTimeout bounds the final session flush.
const closeTimeout = 20 * time.Second

// app is one running astra instance: the engine plus its persistence.
type app struct {
	cfg     *config.Config
	bus     *events.Bus
	session *session.Adapter
	engine  *chat.Engine
	source  session.Source
}

// openApp wires storage, session and engine, and restores the stored
// session. A model is only created when needModel is set.
func openApp(ctx context.Context, c *config.Config, needModel bool) (*app, error) {
	if err := os.MkdirAll(c.Storage.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	var model llm.Model
	if needModel {
		m, err := newModel(ctx, c)
		if err != nil {
			return nil, err
		}
		model = m
	}

	remote, err := openRemote(ctx, c)
	if err != nil {
		// The local store still works; the session just won't sync.
		logger.Warn("remote store unavailable, using local storage only",
			zap.String("backend", c.Storage.Backend), zap.Error(err))
		remote = nil
	}
	local, err := store.NewBoltStore(c.LocalPath())
	if err != nil {
		if remote != nil {
			_ = remote.Close()
		}
		return nil, err
	}
	adapter, err := session.New(remote, local, c.GetSaveDelay())
	if err != nil {
		if remote != nil {
			_ = remote.Close()
		}
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	bus := events.NewBus()
	opts := chat.DefaultOptions()
	if m, ok := parseModel(c.LLM.Model); ok {
		opts.Model = m
	}
	if agent, ok := types.ParseAgent(c.LLM.Agent); ok {
		opts.Agent = agent
	}
	engine := chat.New(chat.Config{
		Model:       model,
		Persister:   adapter,
		Bus:         bus,
		MemoryDelay: c.GetMemoryDelay(),
		Options:     opts,
	})

	data, source := adapter.Load(ctx)
	engine.Restore(data)
	logger.Debug("session restored",
		zap.String("user", adapter.UserID()),
		zap.String("source", string(source)),
		zap.Int("messages", len(data.Messages)))

	return &app{cfg: c, bus: bus, session: adapter, engine: engine, source: source}, nil
}

// Close stops background work and flushes pending writes.
func (a *app) Close() error {
	a.engine.Close()
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return a.session.Close(ctx)
}

func openRemote(ctx context.Context, c *config.Config) (store.RemoteStore, error) {
	switch c.Storage.Backend {
	case "sqlite":
		s, err := store.NewSQLiteStore(c.SQLitePath())
		if err != nil {
			return nil, err
		}
		return s, nil
	case "firestore":
		s, err := store.NewFirestoreStore(ctx, c.Storage.FirestoreProject)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, nil
	}
}

func newModel(ctx context.Context, c *config.Config) (llm.Model, error) {
	if useMock {
		return llm.NewMockModel(), nil
	}
	if err := c.ValidateLLM(); err != nil {
		return nil, err
	}
	return llm.NewGeminiClient(ctx, llm.GeminiConfig{
		APIKey:          c.LLM.APIKey,
		MemoryModel:     c.LLM.MemoryModel,
		ImageModel:      c.LLM.ImageModel,
		MaxOutputTokens: c.LLM.MaxOutputTokens,
		Timeout:         c.GetLLMTimeout(),
	})
}

// parseModel accepts a model id or a case-insensitive display label.
func parseModel(name string) (types.ModelID, bool) {
	name = strings.TrimSpace(name)
	for _, m := range types.ChatModels {
		if string(m) == name || strings.EqualFold(m.Label(), name) {
			return m, true
		}
	}
	return "", false
}

// withApp opens the app, runs fn and closes the app, flushing the session.
func withApp(ctx context.Context, needModel bool, fn func(ctx context.Context, a *app) error) (err error) {
	a, err := openApp(ctx, cfg, needModel)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to save session: %w", cerr)
		}
	}()
	return fn(ctx, a)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
