// Package chat orchestrates sending messages: it owns the conversations,
// the side panels and the pending attachment, streams replies from the
// model and schedules persistence of every change.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"astra/internal/attach"
	"astra/internal/conversation"
	"astra/internal/events"
	"astra/internal/llm"
	"astra/internal/logging"
	"astra/internal/memory"
	"astra/internal/sandbox"
	"astra/internal/store"
	"astra/internal/stream"
	"astra/internal/tasks"
	"astra/internal/terminal"
	"astra/internal/types"

	"github.com/google/uuid"
)

// ErrEmptyInput is returned when there is neither text nor an attachment to send.
var ErrEmptyInput = errors.New("nothing to send")

// ErrGenerationInProgress is returned when a send races a pending generation.
var ErrGenerationInProgress = conversation.ErrGenerationInProgress

// DefaultMemoryDelay is the wait between a finished reply and the memory
// extraction pass.
const DefaultMemoryDelay = time.Second

var imageIntents = []string{"generate image", "create a picture"}

// Persister stores session changes. *session.Adapter implements it.
type Persister interface {
	Schedule(p store.Patch)
	Save(ctx context.Context, p store.Patch) error
}

// UpdateKind tells the UI what changed.
type UpdateKind int

const (
	UpdateMessages UpdateKind = iota
	UpdateSandbox
	UpdateTasks
	UpdateMemory
	UpdateTerminal
	UpdateStyle
)

// Update is delivered to the observer after a change.
type Update struct {
	Kind    UpdateKind
	Message *types.Message
}

// Options are the user-selectable generation settings.
type Options struct {
	Model       types.ModelID
	Agent       types.Agent
	Thinking    bool
	ViewMode    bool
	CodeMode    bool
	ImageConfig types.ImageGenConfig
}

// DefaultOptions returns the startup settings.
func DefaultOptions() Options {
	return Options{
		Model:       types.ModelFlash,
		Agent:       types.AgentGeneral,
		ImageConfig: types.DefaultImageGenConfig(),
	}
}

// Config wires an Engine.
type Config struct {
	Model       llm.Model
	Persister   Persister // optional
	Bus         *events.Bus
	MemoryDelay time.Duration
	Options     Options
}

// SendOptions selects the conversation a send goes to.
type SendOptions struct {
	Sandbox bool
	// MemoryNow runs the memory extraction pass before Send returns
	// instead of after the memory delay. One-shot callers close the
	// engine right after sending.
	MemoryNow bool
}

// Engine is the chat state machine.
type Engine struct {
	model   llm.Model
	persist Persister
	bus     *events.Bus

	conv     *conversation.Store
	sandbox  *sandbox.Sandbox
	tasks    *tasks.List
	memory   *memory.Store
	terminal *terminal.Log

	mu          sync.RWMutex
	opts        Options
	pending     *attach.Attachment
	customStyle string
	observer    func(Update)

	memoryDelay time.Duration
	bgCtx       context.Context
	bgCancel    context.CancelFunc
	bg          sync.WaitGroup
	unsubscribe []func()
}

// New creates an engine and subscribes it to the event bus.
func New(cfg Config) *Engine {
	if cfg.Bus == nil {
		cfg.Bus = events.NewBus()
	}
	if cfg.MemoryDelay <= 0 {
		cfg.MemoryDelay = DefaultMemoryDelay
	}
	if cfg.Options.Model == "" {
		cfg.Options = DefaultOptions()
	}
	bgCtx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		model:       cfg.Model,
		persist:     cfg.Persister,
		bus:         cfg.Bus,
		conv:        conversation.New(),
		sandbox:     sandbox.New(),
		tasks:       tasks.New(),
		memory:      memory.New(),
		terminal:    terminal.New(),
		opts:        cfg.Options,
		memoryDelay: cfg.MemoryDelay,
		bgCtx:       bgCtx,
		bgCancel:    cancel,
	}

	e.conv.OnChange(func() {
		msgs := e.conv.Messages()
		e.schedule(store.Patch{Messages: &msgs})
	})
	e.tasks.OnChange(func() {
		list := e.tasks.List()
		e.schedule(store.Patch{Tasks: &list})
		e.notify(Update{Kind: UpdateTasks})
	})
	e.memory.OnChange(func() {
		m := e.memory.Memory()
		e.schedule(store.Patch{Memory: &m})
		e.notify(Update{Kind: UpdateMemory})
	})
	e.terminal.OnChange(func() {
		logs := e.terminal.List()
		e.schedule(store.Patch{TerminalLogs: &logs})
		e.notify(Update{Kind: UpdateTerminal})
	})
	e.sandbox.OnChange(func() {
		c := e.sandbox.Config()
		e.schedule(store.Patch{SandboxConfig: &c})
		e.notify(Update{Kind: UpdateSandbox})
	})

	e.unsubscribe = append(e.unsubscribe,
		e.bus.Subscribe(events.TaskEvent, e.handleTaskEvent),
		e.bus.Subscribe(events.TerminalEvent, e.handleTerminalEvent),
	)
	return e
}

func (e *Engine) persister() Persister {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.persist
}

func (e *Engine) schedule(p store.Patch) {
	if ps := e.persister(); ps != nil {
		ps.Schedule(p)
	}
}

func (e *Engine) saveNow(ctx context.Context, p store.Patch) error {
	ps := e.persister()
	if ps == nil {
		return nil
	}
	return ps.Save(ctx, p)
}

// SetObserver registers the function notified after every change.
func (e *Engine) SetObserver(fn func(Update)) {
	e.mu.Lock()
	e.observer = fn
	e.mu.Unlock()
}

func (e *Engine) notify(u Update) {
	e.mu.RLock()
	fn := e.observer
	e.mu.RUnlock()
	if fn != nil {
		fn(u)
	}
}

func (e *Engine) handleTaskEvent(ev events.Event) {
	d, err := ev.Task()
	if err != nil {
		logging.EventsWarn("bad task event: %v", err)
		return
	}
	if err := e.tasks.Apply(d.Action, d.Task, d.ID); err != nil {
		logging.EventsWarn("task event %s failed: %v", d.Action, err)
	}
}

func (e *Engine) handleTerminalEvent(ev events.Event) {
	d, err := ev.Terminal()
	if err != nil {
		logging.EventsWarn("bad terminal event: %v", err)
		return
	}
	e.terminal.Append(d.Command, d.Output)
}

// Accessors.
func (e *Engine) Conversation() *conversation.Store { return e.conv }
func (e *Engine) Sandbox() *sandbox.Sandbox         { return e.sandbox }
func (e *Engine) Tasks() *tasks.List                { return e.tasks }
func (e *Engine) Memory() *memory.Store             { return e.memory }
func (e *Engine) Terminal() *terminal.Log           { return e.terminal }
func (e *Engine) Bus() *events.Bus                  { return e.bus }

// Send appends input to the selected conversation and generates a reply.
// It blocks until the reply is complete. A rejected send leaves the
// conversation unchanged.
func (e *Engine) Send(ctx context.Context, input string, so SendOptions) error {
	conv := e.conv
	if so.Sandbox {
		conv = e.sandbox.Conversation()
	}

	e.mu.RLock()
	pending := e.pending
	opts := e.opts
	e.mu.RUnlock()

	if strings.TrimSpace(input) == "" && pending == nil {
		return ErrEmptyInput
	}
	if err := conv.BeginGeneration(); err != nil {
		logging.ChatWarn("send rejected: %v", err)
		return err
	}
	defer conv.EndGeneration()

	history := conv.Messages()
	userMsg := types.Message{
		ID:        uuid.NewString(),
		Role:      types.RoleUser,
		Text:      input,
		Timestamp: types.NowMillis(),
	}
	if pending != nil {
		switch pending.Kind {
		case attach.KindImage:
			userMsg.Image = pending.DataURL()
			userMsg.IsVision = true
			if input == "" {
				userMsg.Text = "Analyzing image..."
			}
		default:
			userMsg.PDFName = pending.Name
			if input == "" {
				userMsg.Text = fmt.Sprintf("Analyzing %s...", pending.Name)
			}
		}
	}
	conv.Append(userMsg)
	e.notify(Update{Kind: e.updateKind(so), Message: &userMsg})
	if !so.Sandbox {
		e.ClearAttachment()
	}
	logging.Chat("send: sandbox=%t model=%s agent=%s attachment=%t", so.Sandbox, opts.Model, opts.Agent, pending != nil)

	if !so.Sandbox && pending == nil && isImageIntent(input) {
		e.generateImage(ctx, conv, input, opts.ImageConfig)
		return nil
	}

	replyID := uuid.NewString()
	conv.Append(types.Message{
		ID:           replyID,
		Role:         types.RoleModel,
		Timestamp:    types.NowMillis(),
		IsGenerating: true,
	})

	req := e.buildRequest(input, history, opts, pending, so)
	var bus *events.Bus
	if !so.Sandbox {
		bus = e.bus
	}
	kind := e.updateKind(so)
	_, err := stream.Ingest(ctx, e.model.StreamChat(ctx, req), conv, replyID, stream.Options{
		Bus: bus,
		Observer: func(m types.Message) {
			e.notify(Update{Kind: kind, Message: &m})
		},
	})
	if err != nil {
		return err
	}

	switch {
	case so.Sandbox:
	case so.MemoryNow:
		e.memory.Update(ctx, e.model, conv.Messages())
	default:
		e.scheduleMemoryUpdate()
	}
	return nil
}

func (e *Engine) updateKind(so SendOptions) UpdateKind {
	if so.Sandbox {
		return UpdateSandbox
	}
	return UpdateMessages
}

func isImageIntent(input string) bool {
	lower := strings.ToLower(input)
	for _, phrase := range imageIntents {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func (e *Engine) buildRequest(input string, history []types.Message, opts Options, pending *attach.Attachment, so SendOptions) llm.Request {
	req := llm.Request{
		Input:    input,
		History:  history,
		Model:    opts.Model,
		Agent:    opts.Agent,
		Thinking: opts.Thinking,
		ViewMode: opts.ViewMode,
		CodeMode: opts.CodeMode,
	}
	if pending != nil {
		if pending.Kind == attach.KindImage {
			req.Image = &llm.Image{MimeType: pending.MimeType, Data: pending.Data}
		} else {
			req.DocumentName = pending.Name
			req.DocumentText = pending.Text
		}
	}
	if so.Sandbox {
		cfg := e.sandbox.Config()
		req.Sandbox = &cfg
	} else {
		req.Memory = e.memory.Facts()
		req.Tasks = e.tasks.List()
	}
	return req
}

func (e *Engine) generateImage(ctx context.Context, conv *conversation.Store, prompt string, cfg types.ImageGenConfig) {
	id := uuid.NewString()
	conv.Append(types.Message{
		ID:           id,
		Role:         types.RoleModel,
		Text:         fmt.Sprintf("Generating your %s quality image (%s, %s)...", cfg.Quality, cfg.AspectRatio, cfg.Style),
		Timestamp:    types.NowMillis(),
		IsGenerating: true,
	})

	img, err := e.model.GenerateImage(ctx, prompt, cfg)
	_ = conv.Update(id, func(m *types.Message) {
		m.IsGenerating = false
		if err != nil {
			m.Text = err.Error()
			m.IsError = true
			return
		}
		m.Text = "Here is your generated image:"
		m.Image = img.DataURL()
	})
	if err != nil {
		logging.ChatWarn("image generation failed: %v", err)
	}
	if m, ok := conv.Get(id); ok {
		e.notify(Update{Kind: UpdateMessages, Message: &m})
	}
}

// scheduleMemoryUpdate runs an extraction pass after the memory delay.
func (e *Engine) scheduleMemoryUpdate() {
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		t := time.NewTimer(e.memoryDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-e.bgCtx.Done():
			return
		}
		e.memory.Update(e.bgCtx, e.model, e.conv.Messages())
	}()
}

// Attach loads path as the pending attachment.
func (e *Engine) Attach(path string) (*attach.Attachment, error) {
	a, err := attach.Load(path)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.pending = a
	e.mu.Unlock()
	return a, nil
}

// Pending returns the pending attachment, if any.
func (e *Engine) Pending() *attach.Attachment {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pending
}

// ClearAttachment drops the pending attachment.
func (e *Engine) ClearAttachment() {
	e.mu.Lock()
	e.pending = nil
	e.mu.Unlock()
}

// Reset clears the main conversation and saves immediately.
func (e *Engine) Reset(ctx context.Context) error {
	e.conv.Reset()
	e.notify(Update{Kind: UpdateMessages})
	empty := []types.Message{}
	return e.saveNow(ctx, store.Patch{Messages: &empty})
}

// WipeMemory forgets every fact and saves immediately.
func (e *Engine) WipeMemory(ctx context.Context) error {
	e.memory.Wipe()
	m := types.UserMemory{Facts: []string{}}
	return e.saveNow(ctx, store.Patch{Memory: &m})
}

// CustomStyle returns the user style override.
func (e *Engine) CustomStyle() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.customStyle
}

// SetCustomStyle stores the user style override.
func (e *Engine) SetCustomStyle(style string) {
	e.mu.Lock()
	e.customStyle = style
	e.mu.Unlock()
	e.schedule(store.Patch{CustomStyle: &style})
	e.notify(Update{Kind: UpdateStyle})
}

// Options returns the current generation settings.
func (e *Engine) Options() Options {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.opts
}

// SetModel selects the chat model. Thinking is only kept for the pro model.
func (e *Engine) SetModel(m types.ModelID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Model = m
	if m != types.ModelPro {
		e.opts.Thinking = false
	}
}

// SetAgent selects the persona and leaves code mode.
func (e *Engine) SetAgent(a types.Agent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Agent = a
	e.opts.CodeMode = false
}

// ToggleThinking flips thinking mode.
func (e *Engine) ToggleThinking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Thinking = !e.opts.Thinking
	return e.opts.Thinking
}

// ToggleViewMode flips concise view mode.
func (e *Engine) ToggleViewMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.ViewMode = !e.opts.ViewMode
	return e.opts.ViewMode
}

// ToggleCodeMode flips code mode.
func (e *Engine) ToggleCodeMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.CodeMode = !e.opts.CodeMode
	return e.opts.CodeMode
}

// SetImageConfig sets the image generation settings.
func (e *Engine) SetImageConfig(cfg types.ImageGenConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.ImageConfig = cfg
}

// ModelLabel describes the active mode for the header.
func (e *Engine) ModelLabel(sandboxOpen bool) string {
	o := e.Options()
	switch {
	case sandboxOpen:
		return "Training Sandbox (Test Mode)"
	case o.Thinking:
		return "Gemini 3 Pro (Thinking)"
	case o.CodeMode:
		return "Gemini 3 Pro (Coding)"
	case o.ViewMode:
		return "Astra View (Concise)"
	}
	return fmt.Sprintf("%s • %s", o.Model.Label(), o.Agent)
}

// Snapshot returns everything persisted for the session.
func (e *Engine) Snapshot() types.SessionData {
	return types.SessionData{
		Memory:        e.memory.Memory(),
		Tasks:         e.tasks.List(),
		Messages:      e.conv.Messages(),
		SandboxConfig: e.sandbox.Config(),
		TerminalLogs:  e.terminal.List(),
		CustomStyle:   e.CustomStyle(),
	}
}

// Restore loads a stored session without scheduling a write. Messages left
// mid-generation by a previous run are marked finished.
func (e *Engine) Restore(d types.SessionData) {
	msgs := types.CloneMessages(d.Messages)
	for i := range msgs {
		msgs[i].IsGenerating = false
	}
	e.memory.Replace(d.Memory)
	e.tasks.Replace(d.Tasks)
	e.sandbox.Replace(d.SandboxConfig)
	e.terminal.Replace(d.TerminalLogs)

	e.mu.Lock()
	e.customStyle = d.CustomStyle
	p := e.persist
	e.persist = nil
	e.mu.Unlock()

	e.conv.Replace(msgs)

	e.mu.Lock()
	e.persist = p
	e.mu.Unlock()
	e.notify(Update{Kind: UpdateMessages})
	logging.Chat("restored session: %d messages, %d tasks, %d facts", len(msgs), len(d.Tasks), len(d.Memory.Facts))
}

// Close cancels background work and unsubscribes from the bus.
func (e *Engine) Close() {
	e.bgCancel()
	e.bg.Wait()
	for _, u := range e.unsubscribe {
		u()
	}
	e.unsubscribe = nil
}
