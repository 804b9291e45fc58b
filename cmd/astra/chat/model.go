// Package chat provides the interactive TUI for astra.
// The model renders the engine's state; every change made by the engine
// (streamed chunks, tool calls, inbox events) arrives as a refresh signal.
package chat

import (
	"context"

	"astra/cmd/astra/ui"
	astrachat "astra/internal/chat"
	"astra/internal/logging"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

const (
	headerHeight = 2
	inputHeight  = 3
	footerHeight = 2
	panelWidth   = 38
	minWrap      = 20
)

// Config holds configuration for initializing the chat interface.
type Config struct {
	Theme    string // auto, dark, light
	WordWrap int
	InboxDir string
}

// panel is the side panel currently shown.
type panel int

const (
	panelNone panel = iota
	panelTasks
	panelMemory
	panelTerminal
	panelBookmarks
	panelHelp
)

// Messages for tea updates
type (
	refreshMsg  struct{}
	sendDoneMsg struct {
		sandbox bool
		err     error
	}
)

// Model is the bubbletea model of the chat screen.
type Model struct {
	engine *astrachat.Engine
	cfg    Config
	ctx    context.Context

	styles    ui.Styles
	overrides ui.Overrides
	renderer  *glamour.TermRenderer
	cache     map[string]cachedRender

	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model

	refresh chan struct{}

	width, height int
	ready         bool
	sandboxOpen   bool
	panel         panel

	// in-flight sends, indexed by contextIndex
	cancels [2]context.CancelFunc

	notice      string
	noticeIsErr bool
}

// New creates the chat model for engine. ctx bounds every send.
func New(ctx context.Context, engine *astrachat.Engine, cfg Config) Model {
	if cfg.WordWrap <= 0 {
		cfg.WordWrap = 80
	}

	ta := textarea.New()
	ta.Placeholder = "Message Astra... (Enter to send, Alt+Enter for newline, /help)"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(inputHeight)
	ta.SetWidth(cfg.WordWrap)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		engine:   engine,
		cfg:      cfg,
		ctx:      ctx,
		cache:    make(map[string]cachedRender),
		textarea: ta,
		viewport: viewport.New(cfg.WordWrap, 20),
		spinner:  sp,
		refresh:  make(chan struct{}, 1),
	}
	m.applyStyle(engine.CustomStyle())

	refresh := m.refresh
	engine.SetObserver(func(astrachat.Update) {
		// Coalesce: one pending signal is enough to redraw everything.
		select {
		case refresh <- struct{}{}:
		default:
		}
	})
	return m
}

// applyStyle rebuilds styles and the markdown renderer from the theme and
// the user style string. An invalid string keeps the base theme.
func (m *Model) applyStyle(custom string) error {
	theme := ui.ThemeFor(m.cfg.Theme)
	o, err := ui.ParseCustomStyle(custom)
	if err != nil {
		logging.Get(logging.CategoryUI).Warn("ignoring custom style: %v", err)
		o = ui.Overrides{}
	}
	m.overrides = o
	m.styles = ui.NewStyles(o.Apply(theme))
	m.spinner.Style = m.styles.Spinner
	m.rebuildRenderer()
	return err
}

func (m *Model) rebuildRenderer() {
	wrap := min(m.contentWidth()-4, m.cfg.WordWrap)
	if wrap < minWrap {
		wrap = minWrap
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.overrides.MarkdownStyle(m.styles.Theme)),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		logging.Get(logging.CategoryUI).Warn("markdown renderer unavailable: %v", err)
		r = nil
	}
	m.renderer = r
	m.cache = make(map[string]cachedRender)
}

// Init initializes the interactive chat model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.waitForRefresh(),
	)
}

// waitForRefresh blocks until the engine reports a change.
func (m Model) waitForRefresh() tea.Cmd {
	ch, ctx := m.refresh, m.ctx
	return func() tea.Msg {
		select {
		case <-ch:
			return refreshMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

func contextIndex(sandbox bool) int {
	if sandbox {
		return 1
	}
	return 0
}

// generating reports whether the visible context has a send in flight.
func (m Model) generating() bool {
	return m.cancels[contextIndex(m.sandboxOpen)] != nil
}

func (m Model) anyGenerating() bool {
	return m.cancels[0] != nil || m.cancels[1] != nil
}

// contentWidth is the width available to the conversation.
func (m Model) contentWidth() int {
	w := m.width
	if w <= 0 {
		w = m.cfg.WordWrap
	}
	if m.panel != panelNone && w >= panelWidth*2 {
		w -= panelWidth + 1
	}
	if w < 1 {
		w = 1
	}
	return w
}

// Run starts the chat program and blocks until it exits or ctx ends.
func Run(ctx context.Context, engine *astrachat.Engine, cfg Config) error {
	m := New(ctx, engine, cfg)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	defer engine.SetObserver(nil)
	_, err := p.Run()
	return err
}
