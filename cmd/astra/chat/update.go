package chat

import (
	"context"
	"errors"
	"strings"

	astrachat "astra/internal/chat"
	"astra/internal/logging"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case refreshMsg:
		m.refreshContent()
		return m, m.waitForRefresh()

	case sendDoneMsg:
		idx := contextIndex(msg.sandbox)
		if cancel := m.cancels[idx]; cancel != nil {
			cancel()
		}
		m.cancels[idx] = nil
		if msg.err != nil {
			m.reportSendError(msg.err)
		}
		m.refreshContent()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.anyGenerating() {
			m.refreshContent()
		}
		return m, cmd

	case tea.KeyMsg:
		if model, cmd, handled := m.handleKey(msg); handled {
			return model, cmd
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

// handleKey processes global keybindings. Keys it does not handle go to
// the textarea and viewport.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		for _, cancel := range m.cancels {
			if cancel != nil {
				cancel()
			}
		}
		return m, tea.Quit, true

	case "esc":
		if m.panel != panelNone {
			m.setPanel(panelNone)
			return m, nil, true
		}
		if cancel := m.cancels[contextIndex(m.sandboxOpen)]; cancel != nil {
			// The send finishes with a cancelled message and reports back.
			cancel()
			return m, nil, true
		}
		m.notice = ""
		return m, nil, true

	case "enter":
		input := m.textarea.Value()
		m.textarea.Reset()
		model, cmd := m.submit(input)
		return model, cmd, true

	case "alt+s":
		m.sandboxOpen = !m.sandboxOpen
		if m.sandboxOpen {
			m.setNotice("Training sandbox open. Messages here are not saved.", false)
		} else {
			m.notice = ""
		}
		m.refreshContent()
		return m, nil, true
	case "alt+t":
		m.togglePanel(panelTasks)
		return m, nil, true
	case "alt+m":
		m.togglePanel(panelMemory)
		return m, nil, true
	case "alt+r":
		m.togglePanel(panelTerminal)
		return m, nil, true
	case "alt+b":
		m.togglePanel(panelBookmarks)
		return m, nil, true
	case "f1":
		m.togglePanel(panelHelp)
		return m, nil, true

	case "alt+k":
		m.toggleThinking()
		return m, nil, true
	case "alt+v":
		on := m.engine.ToggleViewMode()
		m.setNotice("View mode "+onOff(on), false)
		return m, nil, true
	case "alt+c":
		on := m.engine.ToggleCodeMode()
		m.setNotice("Code mode "+onOff(on), false)
		return m, nil, true

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd, true
	}
	return m, nil, false
}

// submit handles one line of input: a slash command or a message.
func (m Model) submit(input string) (Model, tea.Cmd) {
	trimmed := strings.TrimSpace(input)
	if strings.HasPrefix(trimmed, "/") {
		return m.runCommand(trimmed)
	}
	if trimmed == "" && m.engine.Pending() == nil {
		return m, nil
	}
	if m.generating() {
		m.setNotice("Still generating. Press Esc to stop.", true)
		return m, nil
	}

	sandbox := m.sandboxOpen
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancels[contextIndex(sandbox)] = cancel
	m.notice = ""
	e := m.engine
	send := func() tea.Msg {
		err := e.Send(ctx, trimmed, astrachat.SendOptions{Sandbox: sandbox})
		return sendDoneMsg{sandbox: sandbox, err: err}
	}
	m.refreshContent()
	return m, send
}

func (m *Model) reportSendError(err error) {
	switch {
	case errors.Is(err, astrachat.ErrEmptyInput):
	case errors.Is(err, astrachat.ErrGenerationInProgress):
		m.setNotice("Still generating. Press Esc to stop.", true)
	case errors.Is(err, context.Canceled):
		m.setNotice("Generation stopped.", false)
	default:
		// The failure is already shown on the message itself.
		logging.Get(logging.CategoryUI).Warn("send failed: %v", err)
	}
}

func (m *Model) toggleThinking() {
	on := m.engine.ToggleThinking()
	m.setNotice("Thinking "+onOff(on), false)
}

func (m *Model) togglePanel(p panel) {
	if m.panel == p {
		m.setPanel(panelNone)
		return
	}
	m.setPanel(p)
}

func (m *Model) setPanel(p panel) {
	m.panel = p
	if m.ready {
		m.resize(m.width, m.height)
	}
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeIsErr = isErr
}

// resize lays out the viewport and input for a terminal of w x h.
func (m *Model) resize(w, h int) {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	m.width, m.height = w, h

	vpHeight := h - headerHeight - (inputHeight + 2) - footerHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	// Content style pads one column on each side.
	cw := m.contentWidth() - 2
	if cw < 1 {
		cw = 1
	}
	m.viewport.Width = cw
	m.viewport.Height = vpHeight
	inputWidth := w - 4
	if inputWidth < 1 {
		inputWidth = 1
	}
	m.textarea.SetWidth(inputWidth)
	m.ready = true

	m.rebuildRenderer()
	m.refreshContent()
}

// refreshContent re-renders the visible conversation into the viewport,
// keeping the scroll position unless it was already at the bottom.
func (m *Model) refreshContent() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderConversation())
	if atBottom || m.generating() {
		m.viewport.GotoBottom()
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
