package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// VIEW RENDERING
// =============================================================================

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.renderHeader()

	var body string
	switch {
	case m.panel == panelNone:
		body = m.styles.Content.Render(m.viewport.View())
	case m.width < panelWidth*2:
		// Too narrow for a side panel: it replaces the conversation.
		body = m.renderPanel(m.width - 2)
	default:
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			m.styles.Content.Render(m.viewport.View()),
			m.renderPanel(panelWidth-2),
		)
	}

	input := m.styles.Input.Render(m.textarea.View())
	return lipgloss.JoinVertical(lipgloss.Left, header, body, input, m.renderFooter())
}

func (m Model) renderHeader() string {
	title := m.styles.Header.Render(" Astra ")
	label := m.styles.Badge.Render(m.engine.ModelLabel(m.sandboxOpen))

	var status string
	if m.generating() {
		status = m.spinner.View() + " " + m.styles.Muted.Render("Generating... (Esc to stop)")
	} else {
		status = m.styles.Success.Render("Ready")
	}

	parts := []string{title, " ", label, "  ", status}
	if a := m.engine.Pending(); a != nil {
		parts = append(parts, "  ", m.styles.Info.Render(fmt.Sprintf("[%s: %s]", a.Kind, a.Name)))
	}
	if m.sandboxOpen {
		c := m.engine.Sandbox().Config()
		parts = append(parts, "  ", m.styles.Muted.Render(fmt.Sprintf("T=%.2f K=%d P=%.2f ex=%d", c.Temperature, c.TopK, c.TopP, len(c.Examples))))
	}
	line := lipgloss.JoinHorizontal(lipgloss.Center, parts...)
	return lipgloss.JoinVertical(lipgloss.Left, line, m.styles.RenderDivider(m.width))
}

func (m Model) renderFooter() string {
	if m.notice != "" {
		style := m.styles.Info
		if m.noticeIsErr {
			style = m.styles.Warning
		}
		return m.styles.Footer.Render(style.Render(m.notice))
	}
	opts := m.engine.Options()
	modes := []string{}
	if opts.Thinking {
		modes = append(modes, "think")
	}
	if opts.ViewMode {
		modes = append(modes, "view")
	}
	if opts.CodeMode {
		modes = append(modes, "code")
	}
	modeStr := ""
	if len(modes) > 0 {
		modeStr = "[" + strings.Join(modes, ",") + "] | "
	}
	hotkeys := "Alt+S: sandbox | Alt+T: tasks | Alt+M: memory | Alt+R: terminal | Alt+B: bookmarks | F1: help"
	return m.styles.Footer.Render(m.styles.Muted.Render(
		fmt.Sprintf("%s%s | %s", modeStr, time.Now().Format("15:04"), hotkeys)))
}

// =============================================================================
// PANELS
// =============================================================================

func (m Model) renderPanel(width int) string {
	if width < 10 {
		width = 10
	}
	var title, body string
	switch m.panel {
	case panelTasks:
		title, body = "Tasks", m.tasksPanel()
	case panelMemory:
		title, body = "Memory", m.memoryPanel()
	case panelTerminal:
		title, body = "Terminal", m.terminalPanel()
	case panelBookmarks:
		title, body = "Bookmarks", m.bookmarksPanel()
	case panelHelp:
		title, body = "Help", helpText
	}
	inner := width - 4
	if inner < 1 {
		inner = 1
	}
	content := m.styles.Title.Render(title) + "\n" + m.styles.Body.Width(inner).Render(body)
	return m.styles.Panel.Width(width).MaxHeight(m.viewport.Height + 2).Render(content)
}

func (m Model) tasksPanel() string {
	list := m.engine.Tasks().List()
	if len(list) == 0 {
		return m.styles.Muted.Render("No tasks. /task add <text>")
	}
	var sb strings.Builder
	for i, t := range list {
		box := "[ ]"
		text := t.Text
		if t.Completed {
			box = "[x]"
			text = m.styles.Muted.Strikethrough(true).Render(text)
		}
		fmt.Fprintf(&sb, "%d. %s %s\n", i+1, box, text)
	}
	sb.WriteString(m.styles.Muted.Render("/task toggle <n>, /task rm <n>"))
	return sb.String()
}

func (m Model) memoryPanel() string {
	facts := m.engine.Memory().Facts()
	if len(facts) == 0 {
		return m.styles.Muted.Render("Nothing remembered yet. Facts are learned as you chat.")
	}
	var sb strings.Builder
	for _, f := range facts {
		fmt.Fprintf(&sb, "- %s\n", f)
	}
	sb.WriteString(m.styles.Muted.Render("/wipe to forget everything"))
	return sb.String()
}

func (m Model) terminalPanel() string {
	logs := m.engine.Terminal().List()
	if len(logs) == 0 {
		hint := "No commands yet."
		if m.cfg.InboxDir != "" {
			hint += " Events dropped in " + m.cfg.InboxDir + " show up here."
		}
		return m.styles.Muted.Render(hint)
	}
	var sb strings.Builder
	for _, l := range logs {
		sb.WriteString(m.styles.Bold.Render("$ " + l.Command))
		sb.WriteString("\n")
		if l.Output != "" {
			sb.WriteString(l.Output)
			sb.WriteString("\n")
		}
	}
	sb.WriteString(m.styles.Muted.Render("/term clear"))
	return sb.String()
}

func (m Model) bookmarksPanel() string {
	marked := m.activeConversation().Bookmarked()
	if len(marked) == 0 {
		return m.styles.Muted.Render("No bookmarks. /bookmark [n] marks a message.")
	}
	var sb strings.Builder
	for _, msg := range marked {
		text := []rune(strings.TrimSpace(msg.Text))
		if len(text) > 160 {
			text = append(text[:160], []rune("...")...)
		}
		fmt.Fprintf(&sb, "%s %s\n\n", m.styles.Bookmark.Render("★"), string(text))
	}
	return sb.String()
}

const helpText = `Keys
  Enter        send
  Alt+Enter    newline
  Esc          stop generation / close panel
  PgUp/PgDn    scroll
  Alt+S        training sandbox
  Alt+T/M/R/B  tasks, memory, terminal, bookmarks
  Alt+K/V/C    thinking, view, code mode
  Ctrl+C       quit

Commands
  /attach <path>   /detach
  /model [id]      /agent [name]
  /think /view /code
  /image <ratio> [standard|high] [style]
  /task add|toggle|rm
  /term clear      /wipe     /reset
  /bookmark [n]    /bookmark list
  /copy [n]
  /style accent: #hex; markdown: dracula
  /sandbox system|temp|topk|topp <v>
  /sandbox example <in> => <out>
  /sandbox rmexample <n> | clear
  /quit`
