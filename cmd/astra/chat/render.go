package chat

import (
	"fmt"
	"strings"

	"astra/internal/content"
	"astra/internal/conversation"
	"astra/internal/types"
)

// cachedRender is the rendered form of a finished message.
type cachedRender struct {
	text       string
	bookmarked bool
	out        string
}

func (m Model) activeConversation() *conversation.Store {
	if m.sandboxOpen {
		return m.engine.Sandbox().Conversation()
	}
	return m.engine.Conversation()
}

// renderConversation renders every message of the visible conversation.
func (m Model) renderConversation() string {
	msgs := m.activeConversation().Messages()
	if len(msgs) == 0 {
		return m.renderWelcome()
	}
	var sb strings.Builder
	for i, msg := range msgs {
		sb.WriteString(m.renderMessage(i, msg))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderWelcome() string {
	if m.sandboxOpen {
		return m.styles.Subtitle.Render("Training sandbox. Try prompts against the configuration above; nothing here is saved.")
	}
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Welcome to Astra"))
	sb.WriteString("\n\n")
	sb.WriteString(m.styles.Muted.Render("Ask anything. Attach files with /attach <path>, switch agents with /agent, press F1 for help."))
	return sb.String()
}

// renderMessage renders one message. Finished messages are cached by id.
func (m Model) renderMessage(i int, msg types.Message) string {
	if !msg.IsGenerating {
		if c, ok := m.cache[msg.ID]; ok && c.text == msg.Text && c.bookmarked == msg.IsBookmarked {
			return c.out
		}
	}

	var sb strings.Builder
	sb.WriteString(m.renderLabel(i, msg))
	sb.WriteString("\n")

	switch msg.Role {
	case types.RoleUser:
		if msg.IsVision {
			sb.WriteString(m.styles.Muted.Render("[image attached]") + "\n")
		}
		if msg.PDFName != "" {
			sb.WriteString(m.styles.Muted.Render("[document: "+msg.PDFName+"]") + "\n")
		}
		sb.WriteString(m.styles.UserInput.Render(msg.Text))
		sb.WriteString("\n")
	default:
		sb.WriteString(m.renderModelBody(msg))
	}

	out := sb.String()
	if !msg.IsGenerating {
		m.cache[msg.ID] = cachedRender{text: msg.Text, bookmarked: msg.IsBookmarked, out: out}
	}
	return out
}

func (m Model) renderLabel(i int, msg types.Message) string {
	var label string
	if msg.Role == types.RoleUser {
		label = m.styles.UserLabel.Render("You")
	} else {
		label = m.styles.ModelLabel.Render("Astra")
	}
	label += m.styles.Muted.Render(fmt.Sprintf(" #%d", i+1))
	if msg.IsBookmarked {
		label += " " + m.styles.Bookmark.Render("★")
	}
	return label
}

func (m Model) renderModelBody(msg types.Message) string {
	if msg.IsError {
		return m.styles.Error.Render(msg.Text) + "\n"
	}
	if msg.IsGenerating && msg.Text == "" {
		return m.spinner.View() + " " + m.styles.Muted.Render("Thinking...") + "\n"
	}

	var sb strings.Builder
	parsed := content.Parse(msg.Text)
	if parsed.HasThought {
		sb.WriteString(m.renderThought(parsed.Thought))
		sb.WriteString("\n")
	}
	for _, seg := range parsed.Segments {
		switch seg.Kind {
		case content.KindCode:
			sb.WriteString(m.renderCode(seg))
		default:
			sb.WriteString(m.safeRenderMarkdown(seg.Text))
		}
	}
	if msg.Image != "" {
		sb.WriteString(m.styles.Info.Render(fmt.Sprintf("[generated image, %d KB data URL]", len(msg.Image)/1024)) + "\n")
	}
	if len(msg.GroundingLinks) > 0 {
		sb.WriteString(m.styles.Muted.Render("Sources:") + "\n")
		for _, l := range msg.GroundingLinks {
			title := l.Title
			if title == "" {
				title = l.URI
			}
			sb.WriteString("  " + m.styles.Link.Render(title) + " " + m.styles.Muted.Render(l.URI) + "\n")
		}
	}
	if msg.IsGenerating {
		sb.WriteString(m.spinner.View() + "\n")
	}
	return sb.String()
}

func (m Model) renderThought(thought string) string {
	w := m.contentWidth() - 4
	if w < minWrap {
		w = minWrap
	}
	body := strings.TrimSpace(thought)
	if body == "" {
		body = "..."
	}
	hdr := m.styles.ThoughtHdr.Render("Critical Analysis")
	return m.styles.ThoughtBox.Width(w).Render(hdr + "\n" + body)
}

func (m Model) renderCode(seg content.Segment) string {
	w := m.contentWidth() - 4
	if w < minWrap {
		w = minWrap
	}
	lang := m.styles.CodeLang.Render(seg.Lang)
	return lang + "\n" + m.styles.CodeBlock.Width(w).Render(strings.TrimRight(seg.Text, "\n")) + "\n"
}

// safeRenderMarkdown renders markdown with panic recovery
func (m Model) safeRenderMarkdown(text string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			// If glamour panics, return plain text
			result = text + "\n"
		}
	}()

	if strings.TrimSpace(text) == "" {
		return ""
	}
	if m.renderer != nil {
		rendered, err := m.renderer.Render(text)
		if err == nil {
			return rendered
		}
	}
	return text + "\n"
}
