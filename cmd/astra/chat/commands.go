package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"astra/internal/types"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

// saveTimeout bounds the immediate saves made by /reset and /wipe.
const saveTimeout = 15 * time.Second

// runCommand executes a slash command.
func (m Model) runCommand(line string) (Model, tea.Cmd) {
	fields := strings.Fields(line)
	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	args := fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch name {
	case "help", "?":
		m.setPanel(panelHelp)
	case "quit", "exit", "q":
		return m, tea.Quit

	case "attach":
		if rest == "" {
			m.setNotice("Usage: /attach <path>", true)
			break
		}
		a, err := m.engine.Attach(rest)
		if err != nil {
			m.setNotice(fmt.Sprintf("Cannot attach %s: %v", rest, err), true)
			break
		}
		m.setNotice(fmt.Sprintf("Attached %s (%s). It will be sent with your next message.", a.Name, a.Kind), false)
	case "detach":
		m.engine.ClearAttachment()
		m.setNotice("Attachment removed.", false)

	case "model":
		if rest == "" {
			m.setNotice("Models: "+modelList(), false)
			break
		}
		mid, ok := findModel(rest)
		if !ok {
			m.setNotice(fmt.Sprintf("Unknown model %q. Models: %s", rest, modelList()), true)
			break
		}
		m.engine.SetModel(mid)
		m.setNotice("Model: "+mid.Label(), false)
	case "agent":
		if rest == "" {
			m.setNotice("Agents: "+agentList(), false)
			break
		}
		a, ok := types.ParseAgent(rest)
		if !ok {
			m.setNotice(fmt.Sprintf("Unknown agent %q. Agents: %s", rest, agentList()), true)
			break
		}
		m.engine.SetAgent(a)
		m.setNotice(fmt.Sprintf("Agent: %s. %s", a, a.Description()), false)
	case "think":
		m.toggleThinking()
	case "view":
		m.setNotice("View mode "+onOff(m.engine.ToggleViewMode()), false)
	case "code":
		m.setNotice("Code mode "+onOff(m.engine.ToggleCodeMode()), false)
	case "image":
		m.imageCommand(args)

	case "reset", "clear":
		if m.sandboxOpen {
			m.engine.Sandbox().Clear()
			m.setNotice("Sandbox conversation cleared.", false)
			break
		}
		ctx, cancel := context.WithTimeout(m.ctx, saveTimeout)
		err := m.engine.Reset(ctx)
		cancel()
		if err != nil {
			m.setNotice("Chat cleared, but saving failed: "+err.Error(), true)
			break
		}
		m.setNotice("Chat cleared.", false)
	case "wipe":
		ctx, cancel := context.WithTimeout(m.ctx, saveTimeout)
		err := m.engine.WipeMemory(ctx)
		cancel()
		if err != nil {
			m.setNotice("Memory wiped, but saving failed: "+err.Error(), true)
			break
		}
		m.setNotice("Memory wiped.", false)

	case "task", "tasks":
		m.taskCommand(args)
	case "term", "terminal":
		if len(args) == 1 && args[0] == "clear" {
			m.engine.Terminal().Clear()
			m.setNotice("Terminal cleared.", false)
			break
		}
		m.setPanel(panelTerminal)

	case "bookmark", "bm":
		m.bookmarkCommand(args)
	case "copy":
		m.copyCommand(args)
	case "style":
		if err := m.applyStyle(rest); err != nil {
			m.applyStyle(m.engine.CustomStyle())
			m.setNotice("Invalid style: "+err.Error(), true)
			break
		}
		m.engine.SetCustomStyle(rest)
		m.setNotice("Style updated.", false)

	case "sandbox", "sb":
		m.sandboxCommand(args, rest)

	default:
		m.setNotice(fmt.Sprintf("Unknown command /%s. Press F1 for help.", name), true)
	}
	m.refreshContent()
	return m, nil
}

func (m *Model) taskCommand(args []string) {
	if len(args) == 0 {
		m.setPanel(panelTasks)
		return
	}
	list := m.engine.Tasks()
	sub, rest := strings.ToLower(args[0]), strings.Join(args[1:], " ")
	switch sub {
	case "add":
		t, err := list.Add(rest)
		if err != nil {
			m.setNotice(err.Error(), true)
			return
		}
		m.setNotice("Added task "+t.ID, false)
	case "toggle", "done":
		if _, err := list.Toggle(m.resolveTaskID(rest)); err != nil {
			m.setNotice(err.Error(), true)
		}
	case "rm", "remove":
		if err := list.Remove(m.resolveTaskID(rest)); err != nil {
			m.setNotice(err.Error(), true)
		}
	default:
		m.setNotice("Usage: /task add <text> | toggle <id|n> | rm <id|n>", true)
		return
	}
	m.setPanel(panelTasks)
}

// resolveTaskID accepts a task id or its 1-based position in the panel.
func (m *Model) resolveTaskID(ref string) string {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil {
		list := m.engine.Tasks().List()
		if n >= 1 && n <= len(list) {
			return list[n-1].ID
		}
	}
	return ref
}

// messageAt resolves a 1-based message number in the visible conversation.
// Without an argument the last model message is used.
func (m *Model) messageAt(args []string) (int, types.Message, bool) {
	msgs := m.activeConversation().Messages()
	if len(args) == 0 {
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].Role == types.RoleModel {
				return i, msgs[i], true
			}
		}
		m.setNotice("No reply yet.", true)
		return 0, types.Message{}, false
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(msgs) {
		m.setNotice(fmt.Sprintf("No message #%s.", args[0]), true)
		return 0, types.Message{}, false
	}
	return n - 1, msgs[n-1], true
}

func (m *Model) bookmarkCommand(args []string) {
	if len(args) == 1 && args[0] == "list" {
		m.setPanel(panelBookmarks)
		return
	}
	i, msg, ok := m.messageAt(args)
	if !ok {
		return
	}
	if err := m.activeConversation().ToggleBookmark(msg.ID); err != nil {
		m.setNotice(err.Error(), true)
		return
	}
	if msg.IsBookmarked {
		m.setNotice(fmt.Sprintf("Removed bookmark #%d.", i+1), false)
	} else {
		m.setNotice(fmt.Sprintf("Bookmarked #%d.", i+1), false)
	}
}

func (m *Model) copyCommand(args []string) {
	i, _, ok := m.messageAt(args)
	if !ok {
		return
	}
	text, err := m.activeConversation().CopyContext(i)
	if err != nil {
		m.setNotice(err.Error(), true)
		return
	}
	if err := clipboard.WriteAll(text); err != nil {
		m.setNotice("Clipboard unavailable: "+err.Error(), true)
		return
	}
	m.setNotice(fmt.Sprintf("Copied #%d with context.", i+1), false)
}

func (m *Model) imageCommand(args []string) {
	cfg := m.engine.Options().ImageConfig
	if len(args) == 0 {
		m.setNotice(fmt.Sprintf("Image: %s, %s quality, style %s. Usage: /image <ratio> [standard|high] [style]", cfg.AspectRatio, cfg.Quality, cfg.Style), false)
		return
	}
	for i, a := range args {
		switch {
		case contains(types.AspectRatios, a):
			cfg.AspectRatio = a
		case a == "standard" || a == "high":
			cfg.Quality = a
		default:
			style, ok := findStyle(strings.Join(args[i:], " "))
			if !ok {
				m.setNotice(fmt.Sprintf("Unknown image option %q.", strings.Join(args[i:], " ")), true)
				return
			}
			cfg.Style = style
			m.engine.SetImageConfig(cfg)
			m.setNotice(fmt.Sprintf("Image: %s, %s quality, style %s.", cfg.AspectRatio, cfg.Quality, cfg.Style), false)
			return
		}
	}
	m.engine.SetImageConfig(cfg)
	m.setNotice(fmt.Sprintf("Image: %s, %s quality, style %s.", cfg.AspectRatio, cfg.Quality, cfg.Style), false)
}

func (m *Model) sandboxCommand(args []string, rest string) {
	if len(args) == 0 {
		m.sandboxOpen = !m.sandboxOpen
		return
	}
	sb := m.engine.Sandbox()
	value := strings.TrimSpace(strings.TrimPrefix(rest, args[0]))
	var err error
	switch strings.ToLower(args[0]) {
	case "system":
		err = sb.SetSystemInstruction(value)
	case "temp", "temperature":
		var v float64
		if v, err = strconv.ParseFloat(value, 64); err == nil {
			err = sb.SetTemperature(v)
		}
	case "topk":
		var v int
		if v, err = strconv.Atoi(value); err == nil {
			err = sb.SetTopK(v)
		}
	case "topp":
		var v float64
		if v, err = strconv.ParseFloat(value, 64); err == nil {
			err = sb.SetTopP(v)
		}
	case "example":
		in, out, ok := strings.Cut(value, "=>")
		if !ok {
			err = fmt.Errorf("usage: /sandbox example <input> => <output>")
			break
		}
		err = sb.AddExample(strings.TrimSpace(in), strings.TrimSpace(out))
	case "rmexample":
		var n int
		if n, err = strconv.Atoi(value); err == nil {
			err = sb.RemoveExample(n - 1)
		}
	case "clear":
		sb.Clear()
	default:
		err = fmt.Errorf("unknown sandbox setting %q", args[0])
	}
	if err != nil {
		m.setNotice(err.Error(), true)
		return
	}
	m.sandboxOpen = true
	m.setNotice("Sandbox updated.", false)
}

func findModel(name string) (types.ModelID, bool) {
	for _, id := range types.ChatModels {
		if string(id) == name || strings.EqualFold(id.Label(), name) {
			return id, true
		}
	}
	return "", false
}

func modelList() string {
	names := make([]string, len(types.ChatModels))
	for i, id := range types.ChatModels {
		names[i] = string(id)
	}
	return strings.Join(names, ", ")
}

func agentList() string {
	names := make([]string, len(types.Agents))
	for i, a := range types.Agents {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func findStyle(s string) (types.ImageStyle, bool) {
	for _, v := range types.ImageStyles {
		if strings.EqualFold(string(v), s) {
			return v, true
		}
	}
	return "", false
}
