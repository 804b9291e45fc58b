package llm

import (
	"fmt"
	"strings"

	"astra/internal/types"
)

const baseSystemPrompt = `You are Astra, a capable assistant running in the user's terminal.
Answer in the same language as the user. Use Markdown. Put code in fenced blocks with a language tag.`

var agentInstructions = map[types.Agent]string{
	types.AgentGeneral:    "Be helpful, concise and balanced.",
	types.AgentResearcher: "Research thoroughly. Prefer current sources, cite them, and separate facts from speculation.",
	types.AgentCreative:   "Be imaginative and expressive. Favor vivid language, stories and poetry when it fits.",
	types.AgentCoder:      "You are an expert software engineer. Write correct, idiomatic code and explain trade-offs briefly. Use the log_terminal tool to record commands you suggest running.",
	types.AgentAnalyst:    "Extract, summarize and reason step by step. Present findings as structured lists or tables.",
	types.AgentArchitect:  "Think in systems: components, data flow, failure modes and scaling. Propose designs before code.",
	types.AgentNodeJS:     "You are a Node.js expert: runtime internals, the npm ecosystem and backend JavaScript.",
}

const thinkingInstruction = `Before answering, reason carefully inside <thinking>...</thinking> tags. Put only your final answer after the closing tag.`

const viewInstruction = `View mode: keep the answer short. At most a few sentences or bullet points.`

const codeInstruction = `Code mode: focus on working code. Give complete, runnable snippets and keep prose minimal.`

const toolInstruction = `You can manage the user's task list with manage_tasks (action add, remove, toggle or complete) and record shell commands with log_terminal.`

// SystemInstruction builds the system prompt of a main-chat request.
// Sandbox requests use the playground instruction verbatim.
func SystemInstruction(req Request) string {
	if req.Sandbox != nil {
		return req.Sandbox.SystemInstruction
	}

	var b strings.Builder
	b.WriteString(baseSystemPrompt)

	agent := req.Agent
	if agent == "" {
		agent = types.AgentGeneral
	}
	fmt.Fprintf(&b, "\n\nPersona: %s. %s", agent, agentInstructions[agent])

	if req.Thinking {
		b.WriteString("\n\n" + thinkingInstruction)
	}
	if req.ViewMode {
		b.WriteString("\n\n" + viewInstruction)
	}
	if req.CodeMode {
		b.WriteString("\n\n" + codeInstruction)
	}
	b.WriteString("\n\n" + toolInstruction)

	if len(req.Memory) > 0 {
		b.WriteString("\n\nKnown facts about the user:\n")
		for _, f := range req.Memory {
			b.WriteString("- " + f + "\n")
		}
	}
	if len(req.Tasks) > 0 {
		b.WriteString("\n\nThe user's current tasks:\n")
		for _, t := range req.Tasks {
			mark := " "
			if t.Completed {
				mark = "x"
			}
			fmt.Fprintf(&b, "- [%s] %s (id %s)\n", mark, t.Text, t.ID)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

const memoryPrompt = `Read the conversation below and list durable facts about the user worth remembering
in future conversations: name, preferences, projects, skills, goals. Ignore one-off requests.
Reply with a JSON array of short strings. Reply with [] if there is nothing new.

Conversation:
`

// maxMemoryMessages bounds how much history an extraction pass sees.
const maxMemoryMessages = 20

// MemoryPrompt formats history for the extraction pass.
func MemoryPrompt(history []types.Message) string {
	if len(history) > maxMemoryMessages {
		history = history[len(history)-maxMemoryMessages:]
	}
	var b strings.Builder
	b.WriteString(memoryPrompt)
	for _, m := range history {
		if m.IsError || m.Text == "" {
			continue
		}
		fmt.Fprintf(&b, "[%s]: %s\n", strings.ToUpper(string(m.Role)), m.Text)
	}
	return b.String()
}

// ImagePrompt decorates prompt with the requested style and framing.
func ImagePrompt(prompt string, cfg types.ImageGenConfig) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(prompt))
	if cfg.Style != "" && cfg.Style != "None" {
		fmt.Fprintf(&b, "\nStyle: %s.", cfg.Style)
	}
	if cfg.AspectRatio != "" {
		fmt.Fprintf(&b, "\nAspect ratio: %s.", cfg.AspectRatio)
	}
	if cfg.Quality == "high" {
		b.WriteString("\nRender with fine detail.")
	}
	return b.String()
}

// ImageModel picks the image model for a quality setting.
func ImageModel(cfg types.ImageGenConfig) types.ModelID {
	if cfg.Quality == "high" {
		return types.ModelImagePro
	}
	return types.ModelImageFlash
}
