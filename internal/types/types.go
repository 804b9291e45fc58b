// Package types provides shared type definitions used across astra packages.
// This package exists to break import cycles between chat, session, store and llm.
// Types in this package should be foundational data structures with no complex dependencies.
package types

import (
	"strings"
	"time"
)

// =============================================================================
// MESSAGES
// =============================================================================

// Role identifies the author of a message.
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// GroundingLink is a citation returned alongside generated text.
type GroundingLink struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Message is one entry of a conversation. JSON keys follow the session record
// layout shared with the web client.
type Message struct {
	ID             string          `json:"id"`
	Role           Role            `json:"role"`
	Text           string          `json:"text"`
	Timestamp      int64           `json:"timestamp"`
	Image          string          `json:"image,omitempty"` // data URL
	IsGenerating   bool            `json:"isGenerating,omitempty"`
	GroundingLinks []GroundingLink `json:"groundingLinks,omitempty"`
	Thought        string          `json:"thought,omitempty"`
	IsVision       bool            `json:"isVision,omitempty"`
	PDFName        string          `json:"pdfName,omitempty"`
	IsError        bool            `json:"isError,omitempty"`
	IsBookmarked   bool            `json:"isBookmarked,omitempty"`
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	if m.GroundingLinks != nil {
		links := make([]GroundingLink, len(m.GroundingLinks))
		copy(links, m.GroundingLinks)
		m.GroundingLinks = links
	}
	return m
}

// CloneMessages deep-copies a message slice.
func CloneMessages(in []Message) []Message {
	if in == nil {
		return nil
	}
	out := make([]Message, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}

// =============================================================================
// PANELS
// =============================================================================

// Task is an entry of the task list panel.
type Task struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// UserMemory holds durable facts about the user.
type UserMemory struct {
	Facts []string `json:"facts"`
}

// TerminalLog is one command/output pair of the terminal transcript.
type TerminalLog struct {
	ID        string `json:"id"`
	Command   string `json:"command"`
	Output    string `json:"output"`
	Timestamp int64  `json:"timestamp"`
}

// =============================================================================
// SANDBOX
// =============================================================================

// FewShotExample is an input/output pair replayed before sandbox prompts.
type FewShotExample struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// SandboxConfig holds the generation parameters of the prompt playground.
type SandboxConfig struct {
	SystemInstruction string           `json:"systemInstruction"`
	Temperature       float64          `json:"temperature"`
	TopK              int              `json:"topK"`
	TopP              float64          `json:"topP"`
	Examples          []FewShotExample `json:"examples"`
}

// DefaultSandboxConfig returns the playground defaults.
func DefaultSandboxConfig() SandboxConfig {
	return SandboxConfig{
		SystemInstruction: "You are a helpful test assistant.",
		Temperature:       1,
		TopK:              40,
		TopP:              0.95,
		Examples:          []FewShotExample{},
	}
}

// Clone returns a deep copy of the config.
func (c SandboxConfig) Clone() SandboxConfig {
	ex := make([]FewShotExample, len(c.Examples))
	copy(ex, c.Examples)
	c.Examples = ex
	return c
}

// =============================================================================
// MODELS, AGENTS, IMAGE GENERATION
// =============================================================================

// ModelID names a hosted model.
type ModelID string

const (
	ModelFlash      ModelID = "gemini-3-flash-preview"
	ModelLite       ModelID = "gemini-2.5-flash-lite-latest"
	ModelPro        ModelID = "gemini-3-pro-preview"
	ModelImageFlash ModelID = "gemini-2.5-flash-image"
	ModelImagePro   ModelID = "gemini-3-pro-image-preview"
)

// ChatModels lists the models selectable for conversation.
var ChatModels = []ModelID{ModelFlash, ModelLite, ModelPro}

// Label returns the display name of a chat model.
func (m ModelID) Label() string {
	switch m {
	case ModelPro:
		return "Gemini 3 Pro"
	case ModelFlash:
		return "Gemini 3 Flash"
	default:
		return "Gemini 2.5 Flash Lite"
	}
}

// Agent is a persona that shapes the system instruction.
type Agent string

const (
	AgentGeneral    Agent = "General"
	AgentResearcher Agent = "Researcher"
	AgentCreative   Agent = "Creative"
	AgentCoder      Agent = "Coder"
	AgentAnalyst    Agent = "Analyst"
	AgentArchitect  Agent = "Architect"
	AgentNodeJS     Agent = "Node.js Expert"
)

// Agents lists every persona in menu order.
var Agents = []Agent{AgentGeneral, AgentResearcher, AgentCreative, AgentCoder, AgentAnalyst, AgentArchitect, AgentNodeJS}

var agentDescriptions = map[Agent]string{
	AgentGeneral:    "Helpful, concise, and balanced assistance for everyday tasks.",
	AgentResearcher: "Deep dives with citations and Google Search grounding.",
	AgentCreative:   "Poetic, artistic, and imaginative storytelling.",
	AgentCoder:      "Code generation, terminal access, and software logic.",
	AgentAnalyst:    "Data extraction, summarization, and logical deduction.",
	AgentArchitect:  "System design, software architecture, and high-level planning.",
	AgentNodeJS:     "Node.js runtime, npm ecosystem, and backend JavaScript expertise.",
}

// Description returns the one-line summary shown in the agent menu.
func (a Agent) Description() string {
	return agentDescriptions[a]
}

// ParseAgent resolves a case-insensitive agent name.
func ParseAgent(name string) (Agent, bool) {
	for _, a := range Agents {
		if strings.EqualFold(string(a), strings.TrimSpace(name)) {
			return a, true
		}
	}
	return "", false
}

// ImageStyle is a rendering style hint for image generation.
type ImageStyle string

// ImageStyles lists the supported styles.
var ImageStyles = []ImageStyle{"None", "Photorealistic", "Anime", "Digital Art", "Oil Painting", "Pixel Art", "3D Render", "Watercolor", "Sketch"}

// AspectRatios lists the supported image aspect ratios.
var AspectRatios = []string{"1:1", "3:4", "4:3", "9:16", "16:9"}

// ImageGenConfig configures image generation requests.
type ImageGenConfig struct {
	AspectRatio string     `json:"aspectRatio"`
	Quality     string     `json:"quality"` // standard, high
	Style       ImageStyle `json:"style"`
}

// DefaultImageGenConfig returns the image generation defaults.
func DefaultImageGenConfig() ImageGenConfig {
	return ImageGenConfig{AspectRatio: "1:1", Quality: "standard", Style: "None"}
}

// =============================================================================
// SESSION RECORD
// =============================================================================

// SessionData is everything persisted for a user between runs.
type SessionData struct {
	Memory        UserMemory    `json:"memory"`
	Tasks         []Task        `json:"tasks"`
	Messages      []Message     `json:"messages"`
	SandboxConfig SandboxConfig `json:"sandboxConfig"`
	TerminalLogs  []TerminalLog `json:"terminalLogs"`
	CustomStyle   string        `json:"customCSS"`
}

// DefaultSessionData returns the documented defaults used when nothing is stored.
func DefaultSessionData() SessionData {
	return SessionData{
		Memory:        UserMemory{Facts: []string{}},
		Tasks:         []Task{},
		Messages:      []Message{},
		SandboxConfig: DefaultSandboxConfig(),
		TerminalLogs:  []TerminalLog{},
		CustomStyle:   "",
	}
}

// NowMillis returns the current time in unix milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// =============================================================================
// STREAMING
// =============================================================================

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Chunk is one element of a streamed model response.
type Chunk struct {
	Text      string
	Links     []GroundingLink
	ToolCalls []ToolCall
}
