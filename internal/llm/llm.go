// Package llm talks to the hosted model service.
package llm

import (
	"context"
	"encoding/base64"
	"iter"

	"astra/internal/types"
)

// Model is the model service used by the chat engine.
type Model interface {
	// StreamChat streams the reply to req.
	StreamChat(ctx context.Context, req Request) iter.Seq2[types.Chunk, error]
	// ExtractMemory returns durable facts about the user found in history.
	ExtractMemory(ctx context.Context, history []types.Message) ([]string, error)
	// GenerateImage renders prompt as an image.
	GenerateImage(ctx context.Context, prompt string, cfg types.ImageGenConfig) (*Image, error)
}

// Image is inline image data.
type Image struct {
	MimeType string
	Data     []byte
}

// DataURL returns the image as a base64 data URL.
func (i *Image) DataURL() string {
	return "data:" + i.MimeType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Request describes one chat turn.
type Request struct {
	Input   string
	History []types.Message

	Model    types.ModelID
	Agent    types.Agent
	Thinking bool
	ViewMode bool
	CodeMode bool

	Image        *Image
	DocumentName string
	DocumentText string

	Memory []string
	Tasks  []types.Task

	// Sandbox switches the request to playground settings. Memory, tasks
	// and tools are not used.
	Sandbox *types.SandboxConfig
}

// EffectiveModel returns the model that serves req. Thinking and code
// modes always run on the pro model.
func EffectiveModel(req Request) types.ModelID {
	if req.Sandbox == nil && (req.Thinking || req.CodeMode) {
		return types.ModelPro
	}
	if req.Model == "" {
		return types.ModelFlash
	}
	return req.Model
}

// UserText returns the prompt text sent for the current turn, with any
// attached document appended.
func UserText(req Request) string {
	if req.DocumentText == "" {
		return req.Input
	}
	name := req.DocumentName
	if name == "" {
		name = "document"
	}
	input := req.Input
	if input == "" {
		input = "Analyze the attached document."
	}
	return input + "\n\n--- Content of " + name + " ---\n" + req.DocumentText
}
