package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"astra/internal/logging"
	"astra/internal/types"

	"google.golang.org/genai"
)

// GeminiConfig configures GeminiClient.
type GeminiConfig struct {
	APIKey          string
	MemoryModel     string
	ImageModel      string
	MaxOutputTokens int
	Timeout         time.Duration
}

// GeminiClient implements Model on the Gemini API.
type GeminiClient struct {
	client *genai.Client
	cfg    GeminiConfig
}

// NewGeminiClient creates a client for the Gemini API.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if cfg.MemoryModel == "" {
		cfg.MemoryModel = string(types.ModelLite)
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = string(types.ModelImageFlash)
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 8192
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	logging.API("Gemini client ready (memory=%s image=%s)", cfg.MemoryModel, cfg.ImageModel)
	return &GeminiClient{client: client, cfg: cfg}, nil
}

// StreamChat implements Model.
func (g *GeminiClient) StreamChat(ctx context.Context, req Request) iter.Seq2[types.Chunk, error] {
	return func(yield func(types.Chunk, error) bool) {
		if g.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
			defer cancel()
		}

		model := string(EffectiveModel(req))
		contents := BuildContents(req)
		config := g.chatConfig(req)
		logging.API("streaming %s: %d contents, sandbox=%t", model, len(contents), req.Sandbox != nil)

		timer := logging.StartTimer(logging.CategoryAPI, "StreamChat "+model)
		defer timer.Stop()

		for resp, err := range g.client.Models.GenerateContentStream(ctx, model, contents, config) {
			if err != nil {
				logging.APIError("stream %s failed: %v", model, err)
				yield(types.Chunk{}, fmt.Errorf("gemini stream: %w", err))
				return
			}
			if !yield(ChunkFromResponse(resp), nil) {
				return
			}
		}
	}
}

func (g *GeminiClient) chatConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemInstruction(req), genai.RoleUser),
		MaxOutputTokens:   int32(g.cfg.MaxOutputTokens),
	}

	if sb := req.Sandbox; sb != nil {
		cfg.Temperature = genai.Ptr(float32(sb.Temperature))
		cfg.TopK = genai.Ptr(float32(sb.TopK))
		cfg.TopP = genai.Ptr(float32(sb.TopP))
		return cfg
	}

	if req.Agent == types.AgentResearcher {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	} else {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: toolDeclarations()}}
	}
	if req.Thinking && EffectiveModel(req) == types.ModelPro {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(int32(16384))}
	}
	return cfg
}

func toolDeclarations() []*genai.FunctionDeclaration {
	return []*genai.FunctionDeclaration{
		{
			Name:        "manage_tasks",
			Description: "Add, remove, toggle or complete an entry of the user's task list.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"action": {Type: genai.TypeString, Enum: []string{"add", "remove", "toggle", "complete"}},
					"task":   {Type: genai.TypeString, Description: "Task text, for add."},
					"id":     {Type: genai.TypeString, Description: "Task id, for remove, toggle and complete."},
				},
				Required: []string{"action"},
			},
		},
		{
			Name:        "log_terminal",
			Description: "Record a shell command and its output in the user's terminal panel.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"command": {Type: genai.TypeString},
					"output":  {Type: genai.TypeString},
				},
				Required: []string{"command", "output"},
			},
		},
	}
}

// BuildContents converts the history and the current turn into request
// contents. Sandbox examples are replayed as prior turns.
func BuildContents(req Request) []*genai.Content {
	var contents []*genai.Content

	if req.Sandbox != nil {
		for _, ex := range req.Sandbox.Examples {
			contents = append(contents,
				genai.NewContentFromText(ex.Input, genai.RoleUser),
				genai.NewContentFromText(ex.Output, genai.RoleModel),
			)
		}
	}

	for _, m := range req.History {
		if m.IsError || m.IsGenerating || strings.TrimSpace(m.Text) == "" {
			continue
		}
		var role genai.Role
		switch m.Role {
		case types.RoleModel:
			role = genai.RoleModel
		default:
			role = genai.RoleUser
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}

	parts := []*genai.Part{}
	if req.Image != nil {
		parts = append(parts, genai.NewPartFromBytes(req.Image.Data, req.Image.MimeType))
	}
	text := UserText(req)
	if text == "" && req.Image != nil {
		text = "Describe this image."
	}
	parts = append(parts, genai.NewPartFromText(text))
	contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
	return contents
}

// ChunkFromResponse extracts text, citations and tool calls from one
// streamed response. Thought parts are skipped.
func ChunkFromResponse(resp *genai.GenerateContentResponse) types.Chunk {
	var chunk types.Chunk
	if resp == nil || len(resp.Candidates) == 0 {
		return chunk
	}
	cand := resp.Candidates[0]
	if cand.Content != nil {
		var b strings.Builder
		for _, p := range cand.Content.Parts {
			if p == nil {
				continue
			}
			if p.FunctionCall != nil {
				chunk.ToolCalls = append(chunk.ToolCalls, types.ToolCall{Name: p.FunctionCall.Name, Args: p.FunctionCall.Args})
				continue
			}
			if p.Thought {
				continue
			}
			b.WriteString(p.Text)
		}
		chunk.Text = b.String()
	}
	if gm := cand.GroundingMetadata; gm != nil {
		for _, gc := range gm.GroundingChunks {
			if gc == nil || gc.Web == nil {
				continue
			}
			chunk.Links = append(chunk.Links, types.GroundingLink{URI: gc.Web.URI, Title: gc.Web.Title})
		}
	}
	return chunk
}

// ExtractMemory implements Model.
func (g *GeminiClient) ExtractMemory(ctx context.Context, history []types.Message) ([]string, error) {
	contents := []*genai.Content{genai.NewContentFromText(MemoryPrompt(history), genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
		Temperature: genai.Ptr(float32(0.2)),
	}

	res, err := g.client.Models.GenerateContent(ctx, g.cfg.MemoryModel, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("memory extraction: %w", err)
	}
	return ParseFacts(res.Text())
}

// ParseFacts decodes the JSON array returned by an extraction pass.
func ParseFacts(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	var facts []string
	if err := json.Unmarshal([]byte(text), &facts); err != nil {
		return nil, fmt.Errorf("memory extraction returned invalid JSON: %w", err)
	}
	return facts, nil
}

// ErrNoImage is returned when the image model answers without image data.
var ErrNoImage = errors.New("the model did not return an image")

// GenerateImage implements Model.
func (g *GeminiClient) GenerateImage(ctx context.Context, prompt string, cfg types.ImageGenConfig) (*Image, error) {
	model := g.cfg.ImageModel
	if cfg.Quality == "high" {
		model = string(ImageModel(cfg))
	}
	logging.API("generating image with %s (%s, %s)", model, cfg.AspectRatio, cfg.Style)

	contents := []*genai.Content{genai.NewContentFromText(ImagePrompt(prompt, cfg), genai.RoleUser)}
	res, err := g.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("image generation: %w", err)
	}
	for _, cand := range res.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
				return &Image{MimeType: p.InlineData.MIMEType, Data: p.InlineData.Data}, nil
			}
		}
	}
	return nil, ErrNoImage
}
