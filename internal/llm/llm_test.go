package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"astra/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestEffectiveModel(t *testing.T) {
	assert.Equal(t, types.ModelFlash, EffectiveModel(Request{}))
	assert.Equal(t, types.ModelLite, EffectiveModel(Request{Model: types.ModelLite}))
	assert.Equal(t, types.ModelPro, EffectiveModel(Request{Model: types.ModelLite, CodeMode: true}))
	sb := types.DefaultSandboxConfig()
	assert.Equal(t, types.ModelLite, EffectiveModel(Request{Model: types.ModelLite, Thinking: true, Sandbox: &sb}))
}

func TestSystemInstruction(t *testing.T) {
	got := SystemInstruction(Request{
		Agent:    types.AgentCoder,
		Thinking: true,
		Memory:   []string{"uses vim"},
		Tasks:    []types.Task{{ID: "a1", Text: "refactor", Completed: true}},
	})
	assert.Contains(t, got, "Persona: Coder.")
	assert.Contains(t, got, "<thinking>")
	assert.Contains(t, got, "- uses vim")
	assert.Contains(t, got, "- [x] refactor (id a1)")
	assert.NotContains(t, got, "View mode")

	sb := types.DefaultSandboxConfig()
	assert.Equal(t, "You are a helpful test assistant.", SystemInstruction(Request{Sandbox: &sb, Memory: []string{"x"}}))
}

func TestUserTextAppendsDocument(t *testing.T) {
	assert.Equal(t, "hi", UserText(Request{Input: "hi"}))
	got := UserText(Request{DocumentName: "a.txt", DocumentText: "body"})
	assert.True(t, strings.HasPrefix(got, "Analyze the attached document."))
	assert.Contains(t, got, "--- Content of a.txt ---\nbody")
}

func TestBuildContents(t *testing.T) {
	sb := types.DefaultSandboxConfig()
	sb.Examples = []types.FewShotExample{{Input: "2+2", Output: "4"}}
	req := Request{
		Input: "3+3",
		History: []types.Message{
			{Role: types.RoleUser, Text: "earlier"},
			{Role: types.RoleModel, Text: "failed", IsError: true},
			{Role: types.RoleModel, Text: "reply"},
			{Role: types.RoleModel, Text: "", IsGenerating: true},
		},
		Image:   &Image{MimeType: "image/png", Data: []byte{1, 2}},
		Sandbox: &sb,
	}

	contents := BuildContents(req)
	require.Len(t, contents, 5)
	assert.Equal(t, "2+2", contents[0].Parts[0].Text)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	assert.Equal(t, "earlier", contents[2].Parts[0].Text)
	assert.Equal(t, "reply", contents[3].Parts[0].Text)

	last := contents[4]
	require.Len(t, last.Parts, 2)
	assert.Equal(t, "image/png", last.Parts[0].InlineData.MIMEType)
	assert.Equal(t, "3+3", last.Parts[1].Text)
}

func TestChunkFromResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "plan", Thought: true},
				{Text: "Hello "},
				{Text: "there"},
				{FunctionCall: &genai.FunctionCall{Name: "manage_tasks", Args: map[string]any{"action": "add"}}},
			}},
			GroundingMetadata: &genai.GroundingMetadata{GroundingChunks: []*genai.GroundingChunk{
				{Web: &genai.GroundingChunkWeb{URI: "https://a", Title: "A"}},
				{},
			}},
		}},
	}

	chunk := ChunkFromResponse(resp)
	assert.Equal(t, "Hello there", chunk.Text)
	assert.Equal(t, []types.GroundingLink{{URI: "https://a", Title: "A"}}, chunk.Links)
	require.Len(t, chunk.ToolCalls, 1)
	assert.Equal(t, "add", chunk.ToolCalls[0].Args["action"])

	assert.Equal(t, types.Chunk{}, ChunkFromResponse(&genai.GenerateContentResponse{}))
}

func TestParseFacts(t *testing.T) {
	facts, err := ParseFacts("```json\n[\"likes tea\", \"works nights\"]\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"likes tea", "works nights"}, facts)

	facts, err = ParseFacts("  ")
	require.NoError(t, err)
	assert.Nil(t, facts)

	_, err = ParseFacts("not json")
	assert.Error(t, err)
}

func TestImagePrompt(t *testing.T) {
	got := ImagePrompt(" a fox ", types.ImageGenConfig{AspectRatio: "16:9", Quality: "high", Style: "Anime"})
	assert.Equal(t, "a fox\nStyle: Anime.\nAspect ratio: 16:9.\nRender with fine detail.", got)
	assert.Equal(t, types.ModelImagePro, ImageModel(types.ImageGenConfig{Quality: "high"}))
	assert.Equal(t, types.ModelImageFlash, ImageModel(types.DefaultImageGenConfig()))
}

func TestMemoryPromptKeepsRecentMessages(t *testing.T) {
	var history []types.Message
	for i := 0; i < 30; i++ {
		history = append(history, types.Message{Role: types.RoleUser, Text: "msg"})
	}
	history[29].Text = "latest"
	got := MemoryPrompt(history)
	assert.Equal(t, maxMemoryMessages, strings.Count(got, "[USER]:"))
	assert.Contains(t, got, "[USER]: latest")
}

func TestMockModelEcho(t *testing.T) {
	m := NewMockModel()
	var b strings.Builder
	for c, err := range m.StreamChat(context.Background(), Request{Input: "hello there"}) {
		require.NoError(t, err)
		b.WriteString(c.Text)
	}
	assert.Equal(t, "You said: hello there", b.String())
	assert.Len(t, m.Requests(), 1)
}

func TestMockModelFailure(t *testing.T) {
	m := &MockModel{Chunks: []types.Chunk{{Text: "a"}, {Text: "b"}}, StreamErr: errors.New("boom"), FailAfter: 1}
	var texts []string
	var gotErr error
	for c, err := range m.StreamChat(context.Background(), Request{}) {
		if err != nil {
			gotErr = err
			break
		}
		texts = append(texts, c.Text)
	}
	assert.Equal(t, []string{"a"}, texts)
	assert.EqualError(t, gotErr, "boom")
}
