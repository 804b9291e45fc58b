package llm

import (
	"context"
	"iter"
	"strings"
	"sync"

	"astra/internal/types"
)

// MockModel is an offline Model with scripted replies.
type MockModel struct {
	mu sync.Mutex

	// Chunks is streamed for every request. When empty the reply echoes
	// the input word by word.
	Chunks []types.Chunk
	// StreamErr is yielded after FailAfter chunks.
	StreamErr error
	FailAfter int

	Facts     []string
	FactsErr  error
	ImageErr  error
	ImageData []byte

	// Gate, when set, is received from before streaming starts.
	Gate chan struct{}

	requests []Request
	extracts int
}

// NewMockModel creates a MockModel with echo replies.
func NewMockModel() *MockModel {
	return &MockModel{}
}

// StreamChat implements Model.
func (m *MockModel) StreamChat(ctx context.Context, req Request) iter.Seq2[types.Chunk, error] {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	chunks := m.Chunks
	streamErr, failAfter := m.StreamErr, m.FailAfter
	gate := m.Gate
	m.mu.Unlock()

	if len(chunks) == 0 {
		chunks = echoChunks(req)
	}

	return func(yield func(types.Chunk, error) bool) {
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				yield(types.Chunk{}, ctx.Err())
				return
			}
		}
		for i, c := range chunks {
			if streamErr != nil && i == failAfter {
				yield(types.Chunk{}, streamErr)
				return
			}
			if !yield(c, nil) {
				return
			}
		}
		if streamErr != nil && failAfter >= len(chunks) {
			yield(types.Chunk{}, streamErr)
		}
	}
}

func echoChunks(req Request) []types.Chunk {
	text := UserText(req)
	if text == "" {
		text = "(empty)"
	}
	words := strings.SplitAfter("You said: "+text, " ")
	chunks := make([]types.Chunk, 0, len(words))
	for _, w := range words {
		chunks = append(chunks, types.Chunk{Text: w})
	}
	return chunks
}

// ExtractMemory implements Model.
func (m *MockModel) ExtractMemory(_ context.Context, _ []types.Message) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extracts++
	if m.FactsErr != nil {
		return nil, m.FactsErr
	}
	out := make([]string, len(m.Facts))
	copy(out, m.Facts)
	return out, nil
}

// GenerateImage implements Model.
func (m *MockModel) GenerateImage(_ context.Context, _ string, _ types.ImageGenConfig) (*Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ImageErr != nil {
		return nil, m.ImageErr
	}
	data := m.ImageData
	if data == nil {
		data = []byte{0x89, 'P', 'N', 'G'}
	}
	return &Image{MimeType: "image/png", Data: data}, nil
}

// Requests returns the chat requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Extractions returns how many extraction passes ran.
func (m *MockModel) Extractions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.extracts
}
