package sandbox

import (
	"testing"

	"astra/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	s := New()
	assert.Equal(t, types.DefaultSandboxConfig(), s.Config())
	assert.Equal(t, 0, s.Conversation().Len())
}

func TestSetters(t *testing.T) {
	s := New()
	calls := 0
	s.OnChange(func() { calls++ })

	require.NoError(t, s.SetSystemInstruction("Be terse."))
	require.NoError(t, s.SetTemperature(0.3))
	require.NoError(t, s.SetTopK(10))
	require.NoError(t, s.SetTopP(0.5))

	cfg := s.Config()
	assert.Equal(t, "Be terse.", cfg.SystemInstruction)
	assert.Equal(t, 0.3, cfg.Temperature)
	assert.Equal(t, 10, cfg.TopK)
	assert.Equal(t, 0.5, cfg.TopP)
	assert.Equal(t, 4, calls)

	assert.Error(t, s.SetTemperature(2.5))
	assert.Error(t, s.SetTopK(0))
	assert.Error(t, s.SetTopP(1.1))
	assert.Equal(t, 4, calls)
}

func TestExamples(t *testing.T) {
	s := New()
	require.NoError(t, s.AddExample("hi", "hello"))
	require.NoError(t, s.AddExample("bye", "ciao"))
	require.NoError(t, s.UpdateExample(1, "bye", "farewell"))
	require.NoError(t, s.RemoveExample(0))

	assert.Equal(t, []types.FewShotExample{{Input: "bye", Output: "farewell"}}, s.Config().Examples)
	assert.Error(t, s.RemoveExample(3))
	assert.Error(t, s.UpdateExample(-1, "", ""))
	assert.Error(t, s.AddExample(" ", ""))
}

func TestConfigIsCopy(t *testing.T) {
	s := New()
	require.NoError(t, s.AddExample("a", "b"))
	cfg := s.Config()
	cfg.Examples[0].Input = "mutated"
	assert.Equal(t, "a", s.Config().Examples[0].Input)
}

func TestClearKeepsConfig(t *testing.T) {
	s := New()
	require.NoError(t, s.SetTopK(5))
	s.Conversation().Append(types.Message{ID: "1", Role: types.RoleUser, Text: "x"})
	s.Clear()
	assert.Equal(t, 0, s.Conversation().Len())
	assert.Equal(t, 5, s.Config().TopK)
}
