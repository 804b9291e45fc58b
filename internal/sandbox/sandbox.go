// Package sandbox is the prompt playground: an isolated conversation with
// its own system instruction, sampling parameters and few-shot examples.
package sandbox

import (
	"fmt"
	"strings"
	"sync"

	"astra/internal/conversation"
	"astra/internal/logging"
	"astra/internal/types"
)

// Parameter bounds accepted by the setters.
const (
	MaxTemperature = 2.0
	MaxTopK        = 100
)

// Sandbox owns the playground conversation and configuration. Messages are
// never persisted; the configuration is.
type Sandbox struct {
	mu       sync.RWMutex
	cfg      types.SandboxConfig
	conv     *conversation.Store
	onChange func()
}

// New creates a sandbox with the default configuration.
func New() *Sandbox {
	return &Sandbox{
		cfg:  types.DefaultSandboxConfig(),
		conv: conversation.New(),
	}
}

// Conversation returns the playground conversation.
func (s *Sandbox) Conversation() *conversation.Store { return s.conv }

// OnChange sets the callback fired after a configuration change.
func (s *Sandbox) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Sandbox) update(fn func(*types.SandboxConfig) error) error {
	s.mu.Lock()
	if err := fn(&s.cfg); err != nil {
		s.mu.Unlock()
		return err
	}
	cb := s.onChange
	s.mu.Unlock()
	logging.Get(logging.CategorySandbox).Debug("sandbox config updated")
	if cb != nil {
		cb()
	}
	return nil
}

// Config returns a copy of the configuration.
func (s *Sandbox) Config() types.SandboxConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Replace swaps in a restored configuration without firing the callback.
func (s *Sandbox) Replace(cfg types.SandboxConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg.Clone()
}

// SetSystemInstruction sets the playground system instruction.
func (s *Sandbox) SetSystemInstruction(text string) error {
	return s.update(func(c *types.SandboxConfig) error {
		c.SystemInstruction = text
		return nil
	})
}

// SetTemperature sets the sampling temperature, 0 to MaxTemperature.
func (s *Sandbox) SetTemperature(v float64) error {
	if v < 0 || v > MaxTemperature {
		return fmt.Errorf("temperature %.2f out of range [0, %.1f]", v, MaxTemperature)
	}
	return s.update(func(c *types.SandboxConfig) error {
		c.Temperature = v
		return nil
	})
}

// SetTopK sets top-k sampling, 1 to MaxTopK.
func (s *Sandbox) SetTopK(v int) error {
	if v < 1 || v > MaxTopK {
		return fmt.Errorf("topK %d out of range [1, %d]", v, MaxTopK)
	}
	return s.update(func(c *types.SandboxConfig) error {
		c.TopK = v
		return nil
	})
}

// SetTopP sets nucleus sampling, 0 to 1.
func (s *Sandbox) SetTopP(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("topP %.2f out of range [0, 1]", v)
	}
	return s.update(func(c *types.SandboxConfig) error {
		c.TopP = v
		return nil
	})
}

// AddExample appends a few-shot example.
func (s *Sandbox) AddExample(input, output string) error {
	if strings.TrimSpace(input) == "" && strings.TrimSpace(output) == "" {
		return fmt.Errorf("example needs an input or an output")
	}
	return s.update(func(c *types.SandboxConfig) error {
		c.Examples = append(c.Examples, types.FewShotExample{Input: input, Output: output})
		return nil
	})
}

// UpdateExample replaces the example at index i.
func (s *Sandbox) UpdateExample(i int, input, output string) error {
	return s.update(func(c *types.SandboxConfig) error {
		if i < 0 || i >= len(c.Examples) {
			return fmt.Errorf("example %d does not exist", i)
		}
		c.Examples[i] = types.FewShotExample{Input: input, Output: output}
		return nil
	})
}

// RemoveExample deletes the example at index i.
func (s *Sandbox) RemoveExample(i int) error {
	return s.update(func(c *types.SandboxConfig) error {
		if i < 0 || i >= len(c.Examples) {
			return fmt.Errorf("example %d does not exist", i)
		}
		c.Examples = append(c.Examples[:i], c.Examples[i+1:]...)
		return nil
	})
}

// Clear drops the playground messages. The configuration is kept.
func (s *Sandbox) Clear() {
	s.conv.Reset()
}
