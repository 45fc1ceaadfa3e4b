package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/phrazzld/recipe-queue/internal/generation"
)

// Reply is a scripted generator answer, used when the prompt contains Match.
type Reply struct {
	Match string
	Text  string
	Err   error
}

// MockGenerator implements generation.Generator for testing
type MockGenerator struct {
	// GenerateFn allows test cases to mock the Generate behavior
	GenerateFn func(ctx context.Context, prompt string) (string, error)

	// Replies are checked in order; the first whose Match is contained in
	// the prompt is returned
	Replies []Reply

	// Default response values
	Text string
	Err  error

	// Call tracking for verification
	GenerateCalls struct {
		// mu protects the call tracking state for concurrent test cases
		mu sync.Mutex

		// Count tracks how many times Generate was called
		Count int

		// Prompts contains all prompts passed to Generate calls
		Prompts []string
	}
}

var _ generation.Generator = (*MockGenerator)(nil)

// Generate implements the generation.Generator interface
func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.GenerateCalls.mu.Lock()
	m.GenerateCalls.Count++
	m.GenerateCalls.Prompts = append(m.GenerateCalls.Prompts, prompt)
	m.GenerateCalls.mu.Unlock()

	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, prompt)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for _, r := range m.Replies {
		if strings.Contains(prompt, r.Match) {
			return r.Text, r.Err
		}
	}
	return m.Text, m.Err
}

// CallCount returns how many times Generate was called.
func (m *MockGenerator) CallCount() int {
	m.GenerateCalls.mu.Lock()
	defer m.GenerateCalls.mu.Unlock()
	return m.GenerateCalls.Count
}

// PromptsContaining returns the recorded prompts that contain substr.
func (m *MockGenerator) PromptsContaining(substr string) []string {
	m.GenerateCalls.mu.Lock()
	defer m.GenerateCalls.mu.Unlock()
	var out []string
	for _, p := range m.GenerateCalls.Prompts {
		if strings.Contains(p, substr) {
			out = append(out, p)
		}
	}
	return out
}

// NewMockGeneratorWithReplies creates a MockGenerator answering from replies
func NewMockGeneratorWithReplies(replies ...Reply) *MockGenerator {
	return &MockGenerator{Replies: replies}
}

// NewMockGeneratorWithError creates a MockGenerator that returns the specified error
func NewMockGeneratorWithError(err error) *MockGenerator {
	return &MockGenerator{
		Err: err,
	}
}

// MockGeneratorThatFails creates a MockGenerator that simulates a generation failure
func MockGeneratorThatFails() *MockGenerator {
	return &MockGenerator{
		Err: generation.ErrGenerationFailed,
	}
}

// MockGeneratorWithContentBlocked creates a MockGenerator that simulates content being blocked
func MockGeneratorWithContentBlocked() *MockGenerator {
	return &MockGenerator{
		Err: generation.ErrContentBlocked,
	}
}

// Reset resets the call tracking state
func (m *MockGenerator) Reset() {
	m.GenerateCalls.mu.Lock()
	defer m.GenerateCalls.mu.Unlock()

	m.GenerateCalls.Count = 0
	m.GenerateCalls.Prompts = nil
}
