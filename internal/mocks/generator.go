package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/quizgen-api/internal/generation"
)

// GenerateStep produces the answer to one Generate call.
type GenerateStep func(req generation.Request) (*generation.Response, error)

// MockGenerator implements generation.Generator for testing. Each call is
// answered by the next step; the last step repeats once the steps run out.
type MockGenerator struct {
	// GenerateFn, when set, answers every call and Steps are ignored.
	GenerateFn func(ctx context.Context, req generation.Request) (*generation.Response, error)

	Steps []GenerateStep

	// GenerateCalls tracks call details for verification
	GenerateCalls struct {
		// mu protects the call tracking state for concurrent test cases
		mu sync.Mutex

		// Requests contains every request passed to Generate, in call order
		Requests []generation.Request
	}
}

var _ generation.Generator = (*MockGenerator)(nil)

// Generate implements the generation.Generator interface
func (m *MockGenerator) Generate(ctx context.Context, req generation.Request) (*generation.Response, error) {
	m.GenerateCalls.mu.Lock()
	call := len(m.GenerateCalls.Requests)
	m.GenerateCalls.Requests = append(m.GenerateCalls.Requests, req)
	m.GenerateCalls.mu.Unlock()

	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, req)
	}
	if len(m.Steps) == 0 {
		return nil, generation.ErrProviderFailure
	}
	return m.Steps[min(call, len(m.Steps)-1)](req)
}

// Requests returns a copy of the requests received so far.
func (m *MockGenerator) Requests() []generation.Request {
	m.GenerateCalls.mu.Lock()
	defer m.GenerateCalls.mu.Unlock()
	return append([]generation.Request(nil), m.GenerateCalls.Requests...)
}

// Reset resets the call tracking state
func (m *MockGenerator) Reset() {
	m.GenerateCalls.mu.Lock()
	defer m.GenerateCalls.mu.Unlock()
	m.GenerateCalls.Requests = nil
}

// Succeed is a step that returns resp.
func Succeed(resp *generation.Response) GenerateStep {
	return func(generation.Request) (*generation.Response, error) { return resp, nil }
}

// Fail is a step that returns err.
func Fail(err error) GenerateStep {
	return func(generation.Request) (*generation.Response, error) { return nil, err }
}

// NewMockGeneratorWithSteps creates a MockGenerator that answers with steps in order
func NewMockGeneratorWithSteps(steps ...GenerateStep) *MockGenerator {
	return &MockGenerator{Steps: steps}
}

// NewMockGeneratorWithError creates a MockGenerator that always returns err
func NewMockGeneratorWithError(err error) *MockGenerator {
	return &MockGenerator{Steps: []GenerateStep{Fail(err)}}
}

// MockGeneratorThatFails creates a MockGenerator that simulates a provider outage
func MockGeneratorThatFails() *MockGenerator {
	return NewMockGeneratorWithError(generation.ErrProviderFailure)
}
