package mocks

import (
	"context"
	"strings"

	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

// MockLLMService is a mock implementation of LLMService for testing
type MockLLMService struct {
	response   string
	err        error
	unhealthy  bool
	lastPrompt string
	lastSystem string
}

// NewMockLLMService creates a new MockLLMService
func NewMockLLMService() *MockLLMService {
	return &MockLLMService{
		response: "The answer is in the documents [Source 1].",
	}
}

func (m *MockLLMService) Generate(ctx context.Context, prompt, system string) (string, error) {
	m.lastPrompt = prompt
	m.lastSystem = system
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *MockLLMService) GenerateStream(ctx context.Context, prompt, system string) (<-chan driven.Delta, error) {
	m.lastPrompt = prompt
	m.lastSystem = system
	if m.err != nil {
		return nil, m.err
	}

	ch := make(chan driven.Delta)
	go func() {
		defer close(ch)
		// Stream word by word to exercise incremental consumers
		words := strings.SplitAfter(m.response, " ")
		for _, w := range words {
			select {
			case ch <- driven.Delta{Content: w}:
			case <-ctx.Done():
				ch <- driven.Delta{Err: ctx.Err()}
				return
			}
		}
		ch <- driven.Delta{Done: true}
	}()
	return ch, nil
}

func (m *MockLLMService) Model() string {
	return "mock-llm"
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	if m.unhealthy {
		return context.DeadlineExceeded
	}
	return nil
}

func (m *MockLLMService) Close() error {
	return nil
}

// Helper methods for testing

func (m *MockLLMService) SetResponse(response string) {
	m.response = response
}

func (m *MockLLMService) SetError(err error) {
	m.err = err
}

func (m *MockLLMService) SetUnhealthy(unhealthy bool) {
	m.unhealthy = unhealthy
}

func (m *MockLLMService) LastPrompt() string {
	return m.lastPrompt
}

func (m *MockLLMService) LastSystem() string {
	return m.lastSystem
}
