package mocks

import "strings"

// MockTokenizer counts whitespace-separated words. Deterministic and
// close enough to a real tokenizer for budget assertions in tests.
type MockTokenizer struct{}

// NewMockTokenizer creates a new MockTokenizer
func NewMockTokenizer() *MockTokenizer {
	return &MockTokenizer{}
}

func (m *MockTokenizer) Count(text string) int {
	return len(strings.Fields(text))
}
