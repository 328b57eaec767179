package llm

import (
	"context"
	"sync"
)

// MockClient permite tests sin llamar a un LLM real.
type MockClient struct {
	Response string
	Err      error

	// Responses, si no está vacío, se consume en orden (una por llamada).
	Responses []MockResponse

	mu      sync.Mutex
	prompts []string
}

type MockResponse struct {
	Text string
	Err  error
}

func (m *MockClient) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if len(m.Responses) > 0 {
		next := m.Responses[0]
		m.Responses = m.Responses[1:]
		return next.Text, next.Err
	}
	return m.Response, m.Err
}

// Prompts devuelve los prompts recibidos hasta ahora.
func (m *MockClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
