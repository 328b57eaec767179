package tts

import (
	"context"
	"sync"
)

// MockSynthesizer devuelve un audio fijo y registra las solicitudes.
type MockSynthesizer struct {
	Audio []byte
	Err   error

	mu       sync.Mutex
	requests []SynthesisRequest
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Audio, nil
}

func (m *MockSynthesizer) Requests() []SynthesisRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SynthesisRequest(nil), m.requests...)
}
