package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"voice-chat/internal/domain"
	"voice-chat/internal/textproc"
)

// LLMClient define la interfaz para generar respuestas con un LLM.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrMalformedResponse indica una respuesta 2xx sin el campo de texto esperado.
var ErrMalformedResponse = errors.New("llm malformed response")

var ErrUnknownProvider = errors.New("llm unknown provider")

// UpstreamError describe un fallo del proveedor: status no 2xx o error de red (Status 0).
type UpstreamError struct {
	Status int
	Detail string
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("llm upstream unreachable: %s", e.Detail)
	}
	return fmt.Sprintf("llm upstream error: status=%d: %s", e.Status, e.Detail)
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// NewClient construye el cliente del proveedor configurado.
func NewClient(provider, baseURL, apiKey, model string, logger *zap.Logger) (LLMClient, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", ProviderGemini:
		return NewGeminiClient(baseURL, apiKey, model, logger), nil
	case ProviderOpenAI:
		return NewHTTPClient(baseURL, apiKey, model, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
}

// GenerateFragments ejecuta la llamada completa y luego segmenta el texto.
// No es un stream incremental: cuando hay fragmentos, la llamada ya terminó.
func GenerateFragments(ctx context.Context, c LLMClient, prompt string, size int) ([]domain.TextFragment, error) {
	if size <= 0 {
		return nil, textproc.ErrInvalidArgument
	}
	text, err := c.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return textproc.Segment(text, size)
}

func truncateDetail(body []byte) string {
	const max = 512
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max]
	}
	return s
}
