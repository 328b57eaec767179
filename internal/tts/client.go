// Package tts envuelve el proveedor de síntesis de voz y el troceado del audio.
package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultVoice        = "en-US-Wavenet-D"
	DefaultSpeakingRate = 1.0
	DefaultPitch        = 0.0

	defaultBaseURL = "https://texttospeech.googleapis.com/v1"
)

// ErrMissingCredential es un error de configuración: no se reintenta.
var ErrMissingCredential = errors.New("tts api key not configured")

// UpstreamError describe un fallo del proveedor de voz.
type UpstreamError struct {
	Status int
	Detail string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("tts upstream error: status=%d: %s", e.Status, e.Detail)
}

// SynthesisRequest agrupa el texto y los parámetros opcionales de voz.
type SynthesisRequest struct {
	Text         string
	Voice        string
	SpeakingRate float64
	Pitch        float64
}

// Synthesizer produce un único payload de audio por invocación.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error)
}

// withDefaults completa los parámetros ausentes.
func (r SynthesisRequest) withDefaults() SynthesisRequest {
	r.Voice = strings.TrimSpace(r.Voice)
	if r.Voice == "" {
		r.Voice = DefaultVoice
	}
	if r.SpeakingRate == 0 {
		r.SpeakingRate = DefaultSpeakingRate
	}
	if r.Pitch == 0 {
		r.Pitch = DefaultPitch
	}
	return r
}

// GoogleClient llama a text:synthesize de Google Cloud Text-to-Speech.
type GoogleClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

func NewGoogleClient(baseURL, apiKey string, logger *zap.Logger) *GoogleClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

func (c *GoogleClient) Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrMissingCredential
	}
	req = req.withDefaults()

	body := synthesizeRequest{
		Input: synthesisInput{Text: req.Text},
		Voice: voiceSelection{LanguageCode: languageCode(req.Voice), Name: req.Voice},
		AudioConfig: audioConfig{
			AudioEncoding: "MP3",
			SpeakingRate:  req.SpeakingRate,
			Pitch:         req.Pitch,
		},
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/text:synthesize", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("X-Goog-Api-Key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Info("tts request",
		zap.Int("text_len", len(req.Text)),
		zap.String("voice", req.Voice),
		zap.Float64("rate", req.SpeakingRate),
		zap.Float64("pitch", req.Pitch),
	)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &UpstreamError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Status: resp.StatusCode, Detail: fmt.Sprintf("read response: %v", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Status: resp.StatusCode, Detail: strings.TrimSpace(string(respBody))}
	}

	var sr synthesizeResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return nil, &UpstreamError{Status: resp.StatusCode, Detail: fmt.Sprintf("decode response: %v", err)}
	}
	if sr.AudioContent == "" {
		return nil, &UpstreamError{Status: resp.StatusCode, Detail: "no audio content returned"}
	}
	audio, err := base64.StdEncoding.DecodeString(sr.AudioContent)
	if err != nil {
		return nil, &UpstreamError{Status: resp.StatusCode, Detail: fmt.Sprintf("decode audio: %v", err)}
	}
	return audio, nil
}

// languageCode toma "en-US" de "en-US-Wavenet-D".
func languageCode(voice string) string {
	parts := strings.Split(voice, "-")
	if len(parts) < 2 {
		return "en-US"
	}
	return parts[0] + "-" + parts[1]
}

type synthesizeRequest struct {
	Input       synthesisInput `json:"input"`
	Voice       voiceSelection `json:"voice"`
	AudioConfig audioConfig    `json:"audioConfig"`
}

type synthesisInput struct {
	Text string `json:"text"`
}

type voiceSelection struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name"`
}

type audioConfig struct {
	AudioEncoding string  `json:"audioEncoding"`
	SpeakingRate  float64 `json:"speakingRate"`
	Pitch         float64 `json:"pitch"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}
