package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort          string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL       string `env:"DATABASE_URL,required,notEmpty"`
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"*"`

	LLMProvider string `env:"LLM_PROVIDER" envDefault:"gemini"`
	LLMAPIKey   string `env:"LLM_API_KEY"`
	LLMBaseURL  string `env:"LLM_BASE_URL"`
	LLMModel    string `env:"LLM_MODEL"`

	TTSAPIKey  string `env:"TTS_API_KEY"`
	TTSBaseURL string `env:"TTS_BASE_URL" envDefault:"https://texttospeech.googleapis.com/v1"`

	// StreamDelaySeconds es la pausa entre fragmentos de texto emitidos.
	StreamDelaySeconds float64 `env:"STREAM_DELAY" envDefault:"0.5"`
	AudioChunkSize     int     `env:"AUDIO_CHUNK_SIZE" envDefault:"8192"`
	TextFragmentSize   int     `env:"TEXT_FRAGMENT_SIZE" envDefault:"20"`

	JWTSecret            string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"1440"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	TurnRateLimit         int `env:"TURN_RATE_LIMIT" envDefault:"20"`
	TurnRateWindowSeconds int `env:"TURN_RATE_WINDOW_SECONDS" envDefault:"60"`
}

var ErrInvalidConfig = errors.New("invalid config")

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rechaza valores que dejarían al coordinador sin poder segmentar.
func (c *Config) Validate() error {
	if c.StreamDelaySeconds < 0 {
		return errors.Join(ErrInvalidConfig, errors.New("STREAM_DELAY must be >= 0"))
	}
	if c.AudioChunkSize <= 0 {
		return errors.Join(ErrInvalidConfig, errors.New("AUDIO_CHUNK_SIZE must be > 0"))
	}
	if c.TextFragmentSize <= 0 {
		return errors.Join(ErrInvalidConfig, errors.New("TEXT_FRAGMENT_SIZE must be > 0"))
	}
	return nil
}

func (c *Config) StreamDelay() time.Duration {
	return time.Duration(c.StreamDelaySeconds * float64(time.Second))
}

func (c *Config) TurnRateWindow() time.Duration {
	return time.Duration(c.TurnRateWindowSeconds) * time.Second
}
