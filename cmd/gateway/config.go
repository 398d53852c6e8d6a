package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type config struct {
	Port                  string        `env:"GATEWAY_PORT" envDefault:"8000"`
	DatabaseURL           string        `env:"DATABASE_URL"`
	DataDir               string        `env:"DATA_DIR" envDefault:"./data"`
	SessionBudget         time.Duration `env:"SESSION_BUDGET" envDefault:"15m"`
	ReceivePoll           time.Duration `env:"RECEIVE_POLL" envDefault:"30s"`
	FinalizeTimeout       time.Duration `env:"FINALIZE_TIMEOUT" envDefault:"60s"`
	MaxConcurrentSessions int           `env:"MAX_CONCURRENT_SESSIONS" envDefault:"100"`

	LLMEngine       string        `env:"LLM_ENGINE" envDefault:"agent"`
	OpenAIAPIKey    string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string        `env:"OPENAI_BASE_URL"`
	LLMModel        string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMMaxTokens    int           `env:"LLM_MAX_TOKENS" envDefault:"2048"`
	LLMPoolSize     int           `env:"LLM_POOL_SIZE" envDefault:"20"`
	LLMTimeout      time.Duration `env:"LLM_TIMEOUT" envDefault:"45s"`
	OllamaURL       string        `env:"OLLAMA_URL"`
	OllamaModel     string        `env:"OLLAMA_MODEL" envDefault:"llama3.2:3b"`
	AnthropicAPIKey string        `env:"ANTHROPIC_API_KEY"`
	AnthropicURL    string        `env:"ANTHROPIC_URL"`
	AnthropicModel  string        `env:"ANTHROPIC_MODEL" envDefault:"claude-3-5-haiku-latest"`

	TTSEngine         string        `env:"TTS_ENGINE" envDefault:"piper"`
	TTSPoolSize       int           `env:"TTS_POOL_SIZE" envDefault:"50"`
	TTSTimeout        time.Duration `env:"TTS_TIMEOUT" envDefault:"20s"`
	PiperURL          string        `env:"PIPER_URL" envDefault:"http://localhost:5100"`
	PiperVoice        string        `env:"PIPER_VOICE" envDefault:"en_US-lessac-medium"`
	KokoroURL         string        `env:"KOKORO_URL"`
	MeloTTSURL        string        `env:"MELOTTS_URL"`
	ElevenLabsAPIKey  string        `env:"ELEVENLABS_API_KEY"`
	ElevenLabsVoiceID string        `env:"ELEVENLABS_VOICE_ID" envDefault:"21m00Tcm4TlvDq8ikWAM"`
	ElevenLabsModelID string        `env:"ELEVENLABS_MODEL_ID" envDefault:"eleven_turbo_v2_5"`
}

func loadConfig() (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SessionBudget <= 0 {
		return config{}, fmt.Errorf("SESSION_BUDGET must be positive, got %s", cfg.SessionBudget)
	}
	return cfg, nil
}

// openAIConfigured reports whether an OpenAI-compatible endpoint is set.
func (c config) openAIConfigured() bool {
	return c.OpenAIAPIKey != "" || c.OpenAIBaseURL != ""
}

// llmConfigured reports whether any completion backend can be reached.
func (c config) llmConfigured() bool {
	return c.openAIConfigured() || c.OllamaURL != "" || c.AnthropicAPIKey != ""
}
