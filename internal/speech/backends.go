package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Backend turns text into encoded audio.
type Backend interface {
	Speak(ctx context.Context, text string) ([]byte, error)
}

// --- Piper (local neural TTS, returns WAV) ---

type piperBackend struct {
	url    string
	voice  string
	client *http.Client
}

func NewPiper(url, voice string, client *http.Client) Backend {
	return &piperBackend{url: url, voice: voice, client: client}
}

func (p *piperBackend) Speak(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(struct {
		Text  string `json:"text"`
		Voice string `json:"voice,omitempty"`
	}{Text: text, Voice: p.voice})
	if err != nil {
		return nil, fmt.Errorf("marshal piper request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create piper request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return do(p.client, req)
}

// --- OpenAI-compatible (Kokoro, Orpheus, any server exposing /v1/audio/speech) ---

type openaiBackend struct {
	url    string
	model  string
	voice  string
	apiKey string
	client *http.Client
}

func NewOpenAICompatible(url, model, voice, apiKey string, client *http.Client) Backend {
	return &openaiBackend{url: url, model: model, voice: voice, apiKey: apiKey, client: client}
}

func (o *openaiBackend) Speak(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(struct {
		Input          string `json:"input"`
		Model          string `json:"model"`
		Voice          string `json:"voice"`
		ResponseFormat string `json:"response_format"`
	}{Input: text, Model: o.model, Voice: o.voice, ResponseFormat: "mp3"})
	if err != nil {
		return nil, fmt.Errorf("marshal openai speech request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create openai speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}
	return do(o.client, req)
}

// --- ElevenLabs (cloud API, returns MP3) ---

const elevenLabsURL = "https://api.elevenlabs.io"

type elevenlabsBackend struct {
	baseURL string
	apiKey  string
	voiceID string
	modelID string
	client  *http.Client
}

func NewElevenLabs(apiKey, voiceID, modelID string, client *http.Client) Backend {
	return &elevenlabsBackend{baseURL: elevenLabsURL, apiKey: apiKey, voiceID: voiceID, modelID: modelID, client: client}
}

func (e *elevenlabsBackend) Speak(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(struct {
		Text    string `json:"text"`
		ModelID string `json:"model_id"`
	}{Text: text, ModelID: e.modelID})
	if err != nil {
		return nil, fmt.Errorf("marshal elevenlabs request: %w", err)
	}
	url := fmt.Sprintf("%s/v1/text-to-speech/%s", e.baseURL, e.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create elevenlabs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Accept", "audio/mpeg")
	return do(e.client, req)
}

// --- MeloTTS (self-hosted, /convert/tts) ---

type meloBackend struct {
	url    string
	client *http.Client
}

func NewMelo(url string, client *http.Client) Backend {
	return &meloBackend{url: url, client: client}
}

func (m *meloBackend) Speak(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(struct {
		Text      string  `json:"text"`
		Speed     float64 `json:"speed"`
		Language  string  `json:"language"`
		SpeakerID string  `json:"speaker_id"`
	}{Text: text, Speed: 1.0, Language: "EN", SpeakerID: "EN-US"})
	if err != nil {
		return nil, fmt.Errorf("marshal melo request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url+"/convert/tts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create melo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return do(m.client, req)
}

func do(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech status %d", resp.StatusCode)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read speech body: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("speech backend returned no audio")
	}
	return audio, nil
}
