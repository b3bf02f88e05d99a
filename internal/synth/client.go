// Package synth turns cue text into playable audio. It wraps an
// ElevenLabs-style HTTP provider (speech plus generated ambience) behind
// a content-addressed disk cache so identical requests never hit the
// network twice.
package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io/v1"
	defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	defaultModelID = "eleven_turbo_v2"

	// PCM output avoids decoding at playback time; the audio package
	// assumes this format throughout.
	outputFormat = "pcm_44100"
)

// ErrEmptyText rejects synthesis of empty or whitespace-only input.
var ErrEmptyText = errors.New("cannot synthesize empty text")

// ProviderError is a non-2xx response from the synthesis provider, with
// the human-readable message extracted from its error body.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("synthesis provider error (%d): %s", e.StatusCode, e.Message)
}

// Config holds provider credentials and tunables, loaded from the
// environment by default.
type Config struct {
	APIKey            string        `env:"DREAMSCAPE_ELEVENLABS_API_KEY"`
	VoiceID           string        `env:"DREAMSCAPE_ELEVENLABS_VOICE_ID"`
	BaseURL           string        `env:"DREAMSCAPE_ELEVENLABS_BASE_URL"`
	ModelID           string        `env:"DREAMSCAPE_ELEVENLABS_MODEL_ID"`
	RequestsPerMinute int           `env:"DREAMSCAPE_SYNTH_RPM" envDefault:"30"`
	Timeout           time.Duration `env:"DREAMSCAPE_SYNTH_TIMEOUT" envDefault:"45s"`
}

// ConfigFromEnv reads provider configuration from DREAMSCAPE_* variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse synth config: %w", err)
	}
	return cfg, nil
}

// Client calls the speech and sound-generation endpoints. Requests are
// rate limited to stay inside provider quotas.
type Client struct {
	baseURL string
	apiKey  string
	voiceID string
	modelID string
	http    *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewClient builds a provider client from config. The API key is required.
func NewClient(cfg Config, logger *log.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing synthesis API key: set DREAMSCAPE_ELEVENLABS_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = defaultVoiceID
	}
	if cfg.ModelID == "" {
		cfg.ModelID = defaultModelID
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 30
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		voiceID: cfg.VoiceID,
		modelID: cfg.ModelID,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		logger:  logger.With("component", "synth"),
	}, nil
}

// DefaultVoice returns the voice used when a request names none.
func (c *Client) DefaultVoice() string {
	return c.voiceID
}

// Speech synthesizes spoken audio for text using the given voice (the
// client default when empty). Returns raw PCM bytes.
func (c *Client) Speech(ctx context.Context, text, voiceID string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if voiceID == "" {
		voiceID = c.voiceID
	}

	body := map[string]any{
		"text":     text,
		"model_id": c.modelID,
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
		"optimize_streaming_latency": 1,
	}
	url := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s", c.baseURL, voiceID, outputFormat)
	return c.post(ctx, url, body)
}

// SoundEffect generates ambient audio from a free-text prompt.
func (c *Client) SoundEffect(ctx context.Context, prompt string, durationSeconds float64, influence float64) ([]byte, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyText
	}
	body := map[string]any{
		"text":             prompt,
		"duration_seconds": durationSeconds,
		"prompt_influence": influence,
	}
	url := fmt.Sprintf("%s/sound-generation?output_format=%s", c.baseURL, outputFormat)
	return c.post(ctx, url, body)
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/*")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    readErrorBody(resp.Body),
		}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio body: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("provider returned empty audio")
	}
	return audio, nil
}

// readErrorBody pulls a message out of the provider's JSON error shapes
// (detail string, detail[0].msg, message), falling back to the raw body.
func readErrorBody(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 16*1024))
	if err != nil || len(raw) == 0 {
		return "unknown error"
	}

	var parsed struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if len(parsed.Detail) > 0 {
			var s string
			if json.Unmarshal(parsed.Detail, &s) == nil && s != "" {
				return s
			}
			var list []struct {
				Msg string `json:"msg"`
			}
			if json.Unmarshal(parsed.Detail, &list) == nil && len(list) > 0 && list[0].Msg != "" {
				return list[0].Msg
			}
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return strings.TrimSpace(string(raw))
}
