package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"shortreel/internal/services"
	"shortreel/internal/services/openaiclient"
)

const stageName = "speech-synthesis"

// Config captures the text-to-speech settings.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Language       string
	Speed          float64
	Format         string
	Instructions   string
	TimeoutSeconds int
	MaxRetries     int
}

// Client synthesizes speech.
type Client struct {
	cfg          Config
	api          openai.Client
	instructions string
}

// Option customizes the client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
}

// WithHTTPClient overrides the HTTP client used by the SDK.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = client }
}

// NewClient validates the settings.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "client", "model required", nil)
	}
	if cfg.Format == "" {
		cfg.Format = "mp3"
	}
	api, err := openaiclient.New(stageName, openaiclient.Settings{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.MaxRetries,
		HTTPClient: o.httpClient,
	})
	if err != nil {
		return nil, err
	}
	instructions, err := buildInstructions(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, api: api, instructions: instructions}, nil
}

// Extension is the file extension matching the configured output format.
func (c *Client) Extension() string {
	return "." + c.cfg.Format
}

// buildInstructions returns the steering text for models that accept it.
// The tts-1 family rejects instructions, so they get none.
func buildInstructions(cfg Config) (string, error) {
	if strings.HasPrefix(cfg.Model, "tts-1") {
		return "", nil
	}
	if text := strings.TrimSpace(cfg.Instructions); text != "" {
		return text, nil
	}
	if strings.TrimSpace(cfg.Language) == "" {
		return "", nil
	}
	tag, err := language.Parse(cfg.Language)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, stageName, "language", cfg.Language, err)
	}
	name := display.English.Tags().Name(tag)
	return fmt.Sprintf("Speak in %s with a confident, steady delivery.", name), nil
}

// Synthesize writes the spoken text to dst with the given voice.
func (c *Client) Synthesize(ctx context.Context, text, voice, dst string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return services.Wrap(services.ErrValidation, stageName, "synthesize", "empty text", nil)
	}
	voice = strings.TrimSpace(voice)
	if voice == "" {
		return services.Wrap(services.ErrConfiguration, stageName, "synthesize", "voice required", nil)
	}

	params := openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(c.cfg.Model),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat(c.cfg.Format),
	}
	if c.cfg.Speed > 0 {
		params.Speed = openai.Float(c.cfg.Speed)
	}
	if c.instructions != "" {
		params.Instructions = openai.String(c.instructions)
	}

	resp, err := c.api.Audio.Speech.New(ctx, params)
	if err != nil {
		return openaiclient.Classify(stageName, "audio speech", err)
	}
	defer resp.Body.Close()

	return writeAudio(resp.Body, dst)
}

func writeAudio(body io.Reader, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create speech dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".speech-*")
	if err != nil {
		return fmt.Errorf("create speech temp: %w", err)
	}
	tmpName := tmp.Name()
	n, copyErr := io.Copy(tmp, body)
	closeErr := tmp.Close()
	if copyErr == nil && n == 0 {
		copyErr = services.Wrap(services.ErrTransient, stageName, "audio speech", "empty audio body", nil)
	}
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmpName)
		if copyErr != nil {
			return fmt.Errorf("write speech: %w", copyErr)
		}
		return fmt.Errorf("close speech: %w", closeErr)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename speech: %w", err)
	}
	return nil
}
