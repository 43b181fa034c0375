package scriptgen

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/openai/openai-go"

	"shortreel/internal/services"
	"shortreel/internal/services/openaiclient"
	"shortreel/internal/subtitles"
)

const stageName = "script-generation"

// Character bounds the prompt asks for, tuned so a line speaks in under 5s.
const (
	MinChars = 53
	MaxChars = 60
)

//go:embed prompt.tmpl
var defaultPrompt string

// Config captures the chat completion settings.
type Config struct {
	APIKey           string
	BaseURL          string
	Model            string
	Temperature      float64
	FrequencyPenalty float64
	TimeoutSeconds   int
	MaxRetries       int
	// PromptPath replaces the built-in prompt template when set.
	PromptPath string
	// Window is the on-screen time of one line.
	Window time.Duration
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

// Client generates scripts.
type Client struct {
	cfg    Config
	api    openai.Client
	prompt *template.Template
}

// PromptData is what the prompt template is rendered with.
type PromptData struct {
	Themes   [3]string
	Previous []string
	Window   int
	Total    int
	Lines    int
	MinChars int
	MaxChars int
	Windows  []string
}

// NewClient validates the settings and parses the prompt template.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "client", "model required", nil)
	}
	if cfg.Window <= 0 {
		cfg.Window = 5 * time.Second
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
	tmpl, err := loadPrompt(cfg.PromptPath)
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, api: api, prompt: tmpl}, nil
}

func loadPrompt(path string) (*template.Template, error) {
	text := defaultPrompt
	name := "prompt.tmpl"
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, stageName, "load prompt", path, err)
		}
		text = string(data)
		name = path
	}
	tmpl, err := template.New(name).Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "parse prompt", name, err)
	}
	return tmpl, nil
}

// Prompt renders the prompt for one unit.
func (c *Client) Prompt(themes [3]string, previous []string) (string, error) {
	seconds := int(c.cfg.Window / time.Second)
	data := PromptData{
		Themes:   themes,
		Window:   seconds,
		Total:    seconds * 3,
		Lines:    3,
		MinChars: MinChars,
		MaxChars: MaxChars,
	}
	for _, line := range previous {
		if line = strings.TrimSpace(line); line != "" {
			data.Previous = append(data.Previous, line)
		}
	}
	for i := 0; i < 3; i++ {
		start := time.Duration(i) * c.cfg.Window
		data.Windows = append(data.Windows, subtitles.FormatTimestamp(start)+" --> "+subtitles.FormatTimestamp(start+c.cfg.Window))
	}
	var buf bytes.Buffer
	if err := c.prompt.Execute(&buf, data); err != nil {
		return "", services.Wrap(services.ErrConfiguration, stageName, "render prompt", "", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Generate returns the model's raw script text for three themes.
func (c *Client) Generate(ctx context.Context, themes [3]string, previous []string) (string, error) {
	prompt, err := c.Prompt(themes, previous)
	if err != nil {
		return "", err
	}
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt),
			openai.UserMessage("Write the script now."),
		},
		Model:            c.cfg.Model,
		Temperature:      openai.Float(c.cfg.Temperature),
		FrequencyPenalty: openai.Float(c.cfg.FrequencyPenalty),
	})
	if err != nil {
		return "", openaiclient.Classify(stageName, "chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", services.Wrap(services.ErrTransient, stageName, "chat completion", "empty choices", nil)
	}
	choice := resp.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		detail := fmt.Sprintf("empty content (finish_reason=%q, refusal=%q)", choice.FinishReason, choice.Message.Refusal)
		return "", services.Wrap(services.ErrTransient, stageName, "chat completion", detail, nil)
	}
	return content, nil
}
