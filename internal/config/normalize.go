package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeVideo()
	if err := c.normalizeLLM(); err != nil {
		return err
	}
	c.normalizeSpeech()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"paths.input_dir", &c.Paths.InputDir},
		{"paths.work_dir", &c.Paths.WorkDir},
		{"paths.output_dir", &c.Paths.OutputDir},
		{"paths.music_dir", &c.Paths.MusicDir},
		{"paths.state_dir", &c.Paths.StateDir},
		{"paths.log_dir", &c.Paths.LogDir},
	}
	for _, field := range fields {
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeVideo() {
	exts := make([]string, 0, len(c.Video.ClipExtensions))
	seen := make(map[string]struct{}, len(c.Video.ClipExtensions))
	for _, ext := range c.Video.ClipExtensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultClipExtensions...)
	}
	c.Video.ClipExtensions = exts
	c.Video.Codec = strings.TrimSpace(c.Video.Codec)
	c.Video.Preset = strings.TrimSpace(c.Video.Preset)
	c.Video.PixelFormat = strings.TrimSpace(c.Video.PixelFormat)
	c.Video.SubtitleStyle = strings.TrimSpace(c.Video.SubtitleStyle)
}

func (c *Config) normalizeLLM() error {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = lookupEnv("SHORTREEL_LLM_API_KEY", "OPENAI_API_KEY")
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.PromptPath != "" {
		expanded, err := expandPath(strings.TrimSpace(c.LLM.PromptPath))
		if err != nil {
			return fmt.Errorf("llm.prompt_path: %w", err)
		}
		c.LLM.PromptPath = expanded
	}
	return nil
}

func (c *Config) normalizeSpeech() {
	c.Speech.APIKey = strings.TrimSpace(c.Speech.APIKey)
	if c.Speech.APIKey == "" {
		c.Speech.APIKey = lookupEnv("SHORTREEL_SPEECH_API_KEY", "OPENAI_API_KEY")
	}
	if c.Speech.APIKey == "" {
		c.Speech.APIKey = c.LLM.APIKey
	}
	c.Speech.BaseURL = strings.TrimSpace(c.Speech.BaseURL)
	if c.Speech.BaseURL == "" {
		c.Speech.BaseURL = c.LLM.BaseURL
	}
	c.Speech.Model = strings.TrimSpace(c.Speech.Model)
	c.Speech.Language = strings.TrimSpace(c.Speech.Language)
	c.Speech.Format = strings.ToLower(strings.TrimSpace(c.Speech.Format))
	if c.Speech.Format == "" {
		c.Speech.Format = defaultSpeechFormat
	}
	if c.Speech.TimeoutSeconds <= 0 {
		c.Speech.TimeoutSeconds = defaultSpeechTimeoutSeconds
	}

	voices := make([]string, 0, len(c.Speech.Voices))
	seen := make(map[string]struct{}, len(c.Speech.Voices))
	for _, voice := range c.Speech.Voices {
		normalized := strings.ToLower(strings.TrimSpace(voice))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		voices = append(voices, normalized)
	}
	c.Speech.Voices = voices
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// lookupEnv returns the first non-empty value among keys.
func lookupEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
