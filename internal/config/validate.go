package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
)

// Validate ensures the configuration is usable. API keys are not checked here;
// preflight reports them so read-only commands work without credentials.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateSpeech(); err != nil {
		return err
	}
	if err := c.validateFit(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.InputDir == "" {
		return errors.New("paths.input_dir must be set")
	}
	if c.Paths.WorkDir == "" {
		return errors.New("paths.work_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	// The work dir is emptied before every unit, so it may not share a tree
	// with anything that must survive.
	others := []struct {
		key  string
		path string
	}{
		{"paths.input_dir", c.Paths.InputDir},
		{"paths.output_dir", c.Paths.OutputDir},
		{"paths.state_dir", c.Paths.StateDir},
		{"paths.music_dir", c.Paths.MusicDir},
		{"paths.log_dir", c.Paths.LogDir},
	}
	for _, other := range others {
		if other.path == "" {
			continue
		}
		if pathsOverlap(c.Paths.WorkDir, other.path) {
			return fmt.Errorf("paths.work_dir %q overlaps %s %q; the work dir is emptied before every unit", c.Paths.WorkDir, other.key, other.path)
		}
	}
	return nil
}

// pathsOverlap reports whether a and b are the same directory or one
// contains the other.
func pathsOverlap(a, b string) bool {
	return within(a, b) || within(b, a)
}

func within(parent, child string) bool {
	rel, err := filepath.Rel(filepath.Clean(parent), filepath.Clean(child))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func (c *Config) validateVideo() error {
	if c.Video.TrimSeconds <= 0 {
		return errors.New("video.trim_seconds must be positive")
	}
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		return errors.New("video.width and video.height must be positive")
	}
	if c.Video.FrameRate <= 0 {
		return errors.New("video.frame_rate must be positive")
	}
	if c.Video.CRF < 0 || c.Video.CRF > 51 {
		return errors.New("video.crf must be between 0 and 51")
	}
	if c.Video.Codec == "" {
		return errors.New("video.codec must be set")
	}
	if c.Video.MusicVolume < 0 || c.Video.MusicVolume > 1 {
		return errors.New("video.music_volume must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.Model == "" {
		return errors.New("llm.model must be set")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	if c.LLM.FrequencyPenalty < -2 || c.LLM.FrequencyPenalty > 2 {
		return errors.New("llm.frequency_penalty must be between -2 and 2")
	}
	if c.LLM.MaxRetries < 0 {
		return errors.New("llm.max_retries must be non-negative")
	}
	return nil
}

func (c *Config) validateSpeech() error {
	if c.Speech.Model == "" {
		return errors.New("speech.model must be set")
	}
	if len(c.Speech.Voices) == 0 {
		return errors.New("speech.voices must list at least one voice")
	}
	if c.Speech.Language == "" {
		return errors.New("speech.language must be set")
	}
	if _, err := language.Parse(c.Speech.Language); err != nil {
		return fmt.Errorf("speech.language %q is not a valid BCP 47 tag: %w", c.Speech.Language, err)
	}
	if c.Speech.Speed < 0.25 || c.Speech.Speed > 4 {
		return errors.New("speech.speed must be between 0.25 and 4")
	}
	switch c.Speech.Format {
	case "mp3", "wav", "aac", "flac", "opus", "pcm":
	default:
		return fmt.Errorf("speech.format %q is not supported", c.Speech.Format)
	}
	if c.Speech.MaxRetries < 0 {
		return errors.New("speech.max_retries must be non-negative")
	}
	return nil
}

func (c *Config) validateFit() error {
	if c.Fit.MaxAttempts < 0 {
		return errors.New("fit.max_attempts must be non-negative (0 means unbounded)")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MinUnitSpacingSeconds < 0 {
		return errors.New("workflow.min_unit_spacing_seconds must be non-negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn or error", c.Logging.Level)
	}
	return nil
}
