package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the directories the batch reads from and writes to.
type Paths struct {
	InputDir  string `toml:"input_dir"`
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
	MusicDir  string `toml:"music_dir"`
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
}

// Video contains trim and encode settings shared by every transcoder stage.
type Video struct {
	ClipExtensions []string `toml:"clip_extensions"`
	TrimSeconds    float64  `toml:"trim_seconds"`
	Width          int      `toml:"width"`
	Height         int      `toml:"height"`
	FrameRate      int      `toml:"frame_rate"`
	Codec          string   `toml:"codec"`
	Preset         string   `toml:"preset"`
	Bitrate        string   `toml:"bitrate"`
	CRF            int      `toml:"crf"`
	PixelFormat    string   `toml:"pixel_format"`
	AudioBitrate   string   `toml:"audio_bitrate"`
	SubtitleStyle  string   `toml:"subtitle_style"`
	MusicVolume    float64  `toml:"music_volume"`
}

// LLM contains the chat completion settings used for script generation.
type LLM struct {
	APIKey           string  `toml:"api_key"`
	BaseURL          string  `toml:"base_url"`
	Model            string  `toml:"model"`
	Temperature      float64 `toml:"temperature"`
	FrequencyPenalty float64 `toml:"frequency_penalty"`
	TimeoutSeconds   int     `toml:"timeout_seconds"`
	MaxRetries       int     `toml:"max_retries"`
	PromptPath       string  `toml:"prompt_path"`
}

// Speech contains the text-to-speech settings.
type Speech struct {
	APIKey         string   `toml:"api_key"`
	BaseURL        string   `toml:"base_url"`
	Model          string   `toml:"model"`
	Voices         []string `toml:"voices"`
	Language       string   `toml:"language"`
	Speed          float64  `toml:"speed"`
	Format         string   `toml:"format"`
	Instructions   string   `toml:"instructions"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	MaxRetries     int      `toml:"max_retries"`
}

// Fit contains the duration-fit retry settings.
type Fit struct {
	// MaxAttempts bounds script regeneration for one unit. Zero means unbounded.
	MaxAttempts int `toml:"max_attempts"`
}

// Workflow contains batch pacing.
type Workflow struct {
	MinUnitSpacingSeconds int `toml:"min_unit_spacing_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	UnitCompleted  bool   `toml:"unit_completed"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for shortreel.
//
// Configuration sections by subsystem:
//   - Paths: clip input, scratch workspace, outputs, music, state and logs
//   - Video: trim and encode knobs for the transcoder
//   - LLM: chat completion settings for script generation
//   - Speech: text-to-speech settings
//   - Fit: retry bound for the duration-fit loop
//   - Workflow: spacing between units
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Video         Video         `toml:"video"`
	LLM           LLM           `toml:"llm"`
	Speech        Speech        `toml:"speech"`
	Fit           Fit           `toml:"fit"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("shortreel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the batch writes into.
// The music directory is optional and never created.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.OutputDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for duration and tag probes.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// MinUnitSpacing returns the minimum wall-clock gap between unit starts.
func (c *Config) MinUnitSpacing() time.Duration {
	return time.Duration(c.Workflow.MinUnitSpacingSeconds) * time.Second
}

// CatalogPath is the persisted combination catalog.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.StateDir, "combinations.json")
}

// MarkerPath is the crash marker file.
func (c *Config) MarkerPath() string {
	return filepath.Join(c.Paths.StateDir, "crash.txt")
}

// ThemesPath is the per-run theme set file.
func (c *Config) ThemesPath() string {
	return filepath.Join(c.Paths.StateDir, "themes.yaml")
}

// ScriptPath holds the last accepted script, which feeds the next prompt.
func (c *Config) ScriptPath() string {
	return filepath.Join(c.Paths.StateDir, "subtitles.srt")
}

// LedgerPath is the sqlite run history database.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath guards against two concurrent batches.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "shortreel.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration text.
func SampleConfig() string {
	return sampleConfig
}
