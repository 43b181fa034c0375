package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"shortreel/internal/config"
)

func TestLoadDefaultConfigExpandsPathsAndReadsEnvKeys(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("OPENAI_API_KEY", "sk-shared")
	t.Setenv("SHORTREEL_LLM_API_KEY", "")
	t.Setenv("SHORTREEL_SPEECH_API_KEY", "sk-speech")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "shortreel", "state")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.InputDir != filepath.Join(tempHome, "shortreel", "clips") {
		t.Fatalf("unexpected input dir: %q", cfg.Paths.InputDir)
	}
	if cfg.LLM.APIKey != "sk-shared" {
		t.Fatalf("expected llm key from OPENAI_API_KEY, got %q", cfg.LLM.APIKey)
	}
	if cfg.Speech.APIKey != "sk-speech" {
		t.Fatalf("expected speech key from SHORTREEL_SPEECH_API_KEY, got %q", cfg.Speech.APIKey)
	}
	if cfg.Speech.BaseURL != cfg.LLM.BaseURL {
		t.Fatalf("expected speech base url to fall back to llm, got %q", cfg.Speech.BaseURL)
	}
	if cfg.Fit.MaxAttempts != 8 {
		t.Fatalf("unexpected fit cap: %d", cfg.Fit.MaxAttempts)
	}
	if cfg.MinUnitSpacing().Seconds() != 22 {
		t.Fatalf("unexpected unit spacing: %s", cfg.MinUnitSpacing())
	}
	if cfg.CatalogPath() != filepath.Join(wantState, "combinations.json") {
		t.Fatalf("unexpected catalog path: %q", cfg.CatalogPath())
	}
	if cfg.MarkerPath() != filepath.Join(wantState, "crash.txt") {
		t.Fatalf("unexpected marker path: %q", cfg.MarkerPath())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.OutputDir, cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
	if _, err := os.Stat(cfg.Paths.MusicDir); !os.IsNotExist(err) {
		t.Fatalf("expected music dir to stay absent, stat err=%v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "shortreel.toml")

	type payload struct {
		Paths struct {
			InputDir string `toml:"input_dir"`
			StateDir string `toml:"state_dir"`
		} `toml:"paths"`
		Video struct {
			ClipExtensions []string `toml:"clip_extensions"`
		} `toml:"video"`
		Speech struct {
			Voices []string `toml:"voices"`
		} `toml:"speech"`
		Fit struct {
			MaxAttempts int `toml:"max_attempts"`
		} `toml:"fit"`
	}
	custom := payload{}
	custom.Paths.InputDir = filepath.Join(tempDir, "clips")
	custom.Paths.StateDir = filepath.Join(tempDir, "state")
	custom.Video.ClipExtensions = []string{"MOV", ".mp4", ".mov"}
	custom.Speech.Voices = []string{" Alloy ", "alloy", "nova"}
	custom.Fit.MaxAttempts = 0

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if got := strings.Join(cfg.Video.ClipExtensions, ","); got != ".mov,.mp4" {
		t.Fatalf("unexpected clip extensions: %q", got)
	}
	if got := strings.Join(cfg.Speech.Voices, ","); got != "alloy,nova" {
		t.Fatalf("unexpected voices: %q", got)
	}
	if cfg.Fit.MaxAttempts != 0 {
		t.Fatalf("expected unbounded fit attempts, got %d", cfg.Fit.MaxAttempts)
	}
	if cfg.Paths.StateDir != filepath.Join(tempDir, "state") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"negative fit cap", func(c *config.Config) { c.Fit.MaxAttempts = -1 }, "fit.max_attempts"},
		{"negative spacing", func(c *config.Config) { c.Workflow.MinUnitSpacingSeconds = -5 }, "min_unit_spacing_seconds"},
		{"bad language", func(c *config.Config) { c.Speech.Language = "not a tag!" }, "speech.language"},
		{"no voices", func(c *config.Config) { c.Speech.Voices = nil }, "speech.voices"},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"zero trim", func(c *config.Config) { c.Video.TrimSeconds = 0 }, "video.trim_seconds"},
		{"work equals input", func(c *config.Config) { c.Paths.WorkDir = c.Paths.InputDir }, "paths.input_dir"},
		{"state inside work", func(c *config.Config) { c.Paths.StateDir = filepath.Join(c.Paths.WorkDir, "state") }, "paths.state_dir"},
		{"output inside work", func(c *config.Config) { c.Paths.OutputDir = filepath.Join(c.Paths.WorkDir, "out") }, "paths.output_dir"},
		{"input inside work", func(c *config.Config) { c.Paths.InputDir = filepath.Join(c.Paths.WorkDir, "clips") }, "paths.input_dir"},
		{"work inside state", func(c *config.Config) { c.Paths.WorkDir = filepath.Join(c.Paths.StateDir, "work") }, "paths.state_dir"},
		{"work equals output unclean", func(c *config.Config) { c.Paths.WorkDir = c.Paths.OutputDir + "/./" }, "paths.output_dir"},
		{"logs inside work", func(c *config.Config) { c.Paths.LogDir = filepath.Join(c.Paths.WorkDir, "logs") }, "paths.log_dir"},
		{"bad speech format", func(c *config.Config) { c.Speech.Format = "ogg" }, "speech.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error to mention %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateAcceptsSiblingPrefixDirs(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.WorkDir = "/data/shortreel/work"
	cfg.Paths.StateDir = "/data/shortreel/work-state"
	cfg.Paths.OutputDir = "/data/shortreel/output"
	cfg.Paths.InputDir = "/data/shortreel/clips"
	cfg.Paths.MusicDir = "/data/shortreel/music"
	cfg.Paths.LogDir = "/data/shortreel/logs"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sibling directories should validate: %v", err)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	defaults := config.Default()
	if cfg.Workflow.MinUnitSpacingSeconds != defaults.Workflow.MinUnitSpacingSeconds {
		t.Fatalf("sample spacing drifted from defaults: %d", cfg.Workflow.MinUnitSpacingSeconds)
	}
	if cfg.Video.Codec != defaults.Video.Codec || cfg.Video.CRF != defaults.Video.CRF {
		t.Fatalf("sample video settings drifted from defaults: %+v", cfg.Video)
	}
}

func TestExpandPathHandlesTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	got, err := config.ExpandPath("~/clips")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if got != filepath.Join(home, "clips") {
		t.Fatalf("unexpected expansion: %q", got)
	}
}
