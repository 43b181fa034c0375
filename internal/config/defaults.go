package config

const (
	defaultConfigPath            = "~/.config/shortreel/config.toml"
	defaultInputDir              = "~/shortreel/clips"
	defaultWorkDir               = "~/.local/share/shortreel/work"
	defaultOutputDir             = "~/shortreel/output"
	defaultMusicDir              = "~/shortreel/music"
	defaultStateDir              = "~/.local/share/shortreel/state"
	defaultLogDir                = "~/.local/share/shortreel/logs"
	defaultTrimSeconds           = 5.0
	defaultWidth                 = 720
	defaultHeight                = 1280
	defaultFrameRate             = 60
	defaultCodec                 = "libx264"
	defaultPreset                = "medium"
	defaultBitrate               = "2M"
	defaultCRF                   = 20
	defaultPixelFormat           = "yuv420p"
	defaultAudioBitrate          = "256k"
	defaultSubtitleStyle         = "Alignment=10"
	defaultMusicVolume           = 0.3
	defaultLLMBaseURL            = "https://api.openai.com/v1/"
	defaultLLMModel              = "gpt-4o-mini"
	defaultLLMTemperature        = 0.8312
	defaultLLMFrequencyPenalty   = 0.2312
	defaultLLMTimeoutSeconds     = 60
	defaultLLMMaxRetries         = 2
	defaultSpeechModel           = "tts-1"
	defaultSpeechLanguage        = "en-US"
	defaultSpeechSpeed           = 1.0
	defaultSpeechFormat          = "mp3"
	defaultSpeechTimeoutSeconds  = 60
	defaultSpeechMaxRetries      = 2
	defaultFitMaxAttempts        = 8
	defaultMinUnitSpacingSeconds = 22
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

var (
	defaultClipExtensions = []string{".mp4"}
	defaultSpeechVoices   = []string{"onyx", "echo"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InputDir:  defaultInputDir,
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			MusicDir:  defaultMusicDir,
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
		},
		Video: Video{
			ClipExtensions: append([]string(nil), defaultClipExtensions...),
			TrimSeconds:    defaultTrimSeconds,
			Width:          defaultWidth,
			Height:         defaultHeight,
			FrameRate:      defaultFrameRate,
			Codec:          defaultCodec,
			Preset:         defaultPreset,
			Bitrate:        defaultBitrate,
			CRF:            defaultCRF,
			PixelFormat:    defaultPixelFormat,
			AudioBitrate:   defaultAudioBitrate,
			SubtitleStyle:  defaultSubtitleStyle,
			MusicVolume:    defaultMusicVolume,
		},
		LLM: LLM{
			BaseURL:          defaultLLMBaseURL,
			Model:            defaultLLMModel,
			Temperature:      defaultLLMTemperature,
			FrequencyPenalty: defaultLLMFrequencyPenalty,
			TimeoutSeconds:   defaultLLMTimeoutSeconds,
			MaxRetries:       defaultLLMMaxRetries,
		},
		Speech: Speech{
			Model:          defaultSpeechModel,
			Voices:         append([]string(nil), defaultSpeechVoices...),
			Language:       defaultSpeechLanguage,
			Speed:          defaultSpeechSpeed,
			Format:         defaultSpeechFormat,
			TimeoutSeconds: defaultSpeechTimeoutSeconds,
			MaxRetries:     defaultSpeechMaxRetries,
		},
		Fit: Fit{
			MaxAttempts: defaultFitMaxAttempts,
		},
		Workflow: Workflow{
			MinUnitSpacingSeconds: defaultMinUnitSpacingSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			UnitCompleted:  false,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
