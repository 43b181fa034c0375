package stage

import (
	"context"
	"time"

	"shortreel/internal/catalog"
)

// Stage names used in errors, logs and the ledger.
const (
	NameTrim      = "trim"
	NameTheme     = "theme-extraction"
	NameScript    = "script-generation"
	NameSpeech    = "speech-synthesis"
	NameFit       = "duration-fit"
	NameMux       = "mux"
	NameCleanup   = "cleanup"
	NameCatalog   = "catalog"
	NamePreflight = "preflight"
)

// TrimmedClip is the re-encoded head of one source clip.
type TrimmedClip struct {
	Source string
	Path   string
}

// SpeechClip is one synthesized line and its measured length.
type SpeechClip struct {
	Path     string
	Duration time.Duration
}

// MuxRequest carries everything the final assembly needs for one unit.
type MuxRequest struct {
	Index  int
	Unit   catalog.WorkUnit
	Clips  []TrimmedClip
	Script Script
	Speech [3]SpeechClip
	// Delays[n] is the silence after line n that starts line n+1 on its window.
	Delays [2]time.Duration
}

// Runner executes the external stages for one unit. Every failure is returned
// as an error; the scheduler decides escalation.
type Runner interface {
	Trim(ctx context.Context, clip string) (TrimmedClip, error)
	// ExtractTheme returns "" and a nil error when the clip carries no theme.
	ExtractTheme(ctx context.Context, clip string) (string, error)
	GenerateScript(ctx context.Context, themes [3]string) (Script, error)
	SynthesizeSpeech(ctx context.Context, line int, text string) (SpeechClip, error)
	Mux(ctx context.Context, req MuxRequest) (string, error)
}

// Cleaner is implemented by runners that keep scratch artifacts between calls.
// Reset must leave the workspace as if no stage had run for the current unit.
type Cleaner interface {
	Reset(ctx context.Context) error
}

// AttemptDiscarder drops the script and speech artifacts of a rejected fit
// attempt while keeping the unit's trimmed clips.
type AttemptDiscarder interface {
	DiscardAttempt(ctx context.Context) error
}

// HealthChecker reports runner readiness for diagnostics.
type HealthChecker interface {
	HealthCheck(ctx context.Context) []Health
}

// BatchPreparer is implemented by runners that clear previous batch outputs.
// The scheduler calls it only when a fresh catalog is built.
type BatchPreparer interface {
	PrepareBatch(ctx context.Context) error
}
