package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"

	"shortreel/internal/config"
	"shortreel/internal/deps"
	"shortreel/internal/ffmpeg"
	"shortreel/internal/fileutil"
	"shortreel/internal/logging"
	"shortreel/internal/media/ffprobe"
	"shortreel/internal/services"
	"shortreel/internal/stage"
)

// Prober inspects media files.
type Prober interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// ScriptGenerator asks the language model for a raw SRT script.
type ScriptGenerator interface {
	Generate(ctx context.Context, themes [3]string, previous []string) (string, error)
}

// Synthesizer turns one line of text into an audio file.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice, dst string) error
	Extension() string
}

// Deps wires the runner. Scripts and Speech are required.
type Deps struct {
	Executor ffmpeg.Executor
	Prober   Prober
	Scripts  ScriptGenerator
	Speech   Synthesizer
	Logger   *slog.Logger
	// Pick returns a uniform index in [0, n). Defaults to math/rand.
	Pick func(n int) int
}

// Runner executes every stage against the local filesystem and the external
// tools.
type Runner struct {
	cfg       *config.Config
	exec      ffmpeg.Executor
	probe     Prober
	scripts   ScriptGenerator
	speech    Synthesizer
	logger    *slog.Logger
	pick      func(n int) int
	workspace Workspace
	outputs   Outputs

	voice string
}

// New builds a runner over cfg.
func New(cfg *config.Config, d Deps) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: config is required")
	}
	if d.Scripts == nil {
		return nil, errors.New("pipeline: script generator is required")
	}
	if d.Speech == nil {
		return nil, errors.New("pipeline: speech synthesizer is required")
	}
	if len(cfg.Speech.Voices) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, stage.NameSpeech, "configure", "speech.voices is empty", nil)
	}
	r := &Runner{
		cfg:       cfg,
		exec:      d.Executor,
		probe:     d.Prober,
		scripts:   d.Scripts,
		speech:    d.Speech,
		logger:    logging.NewComponentLogger(d.Logger, "pipeline"),
		pick:      d.Pick,
		workspace: Workspace{Root: cfg.Paths.WorkDir},
		outputs:   Outputs{Root: cfg.Paths.OutputDir},
	}
	if r.exec == nil {
		r.exec = ffmpeg.NewCommand(cfg.FFmpegBinary())
	}
	if r.probe == nil {
		r.probe = binaryProber{binary: cfg.FFprobeBinary()}
	}
	if r.pick == nil {
		r.pick = rand.IntN
	}
	r.voice = cfg.Speech.Voices[0]
	return r, nil
}

type binaryProber struct {
	binary string
}

func (p binaryProber) Inspect(ctx context.Context, path string) (ffprobe.Result, error) {
	return ffprobe.Inspect(ctx, p.binary, path)
}

// Voice is the voice chosen for the current unit.
func (r *Runner) Voice() string { return r.voice }

// Reset empties the workspace and picks the voice for the next unit.
func (r *Runner) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fileutil.EmptyDir(r.workspace.Root); err != nil {
		return services.Wrap(services.ErrConfiguration, stage.NameCleanup, "reset workspace", "cannot empty work directory", err)
	}
	if err := r.workspace.ensure(); err != nil {
		return services.Wrap(services.ErrConfiguration, stage.NameCleanup, "reset workspace", "cannot create work directory", err)
	}
	voices := r.cfg.Speech.Voices
	r.voice = voices[r.pick(len(voices))]
	logging.WithContext(ctx, r.logger).Debug("workspace reset", logging.String("voice", r.voice))
	return nil
}

// DiscardAttempt drops the speech files of a rejected attempt. Trimmed clips
// stay for the next attempt.
func (r *Runner) DiscardAttempt(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fileutil.EmptyDir(r.workspace.speechDir()); err != nil {
		return services.Wrap(services.ErrConfiguration, stage.NameCleanup, "discard attempt", "cannot empty speech directory", err)
	}
	return nil
}

// PrepareBatch empties both output directories before a fresh batch.
func (r *Runner) PrepareBatch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, dir := range []string{r.outputs.WithoutMusicDir(), r.outputs.WithMusicDir()} {
		if err := fileutil.EmptyDir(dir); err != nil {
			return services.Wrap(services.ErrConfiguration, stage.NameCleanup, "prepare batch", "cannot empty output directory", err)
		}
	}
	logging.WithContext(ctx, r.logger).Info("output directories emptied for fresh batch",
		logging.String("output_dir", r.outputs.Root),
	)
	return nil
}

// HealthCheck reports the tools, directories and credentials the stages need.
func (r *Runner) HealthCheck(ctx context.Context) []stage.Health {
	var results []stage.Health
	for _, status := range deps.CheckBinaries(deps.Requirements(r.cfg)) {
		if status.Available {
			results = append(results, stage.Healthy(status.Name))
			continue
		}
		results = append(results, stage.Unhealthy(status.Name, status.Detail))
	}

	if info, err := os.Stat(r.cfg.Paths.InputDir); err != nil || !info.IsDir() {
		results = append(results, stage.Unhealthy("input clips", "input directory missing: "+r.cfg.Paths.InputDir))
	} else if clips, err := r.ListClips(ctx); err != nil {
		results = append(results, stage.Unhealthy("input clips", err.Error()))
	} else if len(clips) < 3 {
		results = append(results, stage.Unhealthy("input clips", fmt.Sprintf("%d clips found, need at least 3", len(clips))))
	} else {
		results = append(results, stage.Healthy("input clips"))
	}

	if tracks, err := r.musicTracks(); err != nil {
		results = append(results, stage.Unhealthy("music", err.Error()))
	} else if len(tracks) == 0 {
		results = append(results, stage.Health{Name: "music", Ready: true, Detail: "no tracks; with_music outputs are skipped"})
	} else {
		results = append(results, stage.Healthy("music"))
	}

	results = append(results, credential("script model key", r.cfg.LLM.APIKey))
	results = append(results, credential("speech model key", r.cfg.Speech.APIKey))
	return results
}

func credential(name, key string) stage.Health {
	if strings.TrimSpace(key) == "" {
		return stage.Unhealthy(name, "api key not configured")
	}
	return stage.Healthy(name)
}
