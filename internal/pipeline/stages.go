package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"shortreel/internal/ffmpeg"
	"shortreel/internal/fileutil"
	"shortreel/internal/fit"
	"shortreel/internal/logging"
	"shortreel/internal/services"
	"shortreel/internal/stage"
	"shortreel/internal/subtitles"
)

// parseAttempts bounds how often a malformed model reply is requested again
// before the stage fails.
const parseAttempts = 3

// Trim writes the head of clip into the workspace.
func (r *Runner) Trim(ctx context.Context, clip string) (stage.TrimmedClip, error) {
	src := filepath.Join(r.cfg.Paths.InputDir, clip)
	if _, err := os.Stat(src); err != nil {
		return stage.TrimmedClip{}, services.Wrap(services.ErrNotFound, stage.NameTrim, "stat clip",
			fmt.Sprintf("clip %s is not in the input directory", clip), err)
	}
	if err := r.workspace.ensure(); err != nil {
		return stage.TrimmedClip{}, services.Wrap(services.ErrConfiguration, stage.NameTrim, "prepare workspace", "cannot create work directory", err)
	}
	dst := r.workspace.Trimmed(clip)
	if err := r.exec.Run(ctx, ffmpeg.Trim(r.cfg.Video, src, dst)); err != nil {
		return stage.TrimmedClip{}, toolError(ctx, stage.NameTrim, "trim clip", err)
	}
	return stage.TrimmedClip{Source: clip, Path: dst}, nil
}

// ExtractTheme reads the container comment tag of clip.
func (r *Runner) ExtractTheme(ctx context.Context, clip string) (string, error) {
	result, err := r.probe.Inspect(ctx, filepath.Join(r.cfg.Paths.InputDir, clip))
	if err != nil {
		return "", toolError(ctx, stage.NameTheme, "probe clip", err)
	}
	return result.Tag("comment"), nil
}

// GenerateScript asks for a script, passing the previous unit's lines so the
// model does not repeat itself.
func (r *Runner) GenerateScript(ctx context.Context, themes [3]string) (stage.Script, error) {
	previous := r.previousLines(ctx)
	var lastErr error
	for attempt := 1; attempt <= parseAttempts; attempt++ {
		raw, err := r.scripts.Generate(ctx, themes, previous)
		if err != nil {
			return stage.Script{}, err
		}
		script, err := stage.ParseScript(raw)
		if err == nil {
			err = script.Validate()
		}
		if err == nil {
			return script, nil
		}
		lastErr = err
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "model returned an unusable script", "script_malformed",
			logging.Int("attempt", attempt),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the prompt template if this repeats"),
			logging.String(logging.FieldImpact, "script requested again"),
		)
	}
	return stage.Script{}, lastErr
}

// previousLines returns the cue texts of the last accepted script, or nil.
func (r *Runner) previousLines(ctx context.Context) []string {
	data, err := os.ReadFile(r.cfg.ScriptPath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.WithContext(ctx, r.logger).Debug("previous script unreadable", logging.Error(err))
		}
		return nil
	}
	cues, err := subtitles.Parse(string(data))
	if err != nil {
		logging.WithContext(ctx, r.logger).Debug("previous script unparsable", logging.Error(err))
		return nil
	}
	lines := make([]string, 0, len(cues))
	for _, cue := range cues {
		lines = append(lines, cue.Text)
	}
	return lines
}

// SynthesizeSpeech speaks one line with the unit's voice and measures it.
func (r *Runner) SynthesizeSpeech(ctx context.Context, line int, text string) (stage.SpeechClip, error) {
	if err := r.workspace.ensure(); err != nil {
		return stage.SpeechClip{}, services.Wrap(services.ErrConfiguration, stage.NameSpeech, "prepare workspace", "cannot create speech directory", err)
	}
	dst := r.workspace.Speech(line, r.speech.Extension())
	if err := r.speech.Synthesize(ctx, text, r.voice, dst); err != nil {
		return stage.SpeechClip{}, err
	}
	result, err := r.probe.Inspect(ctx, dst)
	if err != nil {
		return stage.SpeechClip{}, toolError(ctx, stage.NameSpeech, "probe speech", err)
	}
	duration, err := result.Duration()
	if err != nil {
		return stage.SpeechClip{}, services.Wrap(services.ErrExternalTool, stage.NameSpeech, "measure speech",
			fmt.Sprintf("cannot read duration of %s", filepath.Base(dst)), err)
	}
	return stage.SpeechClip{Path: dst, Duration: duration}, nil
}

// Mux assembles the unit: concat, burn retimed subtitles, lay the voice
// track, then optionally mix music. It returns the last file written.
func (r *Runner) Mux(ctx context.Context, req stage.MuxRequest) (string, error) {
	video := r.cfg.Video
	ws := r.workspace

	inputs := make([]string, len(req.Clips))
	for i, clip := range req.Clips {
		inputs[i] = clip.Path
	}
	if err := r.exec.Run(ctx, ffmpeg.Concat(video, inputs, ws.Concat())); err != nil {
		return "", toolError(ctx, stage.NameMux, "concat clips", err)
	}

	var lengths [3]time.Duration
	var speech [3]string
	for i, clip := range req.Speech {
		lengths[i] = clip.Duration
		speech[i] = clip.Path
	}
	srt := []byte(req.Script.SRT(fit.Window, lengths[:]...))
	if err := fileutil.WriteFileAtomic(ws.Script(), srt, 0o644); err != nil {
		return "", services.Wrap(services.ErrConfiguration, stage.NameMux, "write subtitles", "cannot write subtitle file", err)
	}
	if err := r.exec.Run(ctx, ffmpeg.BurnSubtitles(video, ws.Concat(), ws.Script(), ws.Subtitled())); err != nil {
		return "", toolError(ctx, stage.NameMux, "burn subtitles", err)
	}
	if err := r.exec.Run(ctx, ffmpeg.VoiceTrack(video, speech, req.Delays, ws.Voice())); err != nil {
		return "", toolError(ctx, stage.NameMux, "build voice track", err)
	}

	if err := os.MkdirAll(r.outputs.WithoutMusicDir(), 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, stage.NameMux, "prepare outputs", "cannot create output directory", err)
	}
	voiced := r.outputs.WithoutMusic(req.Index)
	if err := r.exec.Run(ctx, ffmpeg.ApplyVoice(video, ws.Subtitled(), ws.Voice(), voiced)); err != nil {
		return "", toolError(ctx, stage.NameMux, "apply voice", err)
	}

	final, err := r.mixMusic(ctx, req.Index, voiced)
	if err != nil {
		return "", err
	}

	// The saved script feeds the next unit's prompt. It changes only once
	// every output of this unit exists.
	if err := fileutil.WriteFileAtomic(r.cfg.ScriptPath(), srt, 0o644); err != nil {
		return "", services.Wrap(services.ErrConfiguration, stage.NameMux, "save script", "cannot write saved script", err)
	}
	return final, nil
}

// mixMusic writes the with-music output and returns its path. Without any
// tracks it returns voiced unchanged.
func (r *Runner) mixMusic(ctx context.Context, index int, voiced string) (string, error) {
	logger := logging.WithContext(ctx, r.logger)
	tracks, err := r.musicTracks()
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, stage.NameMux, "list music", "cannot read music directory", err)
	}
	if len(tracks) == 0 {
		logging.WarnWithContext(logger, "no music tracks, skipping with_music output", "music_missing",
			logging.String("music_dir", r.cfg.Paths.MusicDir),
			logging.String(logging.FieldErrorHint, "add audio files to music_dir to get with_music outputs"),
			logging.String(logging.FieldImpact, "only the without_music output is produced"),
		)
		return voiced, nil
	}
	track := tracks[r.pick(len(tracks))]
	if err := os.MkdirAll(r.outputs.WithMusicDir(), 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, stage.NameMux, "prepare outputs", "cannot create output directory", err)
	}
	dst := r.outputs.WithMusic(index)
	if err := r.exec.Run(ctx, ffmpeg.MixMusic(r.cfg.Video, voiced, track, dst)); err != nil {
		return "", toolError(ctx, stage.NameMux, "mix music", err)
	}
	logger.Debug("music mixed", logging.String("track", filepath.Base(track)))
	return dst, nil
}

// toolError passes cancellation through and marks everything else as an
// external tool failure.
func toolError(ctx context.Context, stageName, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return services.Wrap(services.ErrExternalTool, stageName, op, "external tool failed", err)
}
