package fit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"shortreel/internal/catalog"
	"shortreel/internal/logging"
	"shortreel/internal/services"
	"shortreel/internal/stage"
)

// DefaultMaxAttempts bounds regeneration when the caller does not configure it.
const DefaultMaxAttempts = 8

// Take is an accepted script with its synthesized lines.
type Take struct {
	Script   stage.Script
	Speech   [3]stage.SpeechClip
	Verdict  Verdict
	Attempts int
}

// Observer receives every evaluated attempt. Rejections are normal control
// flow and never surface as errors.
type Observer interface {
	AttemptRejected(ctx context.Context, index, attempt int, verdict Verdict)
	AttemptAccepted(ctx context.Context, index, attempt int, verdict Verdict)
}

// ExhaustedError reports that no attempt fit within MaxAttempts.
type ExhaustedError struct {
	Index    int
	Attempts int
	Last     Verdict
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("unit %d: no script fit the %s windows after %d attempts (last: %s)", e.Index+1, Window, e.Attempts, e.Last.Reason)
}

func (e *ExhaustedError) Unwrap() error { return services.ErrFitExhausted }

// Loop drives generate, synthesize and check until a take fits.
type Loop struct {
	Runner stage.Runner
	// MaxAttempts caps attempts per unit. Zero means unbounded.
	MaxAttempts int
	Observer    Observer
	Logger      *slog.Logger
}

// NewLoop builds a loop with a component logger.
func NewLoop(runner stage.Runner, maxAttempts int, observer Observer, logger *slog.Logger) *Loop {
	return &Loop{
		Runner:      runner,
		MaxAttempts: maxAttempts,
		Observer:    observer,
		Logger:      logging.NewComponentLogger(logger, "fit"),
	}
}

// Run returns the first take whose durations fit. Stage failures come back as
// *services.StageError; running out of attempts returns *ExhaustedError.
func (l *Loop) Run(ctx context.Context, index int, unit catalog.WorkUnit, themes [3]string) (Take, error) {
	if l.Runner == nil {
		return Take{}, errors.New("fit loop: runner is nil")
	}
	logger := l.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx = services.WithUnitIndex(ctx, index)

	var last Verdict
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Take{}, err
		}
		if l.MaxAttempts > 0 && attempt > l.MaxAttempts {
			return Take{}, &ExhaustedError{Index: index, Attempts: l.MaxAttempts, Last: last}
		}
		if attempt > 1 {
			if discarder, ok := l.Runner.(stage.AttemptDiscarder); ok {
				if err := discarder.DiscardAttempt(ctx); err != nil {
					return Take{}, services.NewStageError(stage.NameCleanup, index, err)
				}
			}
		}

		take, err := l.attempt(ctx, index, themes)
		if err != nil {
			return Take{}, err
		}
		take.Attempts = attempt
		last = take.Verdict

		ms := take.Verdict.Milliseconds()
		attrs := []logging.Attr{
			logging.Int("attempt", attempt),
			logging.String("unit", unit.Label()),
			logging.Int64("line1_ms", ms[0]),
			logging.Int64("line2_ms", ms[1]),
			logging.Int64("line3_ms", ms[2]),
		}
		if take.Verdict.Fit {
			logging.WithContext(ctx, logger).Info("script fits windows", logging.Args(attrs...)...)
			if l.Observer != nil {
				l.Observer.AttemptAccepted(ctx, index, attempt, take.Verdict)
			}
			return take, nil
		}

		attrs = append(attrs, logging.String("reason", take.Verdict.Reason))
		logging.WithContext(ctx, logger).Info("script rejected, regenerating", logging.Args(attrs...)...)
		if l.Observer != nil {
			l.Observer.AttemptRejected(ctx, index, attempt, take.Verdict)
		}
	}
}

func (l *Loop) attempt(ctx context.Context, index int, themes [3]string) (Take, error) {
	script, err := l.Runner.GenerateScript(services.WithStage(ctx, stage.NameScript), themes)
	if err != nil {
		return Take{}, services.NewStageError(stage.NameScript, index, err)
	}
	if err := script.Validate(); err != nil {
		return Take{}, services.NewStageError(stage.NameScript, index, err)
	}

	var take Take
	take.Script = script
	var durations [3]time.Duration
	speechCtx := services.WithStage(ctx, stage.NameSpeech)
	for line, text := range script.Lines {
		clip, err := l.Runner.SynthesizeSpeech(speechCtx, line, text)
		if err != nil {
			return Take{}, services.NewStageError(stage.NameSpeech, index, err)
		}
		take.Speech[line] = clip
		durations[line] = clip.Duration
	}
	take.Verdict = Check(durations)
	return take, nil
}
