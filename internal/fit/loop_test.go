package fit_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"shortreel/internal/catalog"
	"shortreel/internal/fit"
	"shortreel/internal/services"
	"shortreel/internal/stage"
)

type scriptedRunner struct {
	// takes holds the three line durations returned for each attempt, in order.
	takes      [][3]time.Duration
	scriptErr  error
	speechErr  error
	scripts    int
	syntheses  int
	discards   int
	muxCalls   int
	lastThemes [3]string
}

func (r *scriptedRunner) Trim(context.Context, string) (stage.TrimmedClip, error) {
	return stage.TrimmedClip{}, nil
}

func (r *scriptedRunner) ExtractTheme(context.Context, string) (string, error) { return "", nil }

func (r *scriptedRunner) GenerateScript(_ context.Context, themes [3]string) (stage.Script, error) {
	r.lastThemes = themes
	if r.scriptErr != nil {
		return stage.Script{}, r.scriptErr
	}
	r.scripts++
	n := r.scripts
	return stage.Script{Lines: [3]string{
		fmt.Sprintf("take %d line 1", n),
		fmt.Sprintf("take %d line 2", n),
		fmt.Sprintf("take %d line 3", n),
	}}, nil
}

func (r *scriptedRunner) SynthesizeSpeech(_ context.Context, line int, _ string) (stage.SpeechClip, error) {
	if r.speechErr != nil {
		return stage.SpeechClip{}, r.speechErr
	}
	r.syntheses++
	take := r.takes[len(r.takes)-1]
	if r.scripts-1 < len(r.takes) {
		take = r.takes[r.scripts-1]
	}
	return stage.SpeechClip{Path: fmt.Sprintf("line_%d.mp3", line), Duration: take[line]}, nil
}

func (r *scriptedRunner) Mux(context.Context, stage.MuxRequest) (string, error) {
	r.muxCalls++
	return "out.mp4", nil
}

func (r *scriptedRunner) DiscardAttempt(context.Context) error {
	r.discards++
	return nil
}

type recordingObserver struct {
	rejected []int
	accepted []int
}

func (o *recordingObserver) AttemptRejected(_ context.Context, _ int, attempt int, _ fit.Verdict) {
	o.rejected = append(o.rejected, attempt)
}

func (o *recordingObserver) AttemptAccepted(_ context.Context, _ int, attempt int, _ fit.Verdict) {
	o.accepted = append(o.accepted, attempt)
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

var unit = catalog.WorkUnit{Clips: [3]string{"a.mp4", "b.mp4", "c.mp4"}}

func TestLoopAcceptsFittingTakeImmediately(t *testing.T) {
	runner := &scriptedRunner{takes: [][3]time.Duration{{ms(3000), ms(4000), ms(4500)}}}
	obs := &recordingObserver{}
	loop := fit.NewLoop(runner, 8, obs, nil)

	take, err := loop.Run(context.Background(), 0, unit, [3]string{"x", "y", "z"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if take.Attempts != 1 || !take.Verdict.Fit {
		t.Fatalf("expected first attempt to fit, got %+v", take)
	}
	if runner.scripts != 1 || runner.syntheses != 3 {
		t.Fatalf("expected one script and three syntheses, got %d and %d", runner.scripts, runner.syntheses)
	}
	if runner.discards != 0 {
		t.Fatalf("expected no discards, got %d", runner.discards)
	}
	if take.Verdict.Delays != [2]time.Duration{ms(2000), ms(1000)} {
		t.Fatalf("unexpected delays: %v", take.Verdict.Delays)
	}
	if runner.lastThemes != [3]string{"x", "y", "z"} {
		t.Fatalf("themes not passed through: %v", runner.lastThemes)
	}
	if len(obs.accepted) != 1 || len(obs.rejected) != 0 {
		t.Fatalf("unexpected observer calls: %+v", obs)
	}
}

func TestLoopRegeneratesOnOverlongLine(t *testing.T) {
	runner := &scriptedRunner{takes: [][3]time.Duration{
		{ms(5200), ms(3000), ms(3000)},
		{ms(3000), ms(4000), ms(4500)},
	}}
	obs := &recordingObserver{}
	loop := fit.NewLoop(runner, 8, obs, nil)

	take, err := loop.Run(context.Background(), 3, unit, [3]string{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if take.Attempts != 2 {
		t.Fatalf("expected acceptance on attempt 2, got %d", take.Attempts)
	}
	if runner.scripts != 2 {
		t.Fatalf("expected script generation to be re-entered, got %d scripts", runner.scripts)
	}
	if runner.discards != 1 {
		t.Fatalf("expected rejected attempt artifacts to be discarded once, got %d", runner.discards)
	}
	if take.Script.Lines[0] != "take 2 line 1" {
		t.Fatalf("expected the second script to win, got %q", take.Script.Lines[0])
	}
	if runner.muxCalls != 0 {
		t.Fatal("fit loop must never mux")
	}
	if len(obs.rejected) != 1 || obs.rejected[0] != 1 || len(obs.accepted) != 1 {
		t.Fatalf("unexpected observer calls: %+v", obs)
	}
}

func TestLoopExhaustsAttempts(t *testing.T) {
	runner := &scriptedRunner{takes: [][3]time.Duration{{ms(5200), ms(3000), ms(3000)}}}
	loop := fit.NewLoop(runner, 3, nil, nil)

	_, err := loop.Run(context.Background(), 1, unit, [3]string{})
	var exhausted *fit.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if !errors.Is(err, services.ErrFitExhausted) {
		t.Fatalf("expected ErrFitExhausted marker, got %v", err)
	}
	if exhausted.Attempts != 3 || runner.scripts != 3 {
		t.Fatalf("expected 3 attempts, got %d (scripts %d)", exhausted.Attempts, runner.scripts)
	}
	if exhausted.Last.Fit {
		t.Fatal("last verdict should be a rejection")
	}
}

func TestLoopUnboundedKeepsTrying(t *testing.T) {
	takes := make([][3]time.Duration, 0, 20)
	for i := 0; i < 19; i++ {
		takes = append(takes, [3]time.Duration{ms(6000), ms(1000), ms(1000)})
	}
	takes = append(takes, [3]time.Duration{ms(1000), ms(1000), ms(1000)})
	runner := &scriptedRunner{takes: takes}
	loop := fit.NewLoop(runner, 0, nil, nil)

	take, err := loop.Run(context.Background(), 0, unit, [3]string{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if take.Attempts != 20 {
		t.Fatalf("expected acceptance on attempt 20, got %d", take.Attempts)
	}
}

func TestLoopEscalatesStageFailures(t *testing.T) {
	tests := []struct {
		name   string
		runner *scriptedRunner
		stage  string
	}{
		{"script", &scriptedRunner{scriptErr: errors.New("rate limited")}, stage.NameScript},
		{"speech", &scriptedRunner{speechErr: errors.New("tts down"), takes: [][3]time.Duration{{}}}, stage.NameSpeech},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fit.NewLoop(tt.runner, 8, nil, nil).Run(context.Background(), 4, unit, [3]string{})
			var stageErr *services.StageError
			if !errors.As(err, &stageErr) {
				t.Fatalf("expected StageError, got %v", err)
			}
			if stageErr.Stage != tt.stage || stageErr.Unit != 4 {
				t.Fatalf("unexpected stage error: %+v", stageErr)
			}
		})
	}
}

func TestLoopHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &scriptedRunner{takes: [][3]time.Duration{{ms(1000), ms(1000), ms(1000)}}}
	_, err := fit.NewLoop(runner, 8, nil, nil).Run(ctx, 0, unit, [3]string{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if runner.scripts != 0 {
		t.Fatal("no stage should run after cancellation")
	}
}
