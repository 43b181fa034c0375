package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"shortreel/internal/config"
	"shortreel/internal/media/ffprobe"
	"shortreel/internal/pipeline"
	"shortreel/internal/services"
	"shortreel/internal/stage"
	"shortreel/internal/subtitles"
	"shortreel/internal/testsupport"
)

// fakeExecutor records every invocation and creates the destination file,
// which ffmpeg always receives as the last argument.
type fakeExecutor struct {
	mu     sync.Mutex
	calls  [][]string
	failOn string
}

func (e *fakeExecutor) Run(_ context.Context, args []string) error {
	e.mu.Lock()
	e.calls = append(e.calls, append([]string(nil), args...))
	e.mu.Unlock()
	if e.failOn != "" && strings.Contains(strings.Join(args, " "), e.failOn) {
		return errors.New("exit status 1")
	}
	dst := args[len(args)-1]
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, []byte("media"), 0o644)
}

func (e *fakeExecutor) destinations() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	for i, call := range e.calls {
		out[i] = call[len(call)-1]
	}
	return out
}

type fakeProber struct {
	results map[string]ffprobe.Result
	err     error
}

func (p *fakeProber) Inspect(_ context.Context, path string) (ffprobe.Result, error) {
	if p.err != nil {
		return ffprobe.Result{}, p.err
	}
	if result, ok := p.results[filepath.Base(path)]; ok {
		return result, nil
	}
	return ffprobe.Result{Format: ffprobe.Format{Filename: path}}, nil
}

type fakeGenerator struct {
	replies  []string
	calls    int
	previous [][]string
	themes   [][3]string
}

func (g *fakeGenerator) Generate(_ context.Context, themes [3]string, previous []string) (string, error) {
	g.themes = append(g.themes, themes)
	g.previous = append(g.previous, previous)
	reply := g.replies[len(g.replies)-1]
	if g.calls < len(g.replies) {
		reply = g.replies[g.calls]
	}
	g.calls++
	return reply, nil
}

type fakeSynth struct {
	voices []string
	err    error
}

func (s *fakeSynth) Synthesize(_ context.Context, text, voice, dst string) error {
	if s.err != nil {
		return s.err
	}
	s.voices = append(s.voices, voice)
	return os.WriteFile(dst, []byte(text), 0o644)
}

func (s *fakeSynth) Extension() string { return ".mp3" }

const threeCues = "1\n00:00:00,000 --> 00:00:05,000\nFirst line about the sea\n\n" +
	"2\n00:00:05,000 --> 00:00:10,000\nSecond line about the hills\n\n" +
	"3\n00:00:10,000 --> 00:00:15,000\nThird line about the sky\n"

type harness struct {
	cfg    *config.Config
	exec   *fakeExecutor
	probe  *fakeProber
	gen    *fakeGenerator
	synth  *fakeSynth
	runner *pipeline.Runner
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	h := &harness{
		cfg:   testsupport.NewConfig(t, opts...),
		exec:  &fakeExecutor{},
		probe: &fakeProber{results: map[string]ffprobe.Result{}},
		gen:   &fakeGenerator{replies: []string{threeCues}},
		synth: &fakeSynth{},
	}
	runner, err := pipeline.New(h.cfg, pipeline.Deps{
		Executor: h.exec,
		Prober:   h.probe,
		Scripts:  h.gen,
		Speech:   h.synth,
		Pick:     func(n int) int { return n - 1 },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.runner = runner
	return h
}

func TestListClipsFiltersAndSorts(t *testing.T) {
	h := newHarness(t, testsupport.WithClips("c.mp4", "a.MP4", "b.mp4", "notes.txt", ".hidden.mp4"))
	if err := os.MkdirAll(filepath.Join(h.cfg.Paths.InputDir, "sub.mp4"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	clips, err := h.runner.ListClips(context.Background())
	if err != nil {
		t.Fatalf("ListClips: %v", err)
	}
	want := []string{"a.MP4", "b.mp4", "c.mp4"}
	if !reflect.DeepEqual(clips, want) {
		t.Fatalf("clips = %v, want %v", clips, want)
	}
}

func TestListClipsMissingInputDir(t *testing.T) {
	h := newHarness(t)
	_, err := h.runner.ListClips(context.Background())
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTrimWritesIntoWorkspace(t *testing.T) {
	h := newHarness(t, testsupport.WithClips("a.mp4"))

	clip, err := h.runner.Trim(context.Background(), "a.mp4")
	if err != nil {
		t.Fatalf("Trim: %v", err)
	}
	if clip.Source != "a.mp4" {
		t.Fatalf("source = %q", clip.Source)
	}
	if want := filepath.Join(h.cfg.Paths.WorkDir, "trimmed", "a.mp4"); clip.Path != want {
		t.Fatalf("path = %q, want %q", clip.Path, want)
	}
	args := strings.Join(h.exec.calls[0], " ")
	for _, fragment := range []string{"-t 5", "-an", "-r 60", "scale=720:1280", "-crf 20"} {
		if !strings.Contains(args, fragment) {
			t.Fatalf("trim args missing %q: %s", fragment, args)
		}
	}
}

func TestTrimMissingClipIsNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.runner.Trim(context.Background(), "gone.mp4")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(h.exec.calls) != 0 {
		t.Fatalf("ffmpeg should not run for a missing clip")
	}
}

func TestTrimToolFailureIsExternal(t *testing.T) {
	h := newHarness(t, testsupport.WithClips("a.mp4"))
	h.exec.failOn = "scale="
	_, err := h.runner.Trim(context.Background(), "a.mp4")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestExtractThemeReadsCommentTag(t *testing.T) {
	h := newHarness(t)
	h.probe.results["sea.mp4"] = ffprobe.Result{Format: ffprobe.Format{Tags: map[string]string{"COMMENT": " sea "}}}

	theme, err := h.runner.ExtractTheme(context.Background(), "sea.mp4")
	if err != nil {
		t.Fatalf("ExtractTheme: %v", err)
	}
	if theme != "sea" {
		t.Fatalf("theme = %q, want sea", theme)
	}

	theme, err = h.runner.ExtractTheme(context.Background(), "plain.mp4")
	if err != nil || theme != "" {
		t.Fatalf("untagged clip: theme=%q err=%v", theme, err)
	}
}

func TestExtractThemeProbeFailure(t *testing.T) {
	h := newHarness(t)
	h.probe.err = errors.New("ffprobe exploded")
	if _, err := h.runner.ExtractTheme(context.Background(), "a.mp4"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestGenerateScriptPassesPreviousLines(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteText(t, h.cfg.ScriptPath(), "1\n00:00:00,000 --> 00:00:04,100\nOld one\n\n2\n00:00:05,000 --> 00:00:09,000\nOld two\n")

	script, err := h.runner.GenerateScript(context.Background(), [3]string{"sea", "hills", "sky"})
	if err != nil {
		t.Fatalf("GenerateScript: %v", err)
	}
	if script.Lines[1] != "Second line about the hills" {
		t.Fatalf("unexpected line 2: %q", script.Lines[1])
	}
	if !reflect.DeepEqual(h.gen.previous[0], []string{"Old one", "Old two"}) {
		t.Fatalf("previous = %v", h.gen.previous[0])
	}
	if h.gen.themes[0] != [3]string{"sea", "hills", "sky"} {
		t.Fatalf("themes = %v", h.gen.themes[0])
	}
}

func TestGenerateScriptRetriesMalformedReply(t *testing.T) {
	h := newHarness(t)
	h.gen.replies = []string{"I cannot help with that.", threeCues}

	if _, err := h.runner.GenerateScript(context.Background(), [3]string{}); err != nil {
		t.Fatalf("GenerateScript: %v", err)
	}
	if h.gen.calls != 2 {
		t.Fatalf("expected 2 generate calls, got %d", h.gen.calls)
	}
	if h.gen.previous[0] != nil {
		t.Fatalf("expected no previous lines without a saved script, got %v", h.gen.previous[0])
	}
}

func TestGenerateScriptGivesUpOnPersistentGarbage(t *testing.T) {
	h := newHarness(t)
	h.gen.replies = []string{"nope"}

	_, err := h.runner.GenerateScript(context.Background(), [3]string{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if h.gen.calls != 3 {
		t.Fatalf("expected 3 generate calls, got %d", h.gen.calls)
	}
}

func TestSynthesizeSpeechMeasuresDuration(t *testing.T) {
	h := newHarness(t, testsupport.WithClips("a.mp4"))
	h.probe.results["line2.mp3"] = ffprobe.Result{Format: ffprobe.Format{Duration: "4.25"}}
	if err := h.runner.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	clip, err := h.runner.SynthesizeSpeech(context.Background(), 1, "hello there")
	if err != nil {
		t.Fatalf("SynthesizeSpeech: %v", err)
	}
	if clip.Duration != 4250*time.Millisecond {
		t.Fatalf("duration = %s", clip.Duration)
	}
	if want := filepath.Join(h.cfg.Paths.WorkDir, "speech", "line2.mp3"); clip.Path != want {
		t.Fatalf("path = %q, want %q", clip.Path, want)
	}
	if got := h.synth.voices[0]; got != h.runner.Voice() {
		t.Fatalf("voice = %q, want %q", got, h.runner.Voice())
	}
}

func TestSynthesizeSpeechWithoutDurationFails(t *testing.T) {
	h := newHarness(t)
	_, err := h.runner.SynthesizeSpeech(context.Background(), 0, "hello")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestResetEmptiesWorkspaceAndPicksVoice(t *testing.T) {
	h := newHarness(t)
	stale := filepath.Join(h.cfg.Paths.WorkDir, "concat.mp4")
	testsupport.WriteFile(t, stale, 4)

	if err := h.runner.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale file removed, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(h.cfg.Paths.WorkDir, "speech")); err != nil {
		t.Fatalf("expected speech dir recreated: %v", err)
	}
	voices := h.cfg.Speech.Voices
	if h.runner.Voice() != voices[len(voices)-1] {
		t.Fatalf("voice = %q, want last configured voice", h.runner.Voice())
	}
}

func TestDiscardAttemptKeepsTrimmedClips(t *testing.T) {
	h := newHarness(t, testsupport.WithClips("a.mp4"))
	ctx := context.Background()
	if err := h.runner.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	trimmed, err := h.runner.Trim(ctx, "a.mp4")
	if err != nil {
		t.Fatalf("Trim: %v", err)
	}
	speech := filepath.Join(h.cfg.Paths.WorkDir, "speech", "line1.mp3")
	testsupport.WriteFile(t, speech, 4)

	if err := h.runner.DiscardAttempt(ctx); err != nil {
		t.Fatalf("DiscardAttempt: %v", err)
	}
	if _, err := os.Stat(speech); !os.IsNotExist(err) {
		t.Fatalf("expected speech removed, stat err=%v", err)
	}
	if _, err := os.Stat(trimmed.Path); err != nil {
		t.Fatalf("expected trimmed clip kept: %v", err)
	}
}

func TestPrepareBatchEmptiesOutputs(t *testing.T) {
	h := newHarness(t)
	old := filepath.Join(h.cfg.Paths.OutputDir, "without_music", "output1.mp4")
	testsupport.WriteFile(t, old, 4)
	testsupport.WriteFile(t, filepath.Join(h.cfg.Paths.OutputDir, "with_music", "output 1.mp4"), 4)
	keep := filepath.Join(h.cfg.Paths.OutputDir, "readme.txt")
	testsupport.WriteFile(t, keep, 4)

	if err := h.runner.PrepareBatch(context.Background()); err != nil {
		t.Fatalf("PrepareBatch: %v", err)
	}
	for _, dir := range []string{"without_music", "with_music"} {
		if names := testsupport.ListDir(t, filepath.Join(h.cfg.Paths.OutputDir, dir)); len(names) != 0 {
			t.Fatalf("%s not emptied: %v", dir, names)
		}
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("files outside the output sub-directories must survive: %v", err)
	}
}

func muxRequest(h *harness, index int) stage.MuxRequest {
	work := h.cfg.Paths.WorkDir
	return stage.MuxRequest{
		Index: index,
		Clips: []stage.TrimmedClip{
			{Source: "a.mp4", Path: filepath.Join(work, "trimmed", "a.mp4")},
			{Source: "b.mp4", Path: filepath.Join(work, "trimmed", "b.mp4")},
			{Source: "c.mp4", Path: filepath.Join(work, "trimmed", "c.mp4")},
		},
		Script: stage.Script{Lines: [3]string{"one", "two", "three"}},
		Speech: [3]stage.SpeechClip{
			{Path: filepath.Join(work, "speech", "line1.mp3"), Duration: 4100 * time.Millisecond},
			{Path: filepath.Join(work, "speech", "line2.mp3"), Duration: 3 * time.Second},
			{Path: filepath.Join(work, "speech", "line3.mp3"), Duration: 4500 * time.Millisecond},
		},
		Delays: [2]time.Duration{900 * time.Millisecond, 2 * time.Second},
	}
}

func TestMuxWithMusic(t *testing.T) {
	h := newHarness(t, testsupport.WithMusic("calm.mp3", "notes.txt"))
	if err := h.runner.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	final, err := h.runner.Mux(context.Background(), muxRequest(h, 1))
	if err != nil {
		t.Fatalf("Mux: %v", err)
	}
	out := h.cfg.Paths.OutputDir
	if want := filepath.Join(out, "with_music", "output 2.mp4"); final != want {
		t.Fatalf("final = %q, want %q", final, want)
	}
	dsts := h.exec.destinations()
	if len(dsts) != 5 {
		t.Fatalf("expected 5 ffmpeg runs, got %d: %v", len(dsts), dsts)
	}
	if want := filepath.Join(out, "without_music", "output2.mp4"); dsts[3] != want {
		t.Fatalf("voiced output = %q, want %q", dsts[3], want)
	}

	voice := strings.Join(h.exec.calls[2], " ")
	if !strings.Contains(voice, "adelay=delays=900:all=1") || !strings.Contains(voice, "adelay=delays=2000:all=1") {
		t.Fatalf("voice track missing delays: %s", voice)
	}
	mix := strings.Join(h.exec.calls[4], " ")
	if !strings.Contains(mix, filepath.Join(h.cfg.Paths.MusicDir, "calm.mp3")) {
		t.Fatalf("music track not used: %s", mix)
	}

	cues, err := subtitles.Parse(testsupport.ReadText(t, h.cfg.ScriptPath()))
	if err != nil {
		t.Fatalf("parse saved script: %v", err)
	}
	if len(cues) != 3 {
		t.Fatalf("expected 3 saved cues, got %d", len(cues))
	}
	if cues[0].End != 4100*time.Millisecond || cues[1].Start != 5*time.Second || cues[2].End != 14500*time.Millisecond {
		t.Fatalf("saved cues not retimed: %+v", cues)
	}
}

func TestMuxWithoutMusicSkipsMix(t *testing.T) {
	h := newHarness(t)

	final, err := h.runner.Mux(context.Background(), muxRequest(h, 0))
	if err != nil {
		t.Fatalf("Mux: %v", err)
	}
	if want := filepath.Join(h.cfg.Paths.OutputDir, "without_music", "output1.mp4"); final != want {
		t.Fatalf("final = %q, want %q", final, want)
	}
	if n := len(h.exec.calls); n != 4 {
		t.Fatalf("expected 4 ffmpeg runs, got %d", n)
	}
}

func TestMuxFailureKeepsPreviousScript(t *testing.T) {
	tests := []struct {
		name   string
		failOn string
	}{
		{"burn subtitles", "subtitles="},
		{"apply voice", "without_music"},
		{"mix music", "amix="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testsupport.WithMusic("calm.mp3"))
			testsupport.WriteText(t, h.cfg.ScriptPath(), threeCues)
			h.exec.failOn = tt.failOn

			_, err := h.runner.Mux(context.Background(), muxRequest(h, 0))
			if !errors.Is(err, services.ErrExternalTool) {
				t.Fatalf("expected ErrExternalTool, got %v", err)
			}
			if got := testsupport.ReadText(t, h.cfg.ScriptPath()); got != threeCues {
				t.Fatalf("saved script changed on failure: %q", got)
			}
		})
	}
}

func TestHealthCheckReportsMissingPieces(t *testing.T) {
	h := newHarness(t, testsupport.WithAPIKeys(""), testsupport.WithClips("a.mp4"))

	report := map[string]stage.Health{}
	for _, health := range h.runner.HealthCheck(context.Background()) {
		report[health.Name] = health
	}
	if report["input clips"].Ready {
		t.Fatalf("one clip should not be ready: %+v", report["input clips"])
	}
	if report["script model key"].Ready || report["speech model key"].Ready {
		t.Fatalf("missing keys should be unhealthy: %+v", report)
	}
	if !report["music"].Ready {
		t.Fatalf("music is optional: %+v", report["music"])
	}
}

func TestNewRejectsEmptyVoices(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Speech.Voices = nil
	_, err := pipeline.New(cfg, pipeline.Deps{Scripts: &fakeGenerator{}, Speech: &fakeSynth{}})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
