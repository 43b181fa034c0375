package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace lays out the scratch files of the unit in progress.
type Workspace struct {
	Root string
}

func (w Workspace) trimmedDir() string { return filepath.Join(w.Root, "trimmed") }

func (w Workspace) speechDir() string { return filepath.Join(w.Root, "speech") }

// Trimmed is where the trimmed copy of clip is written.
func (w Workspace) Trimmed(clip string) string {
	return filepath.Join(w.trimmedDir(), filepath.Base(clip))
}

// Speech is the synthesized audio for zero-based line.
func (w Workspace) Speech(line int, ext string) string {
	return filepath.Join(w.speechDir(), fmt.Sprintf("line%d%s", line+1, ext))
}

// Concat is the silent joined video.
func (w Workspace) Concat() string { return filepath.Join(w.Root, "concat.mp4") }

// Subtitled is the joined video with burned-in subtitles.
func (w Workspace) Subtitled() string { return filepath.Join(w.Root, "subtitled.mp4") }

// Voice is the padded three-line voice track.
func (w Workspace) Voice() string { return filepath.Join(w.Root, "voice.mp3") }

// Script is the retimed subtitle file burned into the video.
func (w Workspace) Script() string { return filepath.Join(w.Root, "script.srt") }

func (w Workspace) ensure() error {
	for _, dir := range []string{w.Root, w.trimmedDir(), w.speechDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Outputs names the final files per unit.
type Outputs struct {
	Root string
}

// WithoutMusicDir holds the voice-only outputs.
func (o Outputs) WithoutMusicDir() string { return filepath.Join(o.Root, "without_music") }

// WithMusicDir holds the outputs with a background track.
func (o Outputs) WithMusicDir() string { return filepath.Join(o.Root, "with_music") }

// WithoutMusic is the voice-only output for zero-based unit index.
func (o Outputs) WithoutMusic(index int) string {
	return filepath.Join(o.WithoutMusicDir(), fmt.Sprintf("output%d.mp4", index+1))
}

// WithMusic is the output with music for zero-based unit index.
func (o Outputs) WithMusic(index int) string {
	return filepath.Join(o.WithMusicDir(), fmt.Sprintf("output %d.mp4", index+1))
}
