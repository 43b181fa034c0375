package stage

import (
	"fmt"
	"strings"
	"time"

	"shortreel/internal/services"
	"shortreel/internal/subtitles"
)

// LineCount is the number of lines in every script.
const LineCount = 3

// Script holds the three lines of a unit's script.
type Script struct {
	Lines [LineCount]string
}

// ParseScript extracts three lines from SRT text produced by the language
// model. Extra cues are ignored; fewer than three is a validation error.
func ParseScript(raw string) (Script, error) {
	cues, err := subtitles.Parse(raw)
	if err != nil {
		return Script{}, services.Wrap(services.ErrValidation, NameScript, "parse script", "model returned malformed SRT", err)
	}
	if len(cues) < LineCount {
		return Script{}, services.Wrap(services.ErrValidation, NameScript, "parse script",
			fmt.Sprintf("model returned %d cues, want %d", len(cues), LineCount), nil)
	}
	var script Script
	for i := 0; i < LineCount; i++ {
		script.Lines[i] = strings.Join(strings.Fields(cues[i].Text), " ")
	}
	return script, nil
}

// Validate reports an empty line.
func (s Script) Validate() error {
	for i, line := range s.Lines {
		if strings.TrimSpace(line) == "" {
			return services.Wrap(services.ErrValidation, NameScript, "validate script", fmt.Sprintf("line %d is empty", i+1), nil)
		}
	}
	return nil
}

// SRT renders the script in fixed windows. lengths, when given, end each cue
// at its spoken length instead of the window edge.
func (s Script) SRT(window time.Duration, lengths ...time.Duration) string {
	return subtitles.Format(subtitles.Windowed(s.Lines[:], window, lengths))
}
