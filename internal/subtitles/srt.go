package subtitles

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Cue is a single subtitle entry.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

var blockSeparator = regexp.MustCompile(`\n\s*\n`)

// Parse reads SRT text into cues. Blocks without a parsable timing line are
// skipped. Language models sometimes drop the index line or wrap the output in
// a code fence; both are tolerated.
func Parse(content string) ([]Cue, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = stripFence(strings.TrimSpace(content))
	if content == "" {
		return nil, nil
	}

	var cues []Cue
	for _, block := range blockSeparator.Split(content, -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")

		index := len(cues) + 1
		if !strings.Contains(lines[0], "-->") {
			n, err := strconv.Atoi(strings.TrimSpace(lines[0]))
			if err != nil {
				continue
			}
			index = n
			lines = lines[1:]
		}
		if len(lines) < 2 || !strings.Contains(lines[0], "-->") {
			continue
		}

		parts := strings.SplitN(lines[0], "-->", 2)
		start, err := parseTimestamp(parts[0])
		if err != nil {
			return nil, fmt.Errorf("cue %d: %w", index, err)
		}
		end, err := parseTimestamp(parts[1])
		if err != nil {
			return nil, fmt.Errorf("cue %d: %w", index, err)
		}

		text := strings.TrimSpace(strings.Join(lines[1:], "\n"))
		if text == "" {
			continue
		}
		cues = append(cues, Cue{Index: index, Start: start, End: end, Text: text})
	}
	return cues, nil
}

// Format renders cues as SRT text, renumbering from 1.
func Format(cues []Cue) string {
	var sb strings.Builder
	for i, cue := range cues {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%d\n", i+1)
		fmt.Fprintf(&sb, "%s --> %s\n", FormatTimestamp(cue.Start), FormatTimestamp(cue.End))
		sb.WriteString(cue.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatTimestamp renders d as HH:MM:SS,mmm.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Round(time.Millisecond).Milliseconds()
	hours := ms / 3_600_000
	ms -= hours * 3_600_000
	minutes := ms / 60_000
	ms -= minutes * 60_000
	seconds := ms / 1000
	ms -= seconds * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, ms)
}

// Windowed lays texts out in consecutive fixed windows: cue n spans
// [n*window, n*window+lengths[n]). A missing or zero length fills the window.
func Windowed(texts []string, window time.Duration, lengths []time.Duration) []Cue {
	cues := make([]Cue, len(texts))
	for i, text := range texts {
		start := time.Duration(i) * window
		length := window
		if i < len(lengths) && lengths[i] > 0 {
			length = lengths[i]
		}
		cues[i] = Cue{Index: i + 1, Start: start, End: start + length, Text: text}
	}
	return cues
}

func parseTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	// Some writers use a period for the millisecond separator.
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond
	return total, nil
}

func stripFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	nl := strings.IndexByte(content, '\n')
	if nl < 0 {
		return ""
	}
	content = strings.TrimSpace(content[nl+1:])
	return strings.TrimSpace(strings.TrimSuffix(content, "```"))
}
