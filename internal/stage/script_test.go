package stage

import (
	"errors"
	"strings"
	"testing"
	"time"

	"shortreel/internal/services"
)

func TestParseScriptTakesFirstThreeCues(t *testing.T) {
	raw := "1\n00:00:00,000 --> 00:00:05,000\nStop scrolling if you\nwant to win.\n\n" +
		"2\n00:00:05,000 --> 00:00:10,000\nSecond line.\n\n" +
		"3\n00:00:10,000 --> 00:00:15,000\nThird line.\n\n" +
		"4\n00:00:15,000 --> 00:00:20,000\nIgnored.\n"
	script, err := ParseScript(raw)
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	want := [3]string{"Stop scrolling if you want to win.", "Second line.", "Third line."}
	if script.Lines != want {
		t.Fatalf("unexpected lines: %q", script.Lines)
	}
	if err := script.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParseScriptRejectsShortOutput(t *testing.T) {
	raw := "1\n00:00:00,000 --> 00:00:05,000\nOnly one.\n"
	_, err := ParseScript(raw)
	if err == nil {
		t.Fatal("expected error for a one-cue script")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
	if _, err := ParseScript("I cannot help with that."); err == nil {
		t.Fatal("expected error for prose output")
	}
}

func TestScriptSRTUsesWindows(t *testing.T) {
	script := Script{Lines: [3]string{"a", "b", "c"}}
	srt := script.SRT(5*time.Second, 3*time.Second, 4*time.Second, 4500*time.Millisecond)
	for _, fragment := range []string{
		"00:00:00,000 --> 00:00:03,000",
		"00:00:05,000 --> 00:00:09,000",
		"00:00:10,000 --> 00:00:14,500",
	} {
		if !strings.Contains(srt, fragment) {
			t.Fatalf("expected %q in\n%s", fragment, srt)
		}
	}
	if !strings.Contains(script.SRT(5*time.Second), "00:00:10,000 --> 00:00:15,000") {
		t.Fatal("expected full windows without lengths")
	}
}

func TestValidateRejectsEmptyLine(t *testing.T) {
	if err := (Script{Lines: [3]string{"a", " ", "c"}}).Validate(); err == nil {
		t.Fatal("expected error for blank line")
	}
}
