package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrFitExhausted  = errors.New("duration fit retries exhausted")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// StageError reports a failed pipeline stage for one work unit. Any StageError
// reaching the scheduler aborts the whole batch.
type StageError struct {
	Stage string
	Unit  int
	Err   error
}

func (e *StageError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Unit >= 0 {
		return fmt.Sprintf("stage %s (unit %d): %v", e.Stage, e.Unit+1, e.Err)
	}
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewStageError tags err with the stage and zero-based unit index. A nil err
// yields nil so callers can wrap unconditionally. Use a negative unit for
// failures that are not tied to a specific work unit.
func NewStageError(stage string, unit int, err error) error {
	if err == nil {
		return nil
	}
	var existing *StageError
	if errors.As(err, &existing) && existing.Stage == stage {
		return err
	}
	return &StageError{Stage: stage, Unit: unit, Err: err}
}

// ErrorDetails summarizes an error for operator-facing output.
type ErrorDetails struct {
	Kind    string
	Message string
	Hint    string
}

// Details classifies err by marker and extracts a short message plus a hint on
// what to do next.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: "transient", Message: strings.TrimSpace(err.Error())}
	switch {
	case errors.Is(err, ErrFitExhausted):
		details.Kind = "fit_exhausted"
		details.Hint = "generated lines keep exceeding the 5s window; shorten the prompt limits or raise fit.max_attempts"
	case errors.Is(err, ErrConfiguration):
		details.Kind = "configuration"
		details.Hint = "check the configuration file and API keys"
	case errors.Is(err, ErrValidation):
		details.Kind = "validation"
		details.Hint = "inspect the input clips and generated artifacts"
	case errors.Is(err, ErrNotFound):
		details.Kind = "not_found"
		details.Hint = "verify the input and work directories"
	case errors.Is(err, ErrTimeout):
		details.Kind = "timeout"
		details.Hint = "external call timed out; rerun to resume at the same unit"
	case errors.Is(err, ErrExternalTool):
		details.Kind = "external_tool"
		details.Hint = "check ffmpeg/ffprobe output in the log"
	default:
		details.Hint = "rerun to resume at the same unit"
	}
	return details
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
