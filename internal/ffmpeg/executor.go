package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"shortreel/internal/services"
)

// maxStderr bounds how much ffmpeg output is kept on an error.
const maxStderr = 2048

// ExecError reports a failed ffmpeg invocation.
type ExecError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("ffmpeg %s: %v", strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExecError) Unwrap() []error { return []error{services.ErrExternalTool, e.Err} }

// Executor runs ffmpeg argument lists.
type Executor interface {
	Run(ctx context.Context, args []string) error
}

// Command executes a real binary.
type Command struct {
	Binary string
}

// NewCommand returns an executor for binary, defaulting to "ffmpeg".
func NewCommand(binary string) *Command {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Command{Binary: binary}
}

// Run executes args and wraps a failure with the tail of stderr.
func (c *Command) Run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, c.Binary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &ExecError{Args: args, Stderr: tail(stderr.String(), maxStderr), Err: err}
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
