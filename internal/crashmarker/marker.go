// Package crashmarker records whether the previous batch exited cleanly.
//
// The marker file holds a single token. "running" on startup means the last
// process died mid-batch and the catalog must be resumed as-is.
package crashmarker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"shortreel/internal/fileutil"
)

// State is the literal token stored in the marker file.
type State string

const (
	StateRunning    State = "running"
	StateNotRunning State = "notRunning"
)

// MissingMarkerError means no marker has ever been written.
type MissingMarkerError struct {
	Path string
}

func (e *MissingMarkerError) Error() string {
	return fmt.Sprintf("crash marker %s does not exist", e.Path)
}

// Marker reads and writes the crash marker file.
type Marker struct {
	path string
}

// New returns a marker backed by path.
func New(path string) *Marker {
	return &Marker{path: path}
}

// Path returns the backing file.
func (m *Marker) Path() string { return m.path }

// MarkRunning records that a batch is in progress.
func (m *Marker) MarkRunning(ctx context.Context) error {
	return m.write(ctx, StateRunning)
}

// MarkStopped records a clean exit or a fatal abort.
func (m *Marker) MarkStopped(ctx context.Context) error {
	return m.write(ctx, StateNotRunning)
}

// Read returns the stored state.
func (m *Marker) Read(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &MissingMarkerError{Path: m.path}
		}
		return "", fmt.Errorf("read crash marker: %w", err)
	}
	switch token := State(strings.TrimSpace(string(data))); token {
	case StateRunning, StateNotRunning:
		return token, nil
	default:
		return "", fmt.Errorf("crash marker %s holds unknown token %q", m.path, string(token))
	}
}

// ReadOrInit reads the marker and initializes it to notRunning on first run.
func (m *Marker) ReadOrInit(ctx context.Context) (State, error) {
	state, err := m.Read(ctx)
	var missing *MissingMarkerError
	if errors.As(err, &missing) {
		if err := m.MarkStopped(ctx); err != nil {
			return "", err
		}
		return StateNotRunning, nil
	}
	return state, err
}

func (m *Marker) write(ctx context.Context, state State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(m.path, []byte(state), 0o644); err != nil {
		return fmt.Errorf("write crash marker: %w", err)
	}
	return nil
}
