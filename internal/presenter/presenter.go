// Package presenter shows stage progress to the operator.
//
// The batch only depends on the Presenter interface. The log presenter writes
// structured start and stop lines; the terminal presenter prints styled status
// lines when stdout is a TTY.
package presenter

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"shortreel/internal/logging"
)

// Presenter marks the start and end of a labelled step. Stop ends the most
// recent Start.
type Presenter interface {
	Start(label string)
	Stop()
}

// Nop discards everything.
type Nop struct{}

func (Nop) Start(string) {}
func (Nop) Stop()        {}

type logPresenter struct {
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	label string
	start time.Time
}

// NewLog returns a presenter that logs each step with its elapsed time.
func NewLog(logger *slog.Logger) Presenter {
	return &logPresenter{logger: logging.NewComponentLogger(logger, "presenter"), now: time.Now}
}

func (p *logPresenter) Start(label string) {
	p.mu.Lock()
	p.label = label
	p.start = p.now()
	p.mu.Unlock()
	p.logger.Debug("step started", logging.String("step", label))
}

func (p *logPresenter) Stop() {
	p.mu.Lock()
	label, start := p.label, p.start
	p.label = ""
	p.mu.Unlock()
	if label == "" {
		return
	}
	p.logger.Debug("step finished", logging.String("step", label), logging.Duration("elapsed", p.now().Sub(start)))
}

var (
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type terminalPresenter struct {
	w   io.Writer
	now func() time.Time

	mu    sync.Mutex
	label string
	start time.Time
}

// NewTerminal returns a presenter that prints styled lines to w.
func NewTerminal(w io.Writer) Presenter {
	return &terminalPresenter{w: w, now: time.Now}
}

func (p *terminalPresenter) Start(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.label = label
	p.start = p.now()
	fmt.Fprintf(p.w, "%s %s\n", runningStyle.Render("▸"), label)
}

func (p *terminalPresenter) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.label == "" {
		return
	}
	elapsed := p.now().Sub(p.start).Round(100 * time.Millisecond)
	fmt.Fprintf(p.w, "%s %s %s\n", doneStyle.Render("✓"), p.label, mutedStyle.Render("("+elapsed.String()+")"))
	p.label = ""
}

// Auto picks the terminal presenter when w is a TTY and plain is false, and the
// log presenter otherwise.
func Auto(w io.Writer, logger *slog.Logger, plain bool) Presenter {
	if !plain && IsTerminal(w) {
		return NewTerminal(w)
	}
	return NewLog(logger)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
