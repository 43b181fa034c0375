package workflow

import (
	"context"
	"fmt"
	"time"

	"shortreel/internal/catalog"
	"shortreel/internal/ledger"
	"shortreel/internal/logging"
	"shortreel/internal/services"
)

// FatalError is returned when the batch halts on an unrecoverable failure.
// The crash marker has already been set to notRunning.
type FatalError struct {
	// Unit is the zero-based unit being processed, or -1 before the loop.
	Unit int
	Err  error
}

func (e *FatalError) Error() string {
	if e.Unit >= 0 {
		return fmt.Sprintf("batch halted at unit %d: %v", e.Unit+1, e.Err)
	}
	return fmt.Sprintf("batch halted: %v", e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// halt is the single exit for fatal failures: mark stopped, report, fail.
func (s *Scheduler) halt(ctx context.Context, summary *Summary, unit int, cause error) error {
	bg := context.WithoutCancel(ctx)
	if unit >= 0 {
		bg = services.WithUnitIndex(bg, unit)
	}
	logger := logging.WithContext(bg, s.logger)

	if err := s.marker.MarkStopped(bg); err != nil {
		logger.Error("failed to mark batch stopped",
			logging.Error(err),
			logging.String(logging.FieldEventType, "marker_write_failed"),
			logging.String(logging.FieldErrorHint, "next start will resume as after a crash"),
		)
	}

	details := services.Details(cause)
	logging.ErrorWithContext(logger, "batch halted", "batch_fatal",
		logging.Error(cause),
		logging.String("error_kind", details.Kind),
		logging.String(logging.FieldErrorHint, details.Hint),
		logging.Int("processed", summary.Processed),
	)

	if summary.RunID != "" && s.history != nil && summary.Total > 0 {
		if err := s.history.FinishRun(bg, summary.RunID, ledger.StatusFailed, cause.Error()); err != nil {
			s.warnHistory(bg, err)
		}
	}

	label := "batch"
	if unit >= 0 {
		label = fmt.Sprintf("unit %d", unit+1)
	}
	if err := s.notifier.NotifyFatal(bg, cause, label); err != nil {
		logger.Debug("fatal notification failed", logging.Error(err))
	}
	return &FatalError{Unit: unit, Err: cause}
}

// interrupted handles cancellation. The marker is left running so the next
// start takes the resume path.
func (s *Scheduler) interrupted(ctx context.Context, summary *Summary, unit int, started time.Time) error {
	bg := context.WithoutCancel(ctx)
	summary.Interrupted = true
	summary.Duration = s.now().Sub(started)
	logging.WarnWithContext(logging.WithContext(bg, s.logger), "batch interrupted", "batch_interrupted",
		logging.Int("next_unit", unit+1),
		logging.Int("processed", summary.Processed),
		logging.String(logging.FieldErrorHint, "run again to resume at the first pending unit"),
		logging.String(logging.FieldImpact, "crash marker left running"),
	)
	if s.history != nil {
		if err := s.history.FinishRun(bg, summary.RunID, ledger.StatusInterrupted, ctx.Err().Error()); err != nil {
			s.warnHistory(bg, err)
		}
	}
	return fmt.Errorf("batch interrupted before unit %d: %w", unit+1, ctx.Err())
}

func (s *Scheduler) recordStart(ctx context.Context, summary Summary) {
	if s.history != nil {
		if err := s.history.StartRun(ctx, summary.RunID, summary.Mode, summary.ResumeIndex, summary.Total); err != nil {
			s.warnHistory(ctx, err)
		}
	}
	if err := s.notifier.NotifyBatchStarted(ctx, summary.Mode, summary.ResumeIndex, summary.Total); err != nil {
		logging.WithContext(ctx, s.logger).Debug("batch start notification failed", logging.Error(err))
	}
}

func (s *Scheduler) recordCompletion(ctx context.Context, index int, unit catalog.WorkUnit, output string, elapsed time.Duration, total int) {
	ctx = context.WithoutCancel(ctx)
	if s.history != nil {
		runID, _ := services.RunIDFromContext(ctx)
		if err := s.history.RecordCompletion(ctx, runID, index, unit.Clips, output, elapsed); err != nil {
			s.warnHistory(ctx, err)
		}
	}
	if err := s.notifier.NotifyUnitCompleted(ctx, index, total, output); err != nil {
		logging.WithContext(ctx, s.logger).Debug("unit notification failed", logging.Error(err))
	}
}

func (s *Scheduler) recordFinish(ctx context.Context, summary Summary) {
	ctx = context.WithoutCancel(ctx)
	if s.history != nil {
		if err := s.history.FinishRun(ctx, summary.RunID, ledger.StatusCompleted, ""); err != nil {
			s.warnHistory(ctx, err)
		}
	}
	if err := s.notifier.NotifyBatchCompleted(ctx, summary.Processed, summary.Duration); err != nil {
		logging.WithContext(ctx, s.logger).Debug("batch completion notification failed", logging.Error(err))
	}
}

func (s *Scheduler) warnHistory(ctx context.Context, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, s.logger), "history write failed", "ledger_write_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "history is informational; delete history.db if it keeps failing"),
		logging.String(logging.FieldImpact, "batch continues without a history entry"),
	)
}
