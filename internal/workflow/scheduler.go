package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"shortreel/internal/catalog"
	"shortreel/internal/crashmarker"
	"shortreel/internal/fit"
	"shortreel/internal/logging"
	"shortreel/internal/notifications"
	"shortreel/internal/presenter"
	"shortreel/internal/services"
	"shortreel/internal/stage"
	"shortreel/internal/themes"
)

// DefaultMinUnitSpacing is the minimum wall-clock gap between unit starts.
const DefaultMinUnitSpacing = 22 * time.Second

// Run modes recorded in the ledger and notifications.
const (
	ModeBatch = "batch"
	ModeTest  = "test"
)

// ErrBatchRunning is returned when another process holds the batch lock.
var ErrBatchRunning = errors.New("batch already running")

// ClipLister returns the clip ids available for a fresh catalog, in the
// order the catalog should be built from.
type ClipLister interface {
	ListClips(ctx context.Context) ([]string, error)
}

// History records runs and completed units. Failures are logged and never
// stop the batch.
type History interface {
	StartRun(ctx context.Context, runID, mode string, resumeIndex, total int) error
	RecordCompletion(ctx context.Context, runID string, unitIndex int, clips [3]string, output string, elapsed time.Duration) error
	FinishRun(ctx context.Context, runID, status, message string) error
}

// Deps wires the scheduler. Catalog, Marker, Themes, Runner, Clips and
// LockPath are required; everything else has a default.
type Deps struct {
	Catalog   *catalog.Store
	Marker    *crashmarker.Marker
	Themes    *themes.Store
	Runner    stage.Runner
	Clips     ClipLister
	History   History
	Observer  fit.Observer
	Notifier  notifications.Service
	Presenter presenter.Presenter
	Logger    *slog.Logger
	LockPath  string

	// MinUnitSpacing of zero disables pacing.
	MinUnitSpacing time.Duration
	// MaxAttempts caps fit attempts per unit. Zero means unbounded.
	MaxAttempts int

	Now      func() time.Time
	Sleep    func(ctx context.Context, d time.Duration) error
	NewRunID func() string
}

// Options selects the run mode.
type Options struct {
	// TestMode processes only the first pending unit.
	TestMode bool
}

func (o Options) mode() string {
	if o.TestMode {
		return ModeTest
	}
	return ModeBatch
}

// Summary describes what a run did.
type Summary struct {
	RunID       string
	Mode        string
	Resumed     bool
	ResumeIndex int
	Total       int
	Processed   int
	Outputs     []string
	Duration    time.Duration
	Interrupted bool
}

// Scheduler owns the batch loop.
type Scheduler struct {
	catalogs  *catalog.Store
	marker    *crashmarker.Marker
	themes    *themes.Store
	runner    stage.Runner
	clips     ClipLister
	history   History
	fit       *fit.Loop
	notifier  notifications.Service
	presenter presenter.Presenter
	logger    *slog.Logger
	lockPath  string
	spacing   time.Duration

	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	newRunID func() string
}

// New validates deps and builds a scheduler.
func New(deps Deps) (*Scheduler, error) {
	switch {
	case deps.Catalog == nil:
		return nil, errors.New("workflow: catalog store is required")
	case deps.Marker == nil:
		return nil, errors.New("workflow: crash marker is required")
	case deps.Themes == nil:
		return nil, errors.New("workflow: theme store is required")
	case deps.Runner == nil:
		return nil, errors.New("workflow: stage runner is required")
	case deps.Clips == nil:
		return nil, errors.New("workflow: clip lister is required")
	case deps.LockPath == "":
		return nil, errors.New("workflow: lock path is required")
	case deps.MinUnitSpacing < 0:
		return nil, fmt.Errorf("workflow: negative unit spacing %s", deps.MinUnitSpacing)
	}

	logger := logging.NewComponentLogger(deps.Logger, "workflow")
	s := &Scheduler{
		catalogs:  deps.Catalog,
		marker:    deps.Marker,
		themes:    deps.Themes,
		runner:    deps.Runner,
		clips:     deps.Clips,
		history:   deps.History,
		fit:       fit.NewLoop(deps.Runner, deps.MaxAttempts, deps.Observer, deps.Logger),
		notifier:  deps.Notifier,
		presenter: deps.Presenter,
		logger:    logger,
		lockPath:  deps.LockPath,
		spacing:   deps.MinUnitSpacing,
		now:       deps.Now,
		sleep:     deps.Sleep,
		newRunID:  deps.NewRunID,
	}
	if s.notifier == nil {
		s.notifier = notifications.NewNoop()
	}
	if s.presenter == nil {
		s.presenter = presenter.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sleep == nil {
		s.sleep = sleepContext
	}
	if s.newRunID == nil {
		s.newRunID = uuid.NewString
	}
	return s, nil
}

// Run processes pending units until the catalog is complete, the single test
// unit is done, a stage fails, or ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, opts Options) (Summary, error) {
	lock := flock.New(s.lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return Summary{}, fmt.Errorf("acquire batch lock: %w", err)
	}
	if !locked {
		return Summary{}, fmt.Errorf("%w (lock held on %s)", ErrBatchRunning, s.lockPath)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("failed to release batch lock",
				logging.Error(err),
				logging.String(logging.FieldEventType, "lock_release_failed"),
				logging.String(logging.FieldErrorHint, "remove "+s.lockPath+" if no batch is running"),
			)
		}
	}()

	summary := Summary{RunID: s.newRunID(), Mode: opts.mode()}
	ctx = services.WithRunID(ctx, summary.RunID)
	logger := logging.WithContext(ctx, s.logger)
	started := s.now()

	state, err := s.marker.ReadOrInit(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		return summary, s.halt(ctx, &summary, -1, services.NewStageError(stage.NameCatalog, -1, err))
	}
	summary.Resumed = state == crashmarker.StateRunning

	cat, fresh, err := s.prepareCatalog(ctx, state)
	if err != nil {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		return summary, s.halt(ctx, &summary, -1, err)
	}
	summary.Total = cat.Len()

	resume, ok := cat.FirstPending()
	if !ok {
		logger.Info("catalog complete, nothing to do",
			logging.Int("units", cat.Len()),
			logging.Bool("resumed", summary.Resumed),
		)
		if err := s.marker.MarkStopped(ctx); err != nil {
			return summary, fmt.Errorf("mark stopped: %w", err)
		}
		summary.Duration = s.now().Sub(started)
		return summary, nil
	}
	summary.ResumeIndex = resume

	done, pending := cat.Counts()
	logger.Info("batch starting",
		logging.String("mode", summary.Mode),
		logging.Bool("resumed", summary.Resumed),
		logging.Int("resume_unit", resume+1),
		logging.Int("units_done", done),
		logging.Int("units_pending", pending),
	)
	s.recordStart(ctx, summary)

	set, err := s.resolveThemes(ctx, cat, fresh)
	if err != nil {
		if ctx.Err() != nil {
			return summary, s.interrupted(ctx, &summary, resume, started)
		}
		return summary, s.halt(ctx, &summary, -1, err)
	}

	end := cat.Len()
	if opts.TestMode && resume+1 < end {
		end = resume + 1
	}

	for index := resume; index < end; index++ {
		unit, _ := cat.Unit(index)
		if unit.Done {
			continue
		}
		unitStart := s.now()

		output, err := s.processUnit(ctx, index, unit, set)
		if err != nil {
			if ctx.Err() != nil {
				return summary, s.interrupted(ctx, &summary, index, started)
			}
			return summary, s.halt(ctx, &summary, index, err)
		}

		if err := cat.MarkDone(index); err != nil {
			return summary, s.halt(ctx, &summary, index, services.NewStageError(stage.NameCatalog, index, err))
		}
		if err := s.catalogs.Save(context.WithoutCancel(ctx), cat); err != nil {
			return summary, s.halt(ctx, &summary, index, services.NewStageError(stage.NameCatalog, index, err))
		}

		elapsed := s.now().Sub(unitStart)
		summary.Processed++
		summary.Outputs = append(summary.Outputs, output)
		s.recordCompletion(ctx, index, unit, output, elapsed, cat.Len())

		if index+1 < end {
			if err := s.pace(ctx, index, elapsed); err != nil {
				return summary, s.interrupted(ctx, &summary, index+1, started)
			}
		}
	}

	if err := s.marker.MarkStopped(context.WithoutCancel(ctx)); err != nil {
		return summary, fmt.Errorf("mark stopped: %w", err)
	}
	summary.Duration = s.now().Sub(started)
	s.recordFinish(ctx, summary)
	logger.Info("batch finished",
		logging.Int("processed", summary.Processed),
		logging.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// prepareCatalog returns the catalog to work from and whether it was freshly
// built. A running marker means the last process died, so the saved catalog
// must exist and parse.
func (s *Scheduler) prepareCatalog(ctx context.Context, state crashmarker.State) (*catalog.Catalog, bool, error) {
	logger := logging.WithContext(ctx, s.logger)

	if state == crashmarker.StateRunning {
		cat, err := s.catalogs.Load(ctx)
		if errors.Is(err, catalog.ErrCatalogMissing) {
			err = &catalog.CorruptCatalogError{
				Path:   s.catalogs.Path(),
				Reason: "crash marker is running but no catalog was saved",
				Err:    err,
			}
		}
		if err != nil {
			return nil, false, services.NewStageError(stage.NameCatalog, -1, err)
		}
		if err := s.marker.MarkRunning(ctx); err != nil {
			return nil, false, services.NewStageError(stage.NameCatalog, -1, err)
		}
		logger.Info("previous run ended abnormally, resuming saved catalog", logging.String("catalog", s.catalogs.Path()))
		return cat, false, nil
	}

	// The marker turns running only once the new catalog is on disk, so an
	// interrupted rebuild never resumes the previous batch's catalog.
	clips, err := s.clips.ListClips(ctx)
	if err != nil {
		return nil, false, services.NewStageError(stage.NameCatalog, -1, err)
	}
	cat, err := catalog.Build(clips)
	if err != nil {
		return nil, false, services.NewStageError(stage.NameCatalog, -1, err)
	}
	if err := s.catalogs.Save(ctx, cat); err != nil {
		return nil, false, services.NewStageError(stage.NameCatalog, -1, err)
	}
	if err := s.marker.MarkRunning(ctx); err != nil {
		return nil, false, services.NewStageError(stage.NameCatalog, -1, err)
	}
	if preparer, ok := s.runner.(stage.BatchPreparer); ok {
		if err := preparer.PrepareBatch(ctx); err != nil {
			return nil, false, services.NewStageError(stage.NameCleanup, -1, err)
		}
	}
	logger.Info("built fresh catalog",
		logging.Int("clips", len(cat.Clips())),
		logging.Int("units", cat.Len()),
	)
	return cat, true, nil
}

// pace sleeps off whatever remains of the minimum spacing after a unit that
// took elapsed.
func (s *Scheduler) pace(ctx context.Context, index int, elapsed time.Duration) error {
	wait := s.spacing - elapsed
	if wait <= 0 {
		return nil
	}
	logging.WithContext(services.WithUnitIndex(ctx, index), s.logger).Info("waiting before next unit",
		logging.Duration("wait", wait),
		logging.Duration("spacing", s.spacing),
	)
	return s.sleep(ctx, wait)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
