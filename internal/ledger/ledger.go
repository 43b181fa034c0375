package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"shortreel/internal/fit"
	"shortreel/internal/logging"
	"shortreel/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes. Older databases must be
// deleted; the history is not needed to resume a batch.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by a different version.
var ErrSchemaMismatch = errors.New("ledger schema version mismatch")

// Run statuses.
const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

// Run is one invocation of the batch scheduler.
type Run struct {
	ID          string
	Mode        string
	Status      string
	ResumeIndex int
	Total       int
	StartedAt   time.Time
	FinishedAt  time.Time
	Message     string
	Completed   int
}

// Attempt is one evaluated duration-fit attempt.
type Attempt struct {
	UnitIndex  int
	Attempt    int
	Durations  [3]time.Duration
	Fit        bool
	Reason     string
	RecordedAt time.Time
}

// Completion is one unit that produced its outputs.
type Completion struct {
	UnitIndex   int
	Clips       [3]string
	Output      string
	Elapsed     time.Duration
	CompletedAt time.Time
}

// Ledger is the SQLite-backed history store.
type Ledger struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open creates or connects to the ledger database at path.
func Open(path string) (*Ledger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ledger path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	l := &Ledger{db: db, path: path, now: time.Now}
	if err := l.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// Path returns the database file location.
func (l *Ledger) Path() string { return l.path }

// Close closes the underlying connection.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *Ledger) initSchema(ctx context.Context) error {
	var tableExists int
	err := l.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return l.createSchema(ctx)
	}

	var version int
	if err := l.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to start a fresh history)",
			ErrSchemaMismatch, version, schemaVersion, l.path)
	}
	return nil
}

func (l *Ledger) createSchema(ctx context.Context) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func (l *Ledger) timestamp() string {
	return l.now().UTC().Format(time.RFC3339Nano)
}

// StartRun records a new run in the running state.
func (l *Ledger) StartRun(ctx context.Context, runID, mode string, resumeIndex, total int) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, mode, status, resume_index, total_units, started_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		runID, mode, StatusRunning, resumeIndex, total, l.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", runID, err)
	}
	return nil
}

// FinishRun closes a run with a terminal status and optional message.
func (l *Ledger) FinishRun(ctx context.Context, runID, status, message string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, message = ? WHERE id = ?`,
		status, l.timestamp(), nullString(message), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, services.ErrNotFound)
	}
	return nil
}

// RecordAttempt stores the verdict of one duration-fit attempt.
func (l *Ledger) RecordAttempt(ctx context.Context, runID string, unitIndex, attempt int, verdict fit.Verdict) error {
	ms := verdict.Milliseconds()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO attempts (run_id, unit_index, attempt, line1_ms, line2_ms, line3_ms, fit, reason, recorded_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, unitIndex, attempt, ms[0], ms[1], ms[2], boolToInt(verdict.Fit), nullString(verdict.Reason), l.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("insert attempt for unit %d: %w", unitIndex, err)
	}
	return nil
}

// RecordCompletion stores a finished unit.
func (l *Ledger) RecordCompletion(ctx context.Context, runID string, unitIndex int, clips [3]string, output string, elapsed time.Duration) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO completions (run_id, unit_index, clips, output_path, elapsed_ms, completed_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		runID, unitIndex, strings.Join(clips[:], "\n"), output, elapsed.Milliseconds(), l.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("insert completion for unit %d: %w", unitIndex, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (l *Ledger) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT r.id, r.mode, r.status, r.resume_index, r.total_units, r.started_at,
                COALESCE(r.finished_at, ''), COALESCE(r.message, ''),
                (SELECT COUNT(1) FROM completions c WHERE c.run_id = r.id)
         FROM runs r
         ORDER BY r.rowid DESC
         LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run               Run
			started, finished string
		)
		if err := rows.Scan(&run.ID, &run.Mode, &run.Status, &run.ResumeIndex, &run.Total,
			&started, &finished, &run.Message, &run.Completed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(finished)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Attempts lists the fit attempts recorded for a run in insertion order.
func (l *Ledger) Attempts(ctx context.Context, runID string) ([]Attempt, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT unit_index, attempt, line1_ms, line2_ms, line3_ms, fit, COALESCE(reason, ''), recorded_at
         FROM attempts WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var (
			a        Attempt
			ms       [3]int64
			fitValue int
			recorded string
		)
		if err := rows.Scan(&a.UnitIndex, &a.Attempt, &ms[0], &ms[1], &ms[2], &fitValue, &a.Reason, &recorded); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		for i, v := range ms {
			a.Durations[i] = time.Duration(v) * time.Millisecond
		}
		a.Fit = fitValue != 0
		a.RecordedAt = parseTime(recorded)
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}

// Completions lists the units a run finished in insertion order.
func (l *Ledger) Completions(ctx context.Context, runID string) ([]Completion, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT unit_index, clips, output_path, elapsed_ms, completed_at
         FROM completions WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query completions: %w", err)
	}
	defer rows.Close()

	var out []Completion
	for rows.Next() {
		var (
			c         Completion
			clips     string
			elapsedMS int64
			completed string
		)
		if err := rows.Scan(&c.UnitIndex, &clips, &c.Output, &elapsedMS, &completed); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		copy(c.Clips[:], strings.SplitN(clips, "\n", 3))
		c.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		c.CompletedAt = parseTime(completed)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completions: %w", err)
	}
	return out, nil
}

// Observer adapts the ledger to fit.Observer. The run id is taken from the
// attempt context; write failures are logged and otherwise ignored.
func (l *Ledger) Observer(logger *slog.Logger) fit.Observer {
	return &attemptObserver{ledger: l, logger: logging.NewComponentLogger(logger, "ledger")}
}

type attemptObserver struct {
	ledger *Ledger
	logger *slog.Logger
}

func (o *attemptObserver) AttemptRejected(ctx context.Context, index, attempt int, verdict fit.Verdict) {
	o.record(ctx, index, attempt, verdict)
}

func (o *attemptObserver) AttemptAccepted(ctx context.Context, index, attempt int, verdict fit.Verdict) {
	o.record(ctx, index, attempt, verdict)
}

func (o *attemptObserver) record(ctx context.Context, index, attempt int, verdict fit.Verdict) {
	runID, ok := services.RunIDFromContext(ctx)
	if !ok || o.ledger == nil {
		return
	}
	if err := o.ledger.RecordAttempt(ctx, runID, index, attempt, verdict); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "ledger attempt write failed", "ledger_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "history is informational; delete history.db if it keeps failing"),
		)
	}
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
