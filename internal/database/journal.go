package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitemirror/internal/model"
)

// FileName is the name of the journal file inside the journal directory.
const FileName = "journal.db"

// Journal stores mirror runs and their resources in SQLite.
// It is safe for concurrent use; writes are serialized on one connection.
type Journal struct {
	db     *sql.DB
	dbPath string
}

// Options configures Journal behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default journal options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the journal in dir.
func Open(dir string, opts Options) (*Journal, error) {
	dbPath := filepath.Join(dir, FileName)

	mode := "rwc"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	} else {
		mode = "rw"
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrJournalNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check journal path: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// SQLite has a single writer; crawl workers record concurrently.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	j := &Journal{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := j.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.dbPath
}

func (j *Journal) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		root TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		counts TEXT,
		bytes_written INTEGER DEFAULT 0,
		cancelled INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_seed ON runs(seed);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS resources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		url TEXT NOT NULL,
		local_path TEXT,
		kind TEXT,
		outcome TEXT NOT NULL,
		bytes INTEGER DEFAULT 0,
		hash TEXT,
		discovered INTEGER DEFAULT 0,
		duration_ns INTEGER DEFAULT 0,
		error TEXT,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_resources_run ON resources(run_id);
	CREATE INDEX IF NOT EXISTS idx_resources_url ON resources(url);
	`

	_, err := j.db.ExecContext(context.Background(), schema)
	return err
}

// Run is a journaled mirror run.
type Run struct {
	ID           string
	Seed         string
	Root         string
	StartedAt    time.Time
	FinishedAt   time.Time
	Counts       map[model.Outcome]int
	BytesWritten int64
	Cancelled    bool
}

// Total returns the number of resources the run processed.
func (r Run) Total() int {
	total := 0
	for _, n := range r.Counts {
		total += n
	}
	return total
}

// Finished reports whether the run reached FinishRun.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// StartRun records the beginning of run. Only ID, Seed, Root and StartedAt are stored;
// the rest is filled in by FinishRun.
func (j *Journal) StartRun(ctx context.Context, run Run) error {
	query := `
	INSERT INTO runs (id, seed, root, started_at)
	VALUES (?, ?, ?, ?)
	`

	_, err := j.db.ExecContext(ctx, query,
		run.ID,
		run.Seed,
		run.Root,
		formatTimestamp(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to start run %s: %w", run.ID, err)
	}
	return nil
}

// Record stores one processed resource of a run.
func (j *Journal) Record(ctx context.Context, runID string, r model.Resource) error {
	query := `
	INSERT INTO resources (run_id, url, local_path, kind, outcome, bytes, hash, discovered, duration_ns, error, recorded_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := j.db.ExecContext(ctx, query,
		runID,
		r.URL,
		r.LocalPath,
		r.Kind.String(),
		string(r.Outcome),
		r.Bytes,
		r.Hash,
		r.Discovered,
		int64(r.Duration),
		r.Error,
		formatTimestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", r.URL, err)
	}
	return nil
}

// FinishRun stores the final counts of a run.
func (j *Journal) FinishRun(ctx context.Context, summary *model.Summary) error {
	countsJSON, err := json.Marshal(summary.Counts)
	if err != nil {
		return fmt.Errorf("failed to serialize counts: %w", err)
	}

	query := `
	UPDATE runs
	SET started_at = ?, finished_at = ?, counts = ?, bytes_written = ?, cancelled = ?
	WHERE id = ?
	`

	result, err := j.db.ExecContext(ctx, query,
		formatTimestamp(summary.StartedAt),
		formatTimestamp(summary.FinishedAt),
		string(countsJSON),
		summary.BytesWritten,
		summary.Cancelled,
		summary.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", summary.RunID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", summary.RunID, err)
	}
	if n == 0 {
		return fmt.Errorf("failed to finish run %s: run was never started", summary.RunID)
	}
	return nil
}

// ListRuns returns journaled runs, newest first.
// When seed is non-empty only runs of that seed are returned.
func (j *Journal) ListRuns(ctx context.Context, seed string) ([]Run, error) {
	query := `
	SELECT id, seed, root, started_at, finished_at, counts, bytes_written, cancelled
	FROM runs
	WHERE 1=1
	`
	args := make([]any, 0, 1)

	if seed != "" {
		query += " AND seed = ?"
		args = append(args, seed)
	}
	query += " ORDER BY started_at DESC, rowid DESC"

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// GetRun returns the run with the given ID, or nil if there is none.
func (j *Journal) GetRun(ctx context.Context, runID string) (*Run, error) {
	query := `
	SELECT id, seed, root, started_at, finished_at, counts, bytes_written, cancelled
	FROM runs
	WHERE id = ?
	`

	run, err := scanRun(j.db.QueryRowContext(ctx, query, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// RunResources returns the resources recorded for a run in processing order.
func (j *Journal) RunResources(ctx context.Context, runID string) ([]model.Resource, error) {
	query := `
	SELECT url, local_path, kind, outcome, bytes, hash, discovered, duration_ns, error
	FROM resources
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := j.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get resources of run %s: %w", runID, err)
	}
	defer rows.Close()

	var resources []model.Resource
	for rows.Next() {
		var r model.Resource
		var kind, outcome string
		var localPath, hash, errText sql.NullString
		var duration int64

		if err := rows.Scan(&r.URL, &localPath, &kind, &outcome, &r.Bytes, &hash, &r.Discovered, &duration, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}

		r.LocalPath = localPath.String
		r.Kind = model.ParseResourceKind(kind)
		r.Outcome = model.Outcome(outcome)
		r.Hash = hash.String
		r.Duration = time.Duration(duration)
		r.Error = errText.String
		resources = append(resources, r)
	}

	return resources, rows.Err()
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var startedAt string
	var finishedAt, countsJSON sql.NullString

	err := row.Scan(
		&run.ID,
		&run.Seed,
		&run.Root,
		&startedAt,
		&finishedAt,
		&countsJSON,
		&run.BytesWritten,
		&run.Cancelled,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.StartedAt = parseTimestamp(startedAt)
	if finishedAt.Valid {
		run.FinishedAt = parseTimestamp(finishedAt.String)
	}

	run.Counts = make(map[model.Outcome]int)
	if countsJSON.Valid && countsJSON.String != "" {
		if err := json.Unmarshal([]byte(countsJSON.String), &run.Counts); err != nil {
			return nil, fmt.Errorf("failed to parse counts of run %s: %w", run.ID, err)
		}
	}

	return &run, nil
}

// RunRecorder records the resources of one run into the journal.
// It satisfies crawler.Recorder.
type RunRecorder struct {
	journal *Journal
	runID   string
}

// Recorder returns a RunRecorder bound to runID.
func (j *Journal) Recorder(runID string) *RunRecorder {
	return &RunRecorder{journal: j, runID: runID}
}

// Record stores r under the recorder's run. The write is not cancelled with
// ctx, so resources finished while a crawl is being interrupted are kept.
func (rr *RunRecorder) Record(ctx context.Context, r model.Resource) error {
	return rr.journal.Record(context.WithoutCancel(ctx), rr.runID, r)
}

// timestampLayout sorts lexically in chronological order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats lists the layouts parseTimestamp accepts, most specific first.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time when s matches none of timestampFormats.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
