// Package journal keeps a history of sync runs in an embedded SQLite
// database.
//
// Architecture:
//   - Database file: <data dir>/journal.db
//   - WAL mode: the daemon writes while the CLI reads
//   - Schema: one sync_runs row per full sync that ran
//
// The journal is a sync.Reporter: wire it into the coordinator and every
// full sync, successful or not, is recorded.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	syncer "github.com/talekeeper/storysync/internal/sync"
)

// DefaultKeep is how many runs SyncFinished keeps after recording.
const DefaultKeep = 500

// Outcome summarizes how a run ended.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

// Run is one recorded sync.
type Run struct {
	ID         string
	Trigger    string
	StartedAt  time.Time
	FinishedAt time.Time
	Pushed     int
	Pulled     int
	Unchanged  int
	Failed     int
	Outcome    Outcome
	Error      string
}

// Duration is how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunFromResult builds a Run from a coordinator result.
func RunFromResult(res syncer.Result, err error) Run {
	run := Run{
		ID:         res.RunID,
		Trigger:    string(res.Trigger),
		StartedAt:  res.StartedAt,
		FinishedAt: res.StartedAt.Add(res.Duration),
		Pushed:     res.Pushed(),
		Pulled:     res.Pulled(),
		Unchanged:  res.Unchanged(),
		Failed:     res.Failed(),
		Outcome:    OutcomeOK,
	}
	switch {
	case err == nil:
	case errors.Is(err, syncer.ErrPartialSync):
		run.Outcome = OutcomePartial
		run.Error = err.Error()
	default:
		run.Outcome = OutcomeFailed
		run.Error = err.Error()
	}
	return run
}

// DB wraps the journal database connection.
type DB struct {
	conn   *sql.DB
	path   string
	logger *log.Logger
}

var _ syncer.Reporter = (*DB)(nil)

// Open creates a new journal connection at the specified path.
//
// The caller MUST call Close() when done to ensure proper cleanup.
//
// Example:
//
//	j, err := journal.Open(filepath.Join(dataDir, "journal.db"))
//	if err != nil {
//	    return err
//	}
//	defer j.Close()
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		conn:   conn,
		path:   path,
		logger: log.New(os.Stderr, "[journal] ", log.LstdFlags),
	}

	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// SetLogger replaces the logger used for recording failures.
func (db *DB) SetLogger(logger *log.Logger) {
	if logger != nil {
		db.logger = logger
	}
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		db.logger.Printf("WARNING: failed to checkpoint WAL: %v", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the journal schema if it doesn't exist.
// This is idempotent - safe to call multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the journal schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sync_runs (
		id TEXT PRIMARY KEY,
		"trigger" TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		pushed INTEGER NOT NULL DEFAULT 0,
		pulled INTEGER NOT NULL DEFAULT 0,
		unchanged INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		outcome TEXT NOT NULL,  -- ok, partial, failed
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sync_runs_started ON sync_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_sync_runs_outcome ON sync_runs(outcome);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Record inserts a run. Recording the same run id twice replaces it.
func (db *DB) Record(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id cannot be empty")
	}
	if run.Outcome == "" {
		run.Outcome = OutcomeOK
	}

	query := `
	INSERT INTO sync_runs (
		id, "trigger", started_at, finished_at,
		pushed, pulled, unchanged, failed, outcome, error
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		"trigger" = excluded."trigger",
		started_at = excluded.started_at,
		finished_at = excluded.finished_at,
		pushed = excluded.pushed,
		pulled = excluded.pulled,
		unchanged = excluded.unchanged,
		failed = excluded.failed,
		outcome = excluded.outcome,
		error = excluded.error
	`

	_, err := db.conn.ExecContext(ctx, query,
		run.ID,
		run.Trigger,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		run.Pushed,
		run.Pulled,
		run.Unchanged,
		run.Failed,
		string(run.Outcome),
		nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}

	return nil
}

// Last returns the most recent run. The bool is false if none was recorded.
func (db *DB) Last(ctx context.Context) (Run, bool, error) {
	runs, err := db.List(ctx, 1)
	if err != nil {
		return Run{}, false, err
	}
	if len(runs) == 0 {
		return Run{}, false, nil
	}
	return runs[0], true, nil
}

// List returns up to limit runs, newest first. A limit <= 0 returns all.
func (db *DB) List(ctx context.Context, limit int) ([]Run, error) {
	query := `
	SELECT id, "trigger", started_at, finished_at,
	       pushed, pulled, unchanged, failed, outcome, error
	FROM sync_runs
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run                   Run
			startedAt, finishedAt string
			outcome               string
			errText               sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Trigger, &startedAt, &finishedAt,
			&run.Pushed, &run.Pulled, &run.Unchanged, &run.Failed, &outcome, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if run.StartedAt, err = time.Parse(timeFormat, startedAt); err != nil {
			return nil, fmt.Errorf("failed to parse started_at for %s: %w", run.ID, err)
		}
		if run.FinishedAt, err = time.Parse(timeFormat, finishedAt); err != nil {
			return nil, fmt.Errorf("failed to parse finished_at for %s: %w", run.ID, err)
		}
		run.Outcome = Outcome(outcome)
		run.Error = errText.String
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

// Prune deletes all but the newest keep runs and returns how many were
// removed.
func (db *DB) Prune(ctx context.Context, keep int) (int64, error) {
	query := `
	DELETE FROM sync_runs
	WHERE id NOT IN (
		SELECT id FROM sync_runs ORDER BY started_at DESC, id DESC LIMIT ?
	)
	`
	res, err := db.conn.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned runs: %w", err)
	}
	return n, nil
}

// SyncFinished implements sync.Reporter. Recording failures are logged;
// they never affect the sync itself.
func (db *DB) SyncFinished(ctx context.Context, res syncer.Result, err error) {
	// The sync's own context may already be past its deadline.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if rerr := db.Record(ctx, RunFromResult(res, err)); rerr != nil {
		db.logger.Printf("WARNING: %v", rerr)
		return
	}
	if _, perr := db.Prune(ctx, DefaultKeep); perr != nil {
		db.logger.Printf("WARNING: %v", perr)
	}
}

// timeFormat is fixed width so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
