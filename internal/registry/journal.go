package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"subburn/internal/job"
)

// Journal is the durable record of job submissions and outcomes.
type Journal struct {
	db   *sql.DB
	path string
}

// Record is one journal row.
type Record struct {
	ID           string
	State        job.State
	InputPath    string
	LanguageHint string
	SubmittedAt  time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
	ErrorKind    string
	ErrorMessage string
	ExitCode     int
}

const journalSchema = `
CREATE TABLE IF NOT EXISTS render_jobs (
    id TEXT PRIMARY KEY,
    state TEXT NOT NULL,
    input_path TEXT,
    language_hint TEXT,
    submitted_at TEXT NOT NULL,
    started_at TEXT,
    finished_at TEXT,
    error_kind TEXT,
    error_message TEXT,
    exit_code INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_render_jobs_submitted ON render_jobs(submitted_at);
`

// OpenJournal initializes or connects to the journal database.
func OpenJournal(logDir string) (*Journal, error) {
	dbPath := filepath.Join(logDir, "jobs.db")
	db, err := sql.Open("sqlite", dbPath)
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

	if _, err := db.Exec(journalSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	return &Journal{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Path returns the database file path.
func (j *Journal) Path() string {
	if j == nil {
		return ""
	}
	return j.path
}

// RecordSubmission inserts a row for a newly accepted job.
func (j *Journal) RecordSubmission(ctx context.Context, jb *job.Job) error {
	if jb == nil {
		return errors.New("job is nil")
	}
	_, err := j.db.ExecContext(
		ctx,
		`INSERT INTO render_jobs (id, state, input_path, language_hint, submitted_at)
         VALUES (?, ?, ?, ?, ?)`,
		jb.ID,
		string(jb.State),
		nullableString(jb.Spec.InputPath),
		nullableString(jb.Spec.LanguageHint),
		jb.SubmittedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert job record: %w", err)
	}
	return nil
}

// RecordTransition updates the journal row to match the job's current state.
func (j *Journal) RecordTransition(ctx context.Context, jb *job.Job) error {
	if jb == nil {
		return errors.New("job is nil")
	}
	var errorKind, errorMessage any
	var exitCode int
	if jb.Failure != nil {
		errorKind = string(jb.Failure.Kind)
		errorMessage = jb.Failure.Message
		exitCode = jb.Failure.ExitCode
	}
	_, err := j.db.ExecContext(
		ctx,
		`UPDATE render_jobs
         SET state = ?, started_at = ?, finished_at = ?, error_kind = ?, error_message = ?, exit_code = ?
         WHERE id = ?`,
		string(jb.State),
		nullableTime(jb.StartedAt),
		nullableTime(jb.FinishedAt),
		errorKind,
		errorMessage,
		exitCode,
		jb.ID,
	)
	if err != nil {
		return fmt.Errorf("update job record: %w", err)
	}
	return nil
}

// History returns the most recent journal rows, newest first.
func (j *Journal) History(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(
		ctx,
		`SELECT id, state, input_path, language_hint, submitted_at, started_at, finished_at, error_kind, error_message, exit_code
         FROM render_jobs ORDER BY submitted_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Stats returns a count of journaled jobs grouped by state.
func (j *Journal) Stats(ctx context.Context) (map[job.State]int, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM render_jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("journal stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[job.State]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[job.State(state)] = count
	}
	return stats, rows.Err()
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		id           string
		state        string
		inputPath    sql.NullString
		languageHint sql.NullString
		submittedRaw string
		startedRaw   sql.NullString
		finishedRaw  sql.NullString
		errorKind    sql.NullString
		errorMessage sql.NullString
		exitCode     sql.NullInt64
	)
	if err := scanner.Scan(
		&id,
		&state,
		&inputPath,
		&languageHint,
		&submittedRaw,
		&startedRaw,
		&finishedRaw,
		&errorKind,
		&errorMessage,
		&exitCode,
	); err != nil {
		return Record{}, err
	}

	record := Record{
		ID:           id,
		State:        job.State(state),
		InputPath:    inputPath.String,
		LanguageHint: languageHint.String,
		ErrorKind:    errorKind.String,
		ErrorMessage: errorMessage.String,
		ExitCode:     int(exitCode.Int64),
	}
	if submitted, err := parseTimeString(submittedRaw); err == nil {
		record.SubmittedAt = submitted
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			record.StartedAt = &started
		}
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			record.FinishedAt = &finished
		}
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
