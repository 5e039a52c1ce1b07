package resolver

import (
	"context"
	"database/sql"
	"time"

	"rehabgo/lib/sqliteutil"
	"rehabgo/lib/textutil"

	"github.com/google/uuid"
)

const historySchema = `
CREATE TABLE runs (
	id TEXT PRIMARY KEY,
	started_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	token_count INTEGER NOT NULL,
	success_count INTEGER NOT NULL
);

CREATE TABLE run_results (
	run_id TEXT NOT NULL REFERENCES runs(id),
	program_name TEXT NOT NULL,
	slug TEXT NOT NULL,
	bind_kind TEXT NOT NULL,
	bind_id INTEGER,
	bind_via TEXT NOT NULL,
	exercise_count INTEGER NOT NULL,
	error_kind TEXT NOT NULL,
	error TEXT NOT NULL
);

CREATE INDEX run_results_by_run ON run_results (run_id);
`

// HistoryStore keeps a local record of past resolution runs so regressions
// (a program suddenly unbound, an exercise count dropping to zero) are
// visible without rerunning anything.
type HistoryStore struct {
	db *sql.DB
}

func OpenHistory(path string) (*HistoryStore, error) {
	db, err := sqliteutil.OpenDB(historySchema, path)
	if err != nil {
		return nil, err
	}
	return &HistoryStore{db: db}, nil
}

func (s *HistoryStore) Close() error {
	return s.db.Close()
}

type Run struct {
	Id           string
	StartedAt    time.Time
	FinishedAt   time.Time
	TokenCount   int
	SuccessCount int
}

type RunResult struct {
	ProgramName   string
	Slug          string
	BindKind      string
	BindId        *int64
	BindVia       string
	ExerciseCount int
	ErrorKind     string
	Error         string
}

// RecordRun persists one run and its per-token results, returning the run id.
func (s *HistoryStore) RecordRun(ctx context.Context, started, finished time.Time, outcomes []Outcome) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	runId := uuid.NewString()
	succeeded := 0
	for _, outcome := range outcomes {
		if outcome.Err == nil {
			succeeded++
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, token_count, success_count)
		 VALUES (?, ?, ?, ?, ?)`,
		runId, started.UTC(), finished.UTC(), len(outcomes), succeeded)
	if err != nil {
		return "", err
	}

	for _, outcome := range outcomes {
		result := resultOf(outcome)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_results
			 (run_id, program_name, slug, bind_kind, bind_id, bind_via, exercise_count, error_kind, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runId, result.ProgramName, result.Slug, result.BindKind, result.BindId,
			result.BindVia, result.ExerciseCount, result.ErrorKind, result.Error)
		if err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return runId, nil
}

func resultOf(outcome Outcome) RunResult {
	result := RunResult{
		ProgramName: outcome.Token.Name,
		Slug:        textutil.Slug(outcome.Token.Name),
		BindKind:    string(outcome.Binding.Kind),
		BindVia:     outcome.Binding.Via,
		ErrorKind:   outcome.ErrorKind(),
	}
	if outcome.Binding.Kind != "" {
		id := outcome.Binding.Id
		result.BindId = &id
	}
	if outcome.Program != nil {
		result.ExerciseCount = outcome.Program.ExerciseCount
	}
	if outcome.Err != nil {
		result.Error = outcome.Err.Error()
	}
	return result
}

// Runs lists past runs, newest first.
func (s *HistoryStore) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, token_count, success_count
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		err := rows.Scan(&run.Id, &run.StartedAt, &run.FinishedAt,
			&run.TokenCount, &run.SuccessCount)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Results lists the per-token results of one run, in insertion order.
func (s *HistoryStore) Results(ctx context.Context, runId string) ([]RunResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT program_name, slug, bind_kind, bind_id, bind_via, exercise_count, error_kind, error
		 FROM run_results WHERE run_id = ? ORDER BY rowid`, runId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []RunResult
	for rows.Next() {
		var result RunResult
		err := rows.Scan(&result.ProgramName, &result.Slug, &result.BindKind,
			&result.BindId, &result.BindVia, &result.ExerciseCount,
			&result.ErrorKind, &result.Error)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}
