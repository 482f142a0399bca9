package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("not found")

// Run status values.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run records one execution of the browse loop.
type Run struct {
	ID               string     `json:"id"`
	Task             string     `json:"task"`
	Status           string     `json:"status"`
	Outcome          string     `json:"outcome,omitempty"`
	Steps            int        `json:"steps"`
	PromptTokens     int        `json:"prompt_tokens"`
	CompletionTokens int        `json:"completion_tokens"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
}

// CreateRun inserts a new run in the running state.
func (db *DB) CreateRun(task string) (*Run, error) {
	now := time.Now()
	run := &Run{
		ID:        uuid.New().String(),
		Task:      task,
		Status:    RunStatusRunning,
		StartedAt: now,
	}

	_, err := db.Exec(
		"INSERT INTO runs (id, task, status, started_at) VALUES (?, ?, ?, ?)",
		run.ID, run.Task, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, err
	}

	return run, nil
}

// FinishRun marks a run finished and records its final counters.
func (db *DB) FinishRun(id, status, outcome string, steps, promptTokens, completionTokens int) error {
	now := time.Now()

	result, err := db.Exec(
		`UPDATE runs
		 SET status = ?, outcome = ?, steps = ?, prompt_tokens = ?, completion_tokens = ?, finished_at = ?
		 WHERE id = ?`,
		status, outcome, steps, promptTokens, completionTokens, now, id,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetRun returns a single run by ID.
func (db *DB) GetRun(id string) (*Run, error) {
	var r Run
	var finishedAt sql.NullTime

	err := db.QueryRow(
		`SELECT id, task, status, outcome, steps, prompt_tokens, completion_tokens, started_at, finished_at
		 FROM runs WHERE id = ?`,
		id,
	).Scan(&r.ID, &r.Task, &r.Status, &r.Outcome, &r.Steps, &r.PromptTokens, &r.CompletionTokens, &r.StartedAt, &finishedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if finishedAt.Valid {
		t := finishedAt.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

// ListRuns lists runs newest first.
func (db *DB) ListRuns(limit, offset int) ([]*Run, error) {
	query := `SELECT id, task, status, outcome, steps, prompt_tokens, completion_tokens, started_at, finished_at
		 FROM runs ORDER BY started_at DESC`
	args := []any{}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	if offset > 0 {
		query += " OFFSET ?"
		args = append(args, offset)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		var finishedAt sql.NullTime

		if err := rows.Scan(&r.ID, &r.Task, &r.Status, &r.Outcome, &r.Steps, &r.PromptTokens, &r.CompletionTokens, &r.StartedAt, &finishedAt); err != nil {
			return nil, err
		}

		if finishedAt.Valid {
			t := finishedAt.Time
			r.FinishedAt = &t
		}
		runs = append(runs, &r)
	}

	return runs, rows.Err()
}

// DeleteRun removes a run by ID.
func (db *DB) DeleteRun(id string) error {
	result, err := db.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
