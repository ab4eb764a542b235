package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/catalogx/internal/models"
	"github.com/desertthunder/catalogx/internal/shared"
)

const runColumns = `id, sequence, kind, account, commit_writes, start_index, last_index, found, skipped,
	status, error_message, started_at, completed_at, created_at, updated_at, deleted_at`

// RunRepository implements [models.Repository] for [models.Run] persistence.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new [RunRepository] with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run with generated ID and sequence
func (r *RunRepository) Create(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}

	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.Exec(query,
		id, sequence, string(run.Kind()), run.Account(), run.Commit(), run.StartIndex(), run.LastIndex(),
		run.Found(), run.Skipped(), string(run.Status()), nullString(run.ErrorMessage()),
		run.StartedAt(), run.CompletedAt(), run.CreatedAt(), run.UpdatedAt(), nil,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	run.SetID(id)
	run.SetSequence(sequence)
	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *RunRepository) Get(id string) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ? AND deleted_at IS NULL`

	run, err := scanRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return run, nil
}

// Update writes the progress and status of an existing run
func (r *RunRepository) Update(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE runs
		SET last_index = ?, found = ?, skipped = ?, status = ?, error_message = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		run.LastIndex(), run.Found(), run.Skipped(), string(run.Status()), nullString(run.ErrorMessage()),
		run.CompletedAt(), now, run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	return expectRow(result, run.ID())
}

// Delete soft-deletes a run by ID
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE runs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return expectRow(result, id)
}

// List retrieves runs matching criteria, newest first.
//
// Supported criteria: "kind", "account" and "status" (strings), "commit" (bool) and "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE deleted_at IS NULL`
	args := []any{}

	for _, col := range []string{"kind", "account", "status"} {
		if v, ok := criteria[col].(string); ok && v != "" {
			query += " AND " + col + " = ?"
			args = append(args, v)
		}
	}

	if commit, ok := criteria["commit"].(bool); ok {
		query += " AND commit_writes = ?"
		args = append(args, commit)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// ResumePoint is where the next run of kind for account should start: the checkpoint of the
// latest run when it did not complete, or 0 otherwise.
//
// A committing run only resumes from committing runs. A dry run discards its batches, so its
// checkpoint covers entities that were never written.
func (r *RunRepository) ResumePoint(kind models.Kind, account string, commit bool) (int, error) {
	criteria := map[string]any{"kind": string(kind), "account": account, "limit": 1}
	if commit {
		criteria["commit"] = true
	}

	runs, err := r.List(criteria)
	if err != nil {
		return 0, err
	}
	if len(runs) == 0 || runs[0].Status() == models.RunStatusCompleted {
		return 0, nil
	}
	return runs[0].LastIndex(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var (
		id           string
		sequence     int
		kind         string
		account      string
		commit       bool
		startIndex   int
		lastIndex    int
		found        int
		skipped      int
		status       string
		errorMessage sql.NullString
		startedAt    time.Time
		completedAt  sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := row.Scan(&id, &sequence, &kind, &account, &commit, &startIndex, &lastIndex, &found, &skipped,
		&status, &errorMessage, &startedAt, &completedAt, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	return models.RestoreRun(
		id, sequence, models.Kind(kind), account, commit,
		startIndex, lastIndex, found, skipped, models.RunStatus(status), errorMessage.String,
		startedAt, timePtr(completedAt), createdAt, updatedAt, timePtr(deletedAt),
	), nil
}

func expectRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: run not found or already deleted: %s", shared.ErrNotFound, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
