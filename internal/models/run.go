package models

import (
	"fmt"
	"time"
)

// RunStatus tracks the lifecycle of a reconciliation run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run records one reconciliation pass over an entity kind.
//
// The engine keeps no checkpoint of its own; the CLI stores lastIndex here so that an
// interrupted pass can be resumed by passing it back as the start index.
type Run struct {
	id           string
	sequence     int
	kind         Kind
	account      string
	commit       bool
	startIndex   int
	lastIndex    int
	found        int
	skipped      int
	status       RunStatus
	errorMessage string
	startedAt    time.Time
	completedAt  *time.Time
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
}

// NewRun creates a running [Run] for kind against the given source account.
func NewRun(kind Kind, account string, commit bool, startIndex int) *Run {
	now := time.Now()
	return &Run{
		kind:       kind,
		account:    account,
		commit:     commit,
		startIndex: startIndex,
		lastIndex:  startIndex,
		status:     RunStatusRunning,
		startedAt:  now,
		createdAt:  now,
		updatedAt:  now,
	}
}

// RestoreRun rebuilds a [Run] from persisted columns.
func RestoreRun(
	id string, sequence int, kind Kind, account string, commit bool,
	startIndex, lastIndex, found, skipped int, status RunStatus, errorMessage string,
	startedAt time.Time, completedAt *time.Time, createdAt, updatedAt time.Time, deletedAt *time.Time,
) *Run {
	return &Run{
		id: id, sequence: sequence, kind: kind, account: account, commit: commit,
		startIndex: startIndex, lastIndex: lastIndex, found: found, skipped: skipped,
		status: status, errorMessage: errorMessage, startedAt: startedAt, completedAt: completedAt,
		createdAt: createdAt, updatedAt: updatedAt, deletedAt: deletedAt,
	}
}

func (r *Run) ID() string              { return r.id }
func (r *Run) SetID(id string)         { r.id = id }
func (r *Run) Sequence() int           { return r.sequence }
func (r *Run) SetSequence(seq int)     { r.sequence = seq }
func (r *Run) Kind() Kind              { return r.kind }
func (r *Run) Account() string         { return r.account }
func (r *Run) Commit() bool            { return r.commit }
func (r *Run) StartIndex() int         { return r.startIndex }
func (r *Run) LastIndex() int          { return r.lastIndex }
func (r *Run) Found() int              { return r.found }
func (r *Run) Skipped() int            { return r.skipped }
func (r *Run) Status() RunStatus       { return r.status }
func (r *Run) ErrorMessage() string    { return r.errorMessage }
func (r *Run) StartedAt() time.Time    { return r.startedAt }
func (r *Run) CompletedAt() *time.Time { return r.completedAt }
func (r *Run) CreatedAt() time.Time    { return r.createdAt }
func (r *Run) UpdatedAt() time.Time    { return r.updatedAt }
func (r *Run) SetUpdatedAt(t time.Time) {
	r.updatedAt = t
}
func (r *Run) DeletedAt() *time.Time { return r.deletedAt }
func (r *Run) SetDeletedAt(t *time.Time) {
	r.deletedAt = t
}

// Progress records how far the pass got.
func (r *Run) Progress(lastIndex, found, skipped int) {
	r.lastIndex = lastIndex
	r.found = found
	r.skipped = skipped
}

// Complete marks the run finished.
func (r *Run) Complete() {
	now := time.Now()
	r.status = RunStatusCompleted
	r.completedAt = &now
}

// Fail marks the run as aborted by err.
func (r *Run) Fail(err error) {
	now := time.Now()
	r.status = RunStatusFailed
	r.completedAt = &now
	if err != nil {
		r.errorMessage = err.Error()
	}
}

// Validate checks required fields.
func (r *Run) Validate() error {
	if _, err := ParseKind(string(r.kind)); err != nil {
		return err
	}
	if r.account == "" {
		return fmt.Errorf("run account is required")
	}
	if r.startIndex < 0 || r.lastIndex < r.startIndex {
		return fmt.Errorf("invalid run indexes: start %d, last %d", r.startIndex, r.lastIndex)
	}
	switch r.status {
	case RunStatusRunning, RunStatusCompleted, RunStatusFailed:
	default:
		return fmt.Errorf("invalid run status %q", r.status)
	}
	return nil
}
