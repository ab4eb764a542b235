package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/catalogx/internal/shared"
)

// SnapshotRepository stores serialized source snapshots. It implements source.SnapshotCache.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new [SnapshotRepository] with the given database connection
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Load returns the payload saved for account and kind, or an error wrapping [shared.ErrSnapshotNotFound].
func (r *SnapshotRepository) Load(account, kind string) ([]byte, error) {
	var payload []byte
	err := r.db.QueryRow(`SELECT payload FROM snapshots WHERE account = ? AND kind = ?`, account, kind).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", shared.ErrSnapshotNotFound, account, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	return payload, nil
}

// Save replaces the payload for account and kind.
func (r *SnapshotRepository) Save(account, kind string, payload []byte) error {
	query := `
		INSERT INTO snapshots (id, account, kind, payload, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (account, kind) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at
	`

	if _, err := r.db.Exec(query, shared.GenerateID(), account, kind, payload, time.Now()); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// SavedAt reports when the snapshot for account and kind was written.
func (r *SnapshotRepository) SavedAt(account, kind string) (time.Time, error) {
	var createdAt time.Time
	err := r.db.QueryRow(`SELECT created_at FROM snapshots WHERE account = ? AND kind = ?`, account, kind).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("%w: %s %s", shared.ErrSnapshotNotFound, account, kind)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query snapshot: %w", err)
	}
	return createdAt, nil
}

// Clear deletes the snapshots of account, or every snapshot when account is empty.
// It returns the number of rows removed.
func (r *SnapshotRepository) Clear(account string) (int64, error) {
	var (
		result sql.Result
		err    error
	)
	if account == "" {
		result, err = r.db.Exec(`DELETE FROM snapshots`)
	} else {
		result, err = r.db.Exec(`DELETE FROM snapshots WHERE account = ?`, account)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to clear snapshots: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}
