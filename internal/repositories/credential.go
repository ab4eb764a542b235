package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/catalogx/internal/shared"
	"golang.org/x/oauth2"
)

// CredentialRepository persists OAuth tokens per provider and account.
//
// A token is bound to the scope it was granted for. Loading with a different scope deletes
// the stored token and reports a miss so the caller runs the authorization flow again.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a new [CredentialRepository] with the given database connection
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Save stores token for provider and account, replacing any previous token.
func (r *CredentialRepository) Save(provider, account, scope string, token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("%w: token is required", shared.ErrValidation)
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	query := `
		INSERT INTO credentials (id, provider, account, scope, token, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, account) DO UPDATE SET
			scope = excluded.scope, token = excluded.token, updated_at = excluded.updated_at
	`

	if _, err := r.db.Exec(query, shared.GenerateID(), provider, account, scope, data, time.Now()); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// Load returns the token stored for provider and account.
//
// It returns an error wrapping [shared.ErrNotFound] when nothing is stored or when the
// stored scope differs from scope.
func (r *CredentialRepository) Load(provider, account, scope string) (*oauth2.Token, error) {
	var (
		storedScope string
		data        []byte
	)

	err := r.db.QueryRow(
		`SELECT scope, token FROM credentials WHERE provider = ? AND account = ?`, provider, account,
	).Scan(&storedScope, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no credentials for %s account %q", shared.ErrNotFound, provider, account)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}

	if storedScope != scope {
		if err := r.Delete(provider, account); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: stored %s credentials were granted a different scope", shared.ErrNotFound, provider)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &token, nil
}

// Delete removes the token for provider and account. Deleting a missing token is not an error.
func (r *CredentialRepository) Delete(provider, account string) error {
	if _, err := r.db.Exec(`DELETE FROM credentials WHERE provider = ? AND account = ?`, provider, account); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}
