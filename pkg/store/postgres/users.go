package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gr-thach/cli-repo-sub003/pkg/acl"
)

// UserStore handles gateway user persistence. It implements acl.UserStore,
// acl.ACLWriter, and acl.IdentitySource.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a new user store
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// UpsertIdentity records a VCS identity and its access token. The stored
// access list is left untouched on update.
func (s *UserStore) UpsertIdentity(ctx context.Context, identity acl.Identity) error {
	query := `
		INSERT INTO gateway_users (provider, login, access_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (provider, login)
		DO UPDATE SET access_token = $3, updated_at = $4, deleted_at = NULL
	`

	_, err := s.db.ExecContext(ctx, query, identity.Provider, identity.Login, identity.Token, time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert identity: %w", err)
	}
	return nil
}

// StoredACL returns the last persisted access-list snapshot for a login.
// A user without a snapshot, or no user at all, reports not found.
func (s *UserStore) StoredACL(ctx context.Context, provider, login string) (acl.AllowedAccounts, bool, error) {
	query := `
		SELECT acl
		FROM gateway_users
		WHERE provider = $1 AND login = $2 AND deleted_at IS NULL
	`

	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, query, provider, login).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read stored access list: %w", err)
	}
	if !raw.Valid {
		return nil, false, nil
	}

	var snapshot acl.AllowedAccounts
	if err := json.Unmarshal([]byte(raw.String), &snapshot); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal stored access list: %w", err)
	}
	return snapshot, true, nil
}

// SaveACL persists a synchronized access-list snapshot onto the user record.
func (s *UserStore) SaveACL(ctx context.Context, provider, login string, snapshot acl.AllowedAccounts) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal access list: %w", err)
	}

	// Placeholder numbering follows first appearance: the sqlite test
	// mirror binds $N by position of first use, not by N.
	query := `
		UPDATE gateway_users
		SET acl = $1, acl_updated_at = $2, updated_at = $2
		WHERE provider = $3 AND login = $4 AND deleted_at IS NULL
	`

	result, err := s.db.ExecContext(ctx, query, string(raw), time.Now(), provider, login)
	if err != nil {
		return fmt.Errorf("failed to save access list: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save access list: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no user record for %s/%s", provider, login)
	}
	return nil
}

// ListIdentities returns all active identities, for the periodic re-sync.
func (s *UserStore) ListIdentities(ctx context.Context) ([]acl.Identity, error) {
	query := `
		SELECT provider, login, access_token
		FROM gateway_users
		WHERE deleted_at IS NULL
		ORDER BY provider, login
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	defer rows.Close()

	var identities []acl.Identity
	for rows.Next() {
		var identity acl.Identity
		var token sql.NullString

		if err := rows.Scan(&identity.Provider, &identity.Login, &token); err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		if token.Valid {
			identity.Token = token.String
		}

		identities = append(identities, identity)
	}

	return identities, rows.Err()
}

// DeleteIdentity soft-deletes a user record, dropping it from re-sync runs.
func (s *UserStore) DeleteIdentity(ctx context.Context, provider, login string) error {
	query := `
		UPDATE gateway_users
		SET deleted_at = $1, updated_at = $1
		WHERE provider = $2 AND login = $3 AND deleted_at IS NULL
	`

	_, err := s.db.ExecContext(ctx, query, time.Now(), provider, login)
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	return nil
}
