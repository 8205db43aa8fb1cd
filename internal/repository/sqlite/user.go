package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/gmarinow/auth-gateway/internal/apperror"
	"github.com/gmarinow/auth-gateway/internal/auth"
	"github.com/gmarinow/auth-gateway/internal/model"
	"github.com/gmarinow/auth-gateway/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, provider, email, hashed_password, first_name, last_name,
	roles, scopes, created_at, updated_at, last_login_at, deleted_at,
	is_active, is_verified, mfa_enabled, picture, locale, timezone,
	metadata, token_ids`

// FindByEmail returns the user with exactly this email, or
// apperror.ErrNotFound if none exists.
func (db *DB) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email,
	)

	user, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: finding user by email %s: %w", email, err)
	}

	return user, nil
}

// CreateIfAbsent provisions a user from a verified external identity.
//
// RACE SAFETY:
// Two concurrent callbacks for the same brand-new email both reach the
// INSERT. INSERT OR IGNORE lets exactly one row land — the loser's insert
// is a silent no-op on the UNIQUE(email) (or, for a provider-assigned id,
// the PRIMARY KEY) violation. Both callers then re-read by email and
// observe the same persisted record. The guarantee comes from the storage
// constraints, so it holds across processes too — no mutex involved.
//
// New users are verified immediately (identity proof is delegated to the
// IdP), start with the single role "user" and no scopes, and keep the
// provider-reported id as their stable identifier when one is present.
func (db *DB) CreateIfAbsent(ctx context.Context, identity *auth.Identity) (*model.User, error) {
	if identity == nil || identity.Email == "" {
		return nil, apperror.ValidationFailed("email", "identity email is required")
	}

	id := identity.ID
	if id == "" {
		id = xid.New().String()
	}
	now := time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (
			id, provider, email, first_name, last_name, roles, scopes,
			created_at, updated_at, is_active, is_verified, picture,
			locale, timezone, metadata, token_ids
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, 1, ?, 'en', 'UTC', '{}', '[]')`,
		id,
		identity.Provider,
		identity.Email,
		identity.FirstName,
		identity.LastName,
		`["user"]`,
		`[]`,
		now,
		now,
		identity.Picture,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: inserting user %s: %w", identity.Email, err)
	}

	// Re-read regardless of who won the race: the row is the source of truth.
	user, err := db.FindByEmail(ctx, identity.Email)
	if err != nil {
		return nil, fmt.Errorf("sqlite: re-reading user %s after insert: %w", identity.Email, err)
	}

	return user, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*model.User, error) {
	var (
		u                          model.User
		rolesJSON, scopesJSON      string
		metadataJSON, tokenIDsJSON string
		lastLoginAt, deletedAt     sql.NullTime
	)

	err := row.Scan(
		&u.ID,
		&u.Provider,
		&u.Email,
		&u.HashedPassword,
		&u.FirstName,
		&u.LastName,
		&rolesJSON,
		&scopesJSON,
		&u.CreatedAt,
		&u.UpdatedAt,
		&lastLoginAt,
		&deletedAt,
		&u.IsActive,
		&u.IsVerified,
		&u.MFAEnabled,
		&u.Picture,
		&u.Locale,
		&u.Timezone,
		&metadataJSON,
		&tokenIDsJSON,
	)
	if err != nil {
		return nil, err
	}

	if lastLoginAt.Valid {
		u.LastLoginAt = &lastLoginAt.Time
	}
	if deletedAt.Valid {
		u.DeletedAt = &deletedAt.Time
	}

	if err := json.Unmarshal([]byte(rolesJSON), &u.Roles); err != nil {
		return nil, fmt.Errorf("decoding roles for user %s: %w", u.ID, err)
	}
	if err := json.Unmarshal([]byte(scopesJSON), &u.Scopes); err != nil {
		return nil, fmt.Errorf("decoding scopes for user %s: %w", u.ID, err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &u.Metadata); err != nil {
		return nil, fmt.Errorf("decoding metadata for user %s: %w", u.ID, err)
	}
	if err := json.Unmarshal([]byte(tokenIDsJSON), &u.TokenIDs); err != nil {
		return nil, fmt.Errorf("decoding token ids for user %s: %w", u.ID, err)
	}

	return &u, nil
}
