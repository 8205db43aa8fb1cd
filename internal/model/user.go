// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a provisioned local identity.
//
// Accounts are created on the first successful SSO callback for an email the
// gateway has never seen. The email is the natural key: the users table has a
// UNIQUE constraint on it, and token subjects are emails, so one email maps
// to exactly one account no matter how many concurrent callbacks are in play.
//
// WHY HashedPassword IF LOGIN IS SSO-ONLY?
// The gateway trusts the external provider for authentication, so the SSO
// flow never reads or writes this field. It exists so a password-based login
// can be added later without a schema migration. Same story for MFAEnabled,
// DeletedAt and TokenIDs — lifecycle fields the issuance flow leaves alone.
type User struct {
	ID             string         `json:"id"          db:"id"`
	Provider       string         `json:"provider"    db:"provider"` // issuing IdP tag, e.g. "google"
	Email          string         `json:"email"       db:"email"`    // unique, required
	HashedPassword string         `json:"-"           db:"hashed_password"`
	FirstName      string         `json:"firstName"   db:"first_name"`
	LastName       string         `json:"lastName"    db:"last_name"`
	Roles          []string       `json:"roles"       db:"roles"`  // ["user"] on creation
	Scopes         []string       `json:"scopes"      db:"scopes"` // empty on creation
	CreatedAt      time.Time      `json:"createdAt"   db:"created_at"`
	UpdatedAt      time.Time      `json:"updatedAt"   db:"updated_at"`
	LastLoginAt    *time.Time     `json:"lastLoginAt" db:"last_login_at"`
	DeletedAt      *time.Time     `json:"deletedAt"   db:"deleted_at"` // soft delete, never set by the login flow
	IsActive       bool           `json:"isActive"    db:"is_active"`
	IsVerified     bool           `json:"isVerified"  db:"is_verified"` // true immediately for SSO users
	MFAEnabled     bool           `json:"mfaEnabled"  db:"mfa_enabled"`
	Picture        string         `json:"picture"     db:"picture"` // profile picture URL (may be empty)
	Locale         string         `json:"locale"      db:"locale"`
	Timezone       string         `json:"timezone"    db:"timezone"`
	Metadata       map[string]any `json:"metadata"    db:"metadata"`
	TokenIDs       []string       `json:"-"           db:"token_ids"` // issued jti values, reserved for revocation
}

// FullName joins the name parts for display. Either part may be empty —
// some providers only return a single display name.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}
