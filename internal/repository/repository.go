// Package repository defines the storage interfaces the service layer
// depends on. Concrete implementations live in subpackages (sqlite).
package repository

import (
	"context"

	"github.com/gmarinow/auth-gateway/internal/auth"
	"github.com/gmarinow/auth-gateway/internal/model"
)

// UserRepository is the user directory: find-or-create records keyed by
// email.
type UserRepository interface {
	// FindByEmail returns the user with the exact email, or an error
	// wrapping apperror.ErrNotFound if no such user exists.
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateIfAbsent provisions a user from a verified external identity.
	// It is idempotent per email under concurrent invocation: two
	// simultaneous first logins for the same new email yield exactly one
	// persisted record, and the loser of the race receives the winner's
	// row. The record is persisted before the call returns.
	CreateIfAbsent(ctx context.Context, identity *auth.Identity) (*model.User, error)
}
