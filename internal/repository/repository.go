// Package repository declares the persistence interfaces the service layer
// depends on. Concrete drivers live in subpackages (sqlite); services only
// ever see these interfaces, so tests can swap in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/ngampusin/identity/internal/model"
)

// ListOptions carries pagination parameters for listing queries.
type ListOptions struct {
	Page  int // 1-based
	Limit int
}

// Offset converts page/limit into a row offset.
func (o ListOptions) Offset() int {
	if o.Page < 1 {
		return 0
	}
	return (o.Page - 1) * o.Limit
}

// UserRepository is the credential store: durable keyed storage for user
// records with email uniqueness enforced at the store boundary.
//
// Single-record operations must be atomic at the store level. The service
// layer performs read-modify-write sequences (OTP issuance, uniqueness
// check-then-create) and relies on each individual statement landing
// whole; it does not hold its own locks.
type UserRepository interface {
	// Create inserts a new user. Returns apperror.ErrEmailTaken if the
	// email is already registered.
	Create(ctx context.Context, user *model.User) error

	// FindByID returns apperror.ErrUserNotFound on a miss.
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail returns apperror.ErrUserNotFound on a miss.
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Update persists name, email, fakultas, and avatar changes. Returns
	// apperror.ErrEmailTaken if the new email collides with another
	// account.
	Update(ctx context.Context, user *model.User) error

	// SetOTP stores a code and expiry in one statement, overwriting any
	// previous code.
	SetOTP(ctx context.Context, userID, code string, expiresAt time.Time) error

	// ClearOTP removes the active code, if any.
	ClearOTP(ctx context.Context, userID string) error

	// UpdatePassword stores a new hash, clears the OTP fields, and bumps
	// the token-version counter — all in one statement, so a crash cannot
	// leave a reset half-applied.
	UpdatePassword(ctx context.Context, userID, passwordHash string) error

	// List returns a page of users ordered by creation time (newest
	// first) plus the total count for pagination metadata.
	List(ctx context.Context, opts ListOptions) ([]model.User, int, error)
}

// ContentStore is the content-domain collaborator as seen from the
// identity core: a summary of what a user authored, and the transactional
// cascade that removes it all together with the account.
type ContentStore interface {
	// AuthoredSummary counts the user's posts, comments, and likes.
	AuthoredSummary(ctx context.Context, userID string) (model.AuthoredSummary, error)

	// DeleteAccountData removes the user record and everything it
	// authored or touched (posts, comments, likes — including comments
	// and likes other users left on the deleted user's posts) in a
	// single transaction. Either the account and all its content are
	// gone, or nothing is.
	DeleteAccountData(ctx context.Context, userID string) error
}
