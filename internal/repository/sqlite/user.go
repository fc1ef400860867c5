package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/ngampusin/identity/internal/apperror"
	"github.com/ngampusin/identity/internal/model"
	"github.com/ngampusin/identity/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, name, email, password_hash, fakultas, avatar_url, role,
	otp_code, otp_expires_at, token_version, created_at, updated_at`

// Create inserts a new user, generating the ID and timestamps.
//
// The UNIQUE constraint on email is the last line of defence against the
// check-then-create race: two concurrent registrations with the same email
// both pass the service-level lookup, but only one INSERT lands — the
// other surfaces as ErrEmailTaken.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = model.RoleMember
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, fakultas, avatar_url, role,
			otp_code, otp_expires_at, token_version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, '', NULL, 0, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Fakultas,
		user.AvatarURL,
		string(user.Role),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "users.email") {
			return apperror.EmailTaken(user.Email)
		}
		return fmt.Errorf("sqlite: inserting user (email=%s): %w", user.Email, err)
	}

	return nil
}

// FindByID retrieves a user by their internal ID.
// Returns apperror.ErrUserNotFound if no user exists with that ID.
func (db *DB) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.UserNotFound(id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// FindByEmail retrieves a user by email (exact match — the column is
// stored as-is, no case folding).
func (db *DB) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.UserNotFound(email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// Update persists the mutable profile fields. The OTP columns, password
// hash, and token version have their own narrower writers below, so a
// profile update can never clobber concurrent credential state.
func (db *DB) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, fakultas = ?, avatar_url = ?, updated_at = ?
		 WHERE id = ?`,
		user.Name,
		user.Email,
		user.Fakultas,
		user.AvatarURL,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err, "users.email") {
			return apperror.EmailTaken(user.Email)
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	return nil
}

// SetOTP stores a code and its expiry in one UPDATE. Both fields land
// together, and any previous code is overwritten — last writer wins, the
// earlier code becomes invalid.
func (db *DB) SetOTP(ctx context.Context, userID, code string, expiresAt time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET otp_code = ?, otp_expires_at = ?, updated_at = ? WHERE id = ?`,
		code, expiresAt.UTC(), time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting OTP for user %s: %w", userID, err)
	}
	return requireRow(res, userID)
}

// ClearOTP removes the active code, returning the record to its resting
// state.
func (db *DB) ClearOTP(ctx context.Context, userID string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET otp_code = '', otp_expires_at = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: clearing OTP for user %s: %w", userID, err)
	}
	return requireRow(res, userID)
}

// UpdatePassword stores the new hash, consumes the OTP, and bumps the
// token-version counter in a single statement. The three effects of a
// password reset are therefore atomic — there is no window where the new
// password is live but the code still is, or where old tokens still
// validate.
func (db *DB) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET password_hash = ?, otp_code = '', otp_expires_at = NULL,
		     token_version = token_version + 1, updated_at = ?
		 WHERE id = ?`,
		passwordHash, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating password for user %s: %w", userID, err)
	}
	return requireRow(res, userID)
}

// List returns one page of users, newest first, plus the total row count.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.User, int, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting users: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating user rows: %w", err)
	}

	return users, total, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*model.User, error) {
	var (
		u          model.User
		role       string
		otpExpires sql.NullTime
	)
	err := s.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Fakultas,
		&u.AvatarURL,
		&role,
		&u.OTPCode,
		&otpExpires,
		&u.TokenVersion,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	if otpExpires.Valid {
		u.OTPExpiresAt = otpExpires.Time
	}
	return &u, nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure on
// the named column. modernc.org/sqlite exposes constraint errors only
// through the message text, so we match on it.
func isUniqueViolation(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}

// requireRow converts a zero-row UPDATE into ErrUserNotFound so callers
// don't mistake "no such user" for success.
func requireRow(res sql.Result, userID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return apperror.UserNotFound(userID)
	}
	return nil
}
