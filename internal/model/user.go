// Package model defines the data structures used throughout the application.
package model

import "time"

// Role controls what a user is allowed to do outside their own resources.
// Only two levels exist; there is no way for an end user to change their
// role through any profile operation.
type Role string

const (
	RoleMember Role = "MEMBER"
	RoleAdmin  Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleMember || r == RoleAdmin
}

// User is the persistent account record — the single source of truth for
// identity, credentials, and OTP state.
//
// PasswordHash is a bcrypt digest, never the raw password. Accounts created
// through Google login still carry a hash: a random high-entropy password is
// generated at creation so the record has the same shape as a password
// account. That password is never disclosed to anyone.
//
// OTPCode and OTPExpiresAt always move together: both set on issuance, both
// cleared on consumption. At most one code is live per user — issuing a new
// one overwrites the previous.
//
// TokenVersion is a counter embedded in every issued session token and
// bumped whenever the password changes. A token minted before the bump no
// longer matches the stored counter and is rejected, so a password reset
// retires every outstanding session.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Name         string    `json:"name"      db:"name"`
	Email        string    `json:"email"     db:"email"` // UNIQUE at the store
	PasswordHash string    `json:"-"         db:"password_hash"`
	Fakultas     string    `json:"fakultas"  db:"fakultas"` // free-text affiliation
	AvatarURL    string    `json:"avatarUrl" db:"avatar_url"`
	Role         Role      `json:"role"      db:"role"`
	OTPCode      string    `json:"-"         db:"otp_code"`
	OTPExpiresAt time.Time `json:"-"         db:"otp_expires_at"` // zero = no active code
	TokenVersion int64     `json:"-"         db:"token_version"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// HasActiveOTP reports whether an OTP has been issued and not yet consumed.
// Expiry is checked separately so validation can distinguish "expired" from
// "never requested".
func (u *User) HasActiveOTP() bool {
	return u.OTPCode != "" && !u.OTPExpiresAt.IsZero()
}

// Profile is the externally visible view of a User. It is what every
// response payload carries — PasswordHash and the OTP fields never leave
// the service.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Fakultas  string    `json:"fakultas"`
	AvatarURL string    `json:"avatarUrl"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProfileOf builds the sanitized view of a user record.
func ProfileOf(u *User) Profile {
	return Profile{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Fakultas:  u.Fakultas,
		AvatarURL: u.AvatarURL,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
