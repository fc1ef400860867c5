// Package apperror defines the error taxonomy shared by the service and
// handler layers.
//
// Every business-rule failure an operation can produce is one of the
// sentinel errors below, wrapped in an *AppError that adds the
// human-readable message. Callers branch with errors.Is against the
// sentinels; handlers map them to HTTP status codes in one place
// (handler/response.go).
//
// Infrastructure failures (store unreachable, SMTP down, upload provider
// down) are kept distinct from business failures: ErrMailDispatch and
// ErrStorage mark a dependency that misbehaved — "try again" — while the
// rest mark a request that can never succeed as submitted.
package apperror

import (
	"errors"
	"fmt"
)

var (
	// Business-rule failures.
	ErrEmailTaken         = errors.New("email taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("invalid token")
	ErrNoActiveOTP        = errors.New("no active otp")
	ErrOTPExpired         = errors.New("otp expired")
	ErrOTPMismatch        = errors.New("otp mismatch")
	ErrMissingEmail       = errors.New("missing email")
	ErrForbidden          = errors.New("forbidden")
	ErrValidation         = errors.New("validation error")

	// Infrastructure failures.
	ErrStorage      = errors.New("storage failure")
	ErrMailDispatch = errors.New("mail dispatch failure")
)

// AppError pairs a sentinel error with a message safe to show the caller.
type AppError struct {
	Err     error  // one of the sentinels above
	Message string // human-readable, returned in the response body
	Field   string // optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// EmailTaken signals a uniqueness conflict on the email column.
func EmailTaken(email string) *AppError {
	return &AppError{
		Err:     ErrEmailTaken,
		Message: "email already in use",
		Field:   "email",
	}
}

// InvalidCredentials is deliberately identical for "no such email" and
// "wrong password" so login responses cannot be used to enumerate accounts.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "invalid credentials",
	}
}

// UserNotFound signals a lookup miss on an authenticated caller's own
// record. Pre-auth paths must not use it for email lookups — see the
// enumeration policy in service/account.go.
func UserNotFound(id string) *AppError {
	return &AppError{
		Err:     ErrUserNotFound,
		Message: fmt.Sprintf("user not found with id %s", id),
	}
}

// InvalidToken covers bad signature, malformed structure, expiry, and a
// stale token version. The caller cannot distinguish them.
func InvalidToken() *AppError {
	return &AppError{
		Err:     ErrInvalidToken,
		Message: "invalid or expired token",
	}
}

// NoActiveOTP signals that no code is set for the account.
func NoActiveOTP() *AppError {
	return &AppError{
		Err:     ErrNoActiveOTP,
		Message: "no OTP request found",
	}
}

// OTPExpired signals a code past its 15-minute window.
func OTPExpired() *AppError {
	return &AppError{
		Err:     ErrOTPExpired,
		Message: "OTP has expired",
	}
}

// OTPMismatch signals a live code that does not match the submission.
func OTPMismatch() *AppError {
	return &AppError{
		Err:     ErrOTPMismatch,
		Message: "invalid OTP",
	}
}

// MissingEmail signals a federated assertion without an email address.
// Federated login cannot proceed without one — accounts are keyed by email.
func MissingEmail() *AppError {
	return &AppError{
		Err:     ErrMissingEmail,
		Message: "identity provider did not supply an email address",
	}
}

// Forbidden signals the caller lacks permission for the target resource.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// ValidationFailed signals malformed input on a named field.
func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// StorageFailure wraps an object-storage provider error.
func StorageFailure(err error) *AppError {
	return &AppError{
		Err:     ErrStorage,
		Message: fmt.Sprintf("object storage failure: %v", err),
	}
}

// MailDispatchFailure wraps an outbound-mail error. A failed dispatch after
// OTP issuance leaves the user unable to finish the flow, so it is always
// reported, never masked as success.
func MailDispatchFailure(err error) *AppError {
	return &AppError{
		Err:     ErrMailDispatch,
		Message: fmt.Sprintf("could not send email: %v", err),
	}
}
