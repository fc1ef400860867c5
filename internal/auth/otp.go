package auth

// OTP STATE MACHINE:
//
//	NONE → ISSUED → {CONSUMED, EXPIRED}
//
// NONE, CONSUMED, and EXPIRED are the same resting state: no live code on
// the record. Issue always overwrites whatever was there, so at most one
// code is live per user and an old code dies the moment a new one is
// issued. Validate is read-only — checking a code does not burn it. Only
// the operation the code gated (password reset, account deletion) consumes
// it, after its own checks pass.
//
// This service generates and checks codes; it does not persist them. The
// orchestrator writes the code and expiry to the store in a single UPDATE,
// which is what makes issuance atomic — both fields land together or not
// at all.

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/ngampusin/identity/internal/apperror"
	"github.com/ngampusin/identity/internal/model"
)

// DefaultOTPTTL is how long an issued code stays valid.
const DefaultOTPTTL = 15 * time.Minute

// otpMax bounds the code space: codes are 000000–999999.
var otpMax = big.NewInt(1000000)

// OTPService issues and validates one-time passcodes.
type OTPService struct {
	ttl time.Duration
	now func() time.Time // injectable clock for expiry tests
}

// NewOTPService creates an OTPService with the default 15-minute validity.
func NewOTPService() *OTPService {
	return &OTPService{ttl: DefaultOTPTTL, now: time.Now}
}

// NewOTPServiceWithClock creates an OTPService with a custom TTL and clock.
// Tests use this to step time across the expiry boundary.
func NewOTPServiceWithClock(ttl time.Duration, now func() time.Time) *OTPService {
	return &OTPService{ttl: ttl, now: now}
}

// Issue generates a fresh 6-digit code and its expiry timestamp.
//
// The code is drawn uniformly from crypto/rand — math/rand would let an
// attacker who observes a few codes predict the next one. Leading zeros
// are preserved: "004217" is a valid code and is compared as a string.
func (s *OTPService) Issue() (code string, expiresAt time.Time, err error) {
	n, err := rand.Int(rand.Reader, otpMax)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: generating OTP: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), s.now().Add(s.ttl), nil
}

// Validate checks the submitted code against the user's live OTP state.
//
// Failure taxonomy, in check order:
//   - NoActiveOTP  — nothing was ever issued, or the last code was consumed
//   - OTPExpired   — a code exists but its window has closed
//   - OTPMismatch  — a live code exists and the submission differs
//
// The comparison is constant-time. With only 10^6 possible codes the
// timing channel is a real shortcut, not a theoretical one.
//
// Validate never mutates anything: a client may verify a code, then submit
// it again to the gated operation, and both checks pass.
func (s *OTPService) Validate(u *model.User, submitted string) error {
	if !u.HasActiveOTP() {
		return apperror.NoActiveOTP()
	}
	if s.now().After(u.OTPExpiresAt) {
		return apperror.OTPExpired()
	}
	if subtle.ConstantTimeCompare([]byte(u.OTPCode), []byte(submitted)) != 1 {
		return apperror.OTPMismatch()
	}
	return nil
}
