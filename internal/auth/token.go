package auth

// SESSION TOKEN DESIGN:
// The token is a signed HS256 JWT carrying the minimum needed for a cheap
// identity check without a store round-trip: the user ID, the role, the
// affiliation, and a token-version counter. It deliberately does NOT embed
// the rest of the profile — embedded snapshots drift the moment the profile
// changes, and holders of an old token would keep seeing stale data until
// natural expiry. Anything beyond identity requires a store read (the
// /profile endpoint does exactly that and re-issues a fresh token).
//
// The version counter ("ver") is compared against the user record whenever
// the record is loaded. The stored counter is bumped on password reset, so
// every token minted before the reset stops validating even though its
// signature and expiry are still good.

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ngampusin/identity/internal/apperror"
	"github.com/ngampusin/identity/internal/model"
)

const issuer = "ngampusin-identity"

// DefaultTokenLifetime is how long an issued session token stays valid.
const DefaultTokenLifetime = 24 * time.Hour

// Claims is the decoded content of a session token.
type Claims struct {
	UserID       string
	Role         model.Role
	Fakultas     string
	TokenVersion int64
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// jwtClaims is the wire shape. RegisteredClaims contributes sub/iat/exp/iss.
type jwtClaims struct {
	Role     string `json:"role"`
	Fakultas string `json:"fakultas"`
	Version  int64  `json:"ver"`
	jwt.RegisteredClaims
}

// TokenService signs and validates session tokens.
//
// HS256 is symmetric: the same secret signs and verifies. Fine for a single
// service that is both issuer and verifier; a multi-service deployment
// would move to an asymmetric scheme and publish the public key.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
}

// NewTokenService creates a TokenService with the given secret and the
// default 24h lifetime. The secret should be at least 32 bytes of random
// data in production.
func NewTokenService(secret string) (*TokenService, error) {
	return NewTokenServiceWithLifetime(secret, DefaultTokenLifetime)
}

// NewTokenServiceWithLifetime creates a TokenService with a custom token
// lifetime. Used in tests to mint already-expired tokens.
func NewTokenServiceWithLifetime(secret string, lifetime time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if lifetime == 0 {
		return nil, errors.New("auth: token lifetime must not be zero")
	}
	return &TokenService{secret: []byte(secret), lifetime: lifetime}, nil
}

// Issue creates and signs a session token for the given user.
func (s *TokenService) Issue(u *model.User) (string, error) {
	now := time.Now()

	c := jwtClaims{
		Role:     string(u.Role),
		Fakultas: u.Fakultas,
		Version:  u.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a token string and returns its claims.
//
// Checks performed: HMAC signature, expiry, issuer, and algorithm
// (jwt.WithValidMethods closes the algorithm-confusion hole where a token
// signed with "none" slips through). Every failure collapses into
// apperror.ErrInvalidToken — callers get no hint which check tripped.
//
// Validate does NOT check the token-version counter; that needs the user
// record, which this package has no access to. Callers that load the record
// must compare Claims.TokenVersion against User.TokenVersion themselves.
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&jwtClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, apperror.InvalidToken()
	}

	c, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid || c.Subject == "" {
		return nil, apperror.InvalidToken()
	}

	return &Claims{
		UserID:       c.Subject,
		Role:         model.Role(c.Role),
		Fakultas:     c.Fakultas,
		TokenVersion: c.Version,
		IssuedAt:     c.IssuedAt.Time,
		ExpiresAt:    c.ExpiresAt.Time,
	}, nil
}
