// Package service holds the business logic of the identity core.
//
// AccountService is the orchestrator: it composes the credential
// primitives (bcrypt hashing, token issuance, OTP state machine), the
// credential store, and the external collaborators (mailer, object
// storage) into the protected account flows. It sits between the HTTP
// handlers and everything else:
//
//	handler (HTTP) → AccountService (rules) → UserRepository / ContentStore (DB)
//	                                        ↘ TokenService / PasswordService / OTPService
//	                                        ↘ Mailer (SMTP), Uploader (ImageKit)
//
// ENUMERATION POLICY:
// Operations reachable without authentication never reveal whether an
// email is registered. Login returns the same InvalidCredentials for "no
// such account" and "wrong password"; RequestPasswordReset acknowledges
// unknown emails as if a code had been sent; VerifyOTP and ResetPassword
// report NoActiveOTP for unknown emails, indistinguishable from a known
// account with no pending code. Authenticated operations are specific
// (UserNotFound) — the caller already proved who they are.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ngampusin/identity/internal/apperror"
	"github.com/ngampusin/identity/internal/auth"
	"github.com/ngampusin/identity/internal/mailer"
	"github.com/ngampusin/identity/internal/model"
	"github.com/ngampusin/identity/internal/repository"
	"github.com/ngampusin/identity/internal/storage"
)

// federatedFakultas is the affiliation sentinel for accounts created
// through Google login — the provider has no notion of a faculty, and the
// user fills it in later through profile update.
const federatedFakultas = "unspecified"

// avatarFolder is where avatar uploads land at the storage provider.
const avatarFolder = "avatars"

// AccountService orchestrates the account lifecycle flows.
type AccountService struct {
	users     repository.UserRepository
	content   repository.ContentStore
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	otp       *auth.OTPService
	mail      mailer.Mailer
	uploads   storage.Uploader
	logger    *slog.Logger
}

// NewAccountService creates an AccountService with all dependencies
// injected. Wired once in server.New.
func NewAccountService(
	users repository.UserRepository,
	content repository.ContentStore,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	otp *auth.OTPService,
	mail mailer.Mailer,
	uploads storage.Uploader,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:     users,
		content:   content,
		tokens:    tokens,
		passwords: passwords,
		otp:       otp,
		mail:      mail,
		uploads:   uploads,
		logger:    logger,
	}
}

// AuthResult bundles a profile with the session token issued for it.
type AuthResult struct {
	Profile model.Profile
	Token   string
}

// ProfileResult is AuthResult plus the authored-content summary, returned
// by the profile-fetch path.
type ProfileResult struct {
	Profile  model.Profile
	Token    string
	Authored model.AuthoredSummary
}

// Register creates a password-based account.
//
// No token is issued at registration — login is a separate step. (One
// earlier iteration of the API auto-issued a token here; the two-step
// variant won because it keeps registration side-effect-free and the
// login path the single place tokens are born.)
func (s *AccountService) Register(ctx context.Context, name, email, password, fakultas string) (model.Profile, error) {
	if name == "" || email == "" || password == "" {
		return model.Profile{}, apperror.ValidationFailed("", "name, email, and password are required")
	}

	// Pre-check gives the common case a clean error; the UNIQUE
	// constraint on email catches the concurrent-registration race.
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return model.Profile{}, apperror.EmailTaken(email)
	} else if !errors.Is(err, apperror.ErrUserNotFound) {
		return model.Profile{}, fmt.Errorf("service/account: checking email: %w", err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return model.Profile{}, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Fakultas:     fakultas,
		Role:         model.RoleMember,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrEmailTaken) {
			return model.Profile{}, apperror.EmailTaken(email)
		}
		return model.Profile{}, fmt.Errorf("service/account: creating user: %w", err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	return model.ProfileOf(user), nil
}

// Login authenticates an email/password pair and issues a session token.
//
// Lookup miss and hash mismatch produce the same InvalidCredentials, and
// the password is verified even when the lookup missed, so neither the
// error nor the response time says whether the email exists.
func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrUserNotFound) {
			// Burn a bcrypt comparison against a dummy hash so the
			// miss costs the same as a wrong password.
			s.passwords.Verify(dummyHash, password)
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/account: looking up user: %w", err)
	}

	if !s.passwords.Verify(user.PasswordHash, password) {
		return nil, apperror.InvalidCredentials()
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("service/account: issuing token: %w", err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return &AuthResult{Profile: model.ProfileOf(user), Token: token}, nil
}

// dummyHash is a bcrypt digest of a throwaway value, used to equalize
// login timing when the email lookup misses.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// GoogleLogin reconciles a verified Google identity assertion with the
// local account base.
//
// An existing account with the asserted email claims the login as-is — no
// profile fields are overwritten. A fresh email gets a new account: name
// composed from the given and family names, affiliation set to the
// "unspecified" sentinel, avatar taken from the provider picture, and a
// random high-entropy password hashed into place so the record has the
// same shape as every other account.
func (s *AccountService) GoogleLogin(ctx context.Context, gu *auth.GoogleUser) (*AuthResult, error) {
	if gu == nil || gu.Email == "" {
		return nil, apperror.MissingEmail()
	}

	user, err := s.users.FindByEmail(ctx, gu.Email)
	switch {
	case err == nil:
		// Existing account claims the federated login.
	case errors.Is(err, apperror.ErrUserNotFound):
		user, err = s.createFederatedUser(ctx, gu)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("service/account: looking up user: %w", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("service/account: issuing token: %w", err)
	}

	s.logger.Info("user logged in via Google", slog.String("userID", user.ID))
	return &AuthResult{Profile: model.ProfileOf(user), Token: token}, nil
}

func (s *AccountService) createFederatedUser(ctx context.Context, gu *auth.GoogleUser) (*model.User, error) {
	randomPassword, err := auth.RandomPassword()
	if err != nil {
		return nil, fmt.Errorf("service/account: %w", err)
	}
	hash, err := s.passwords.Hash(randomPassword)
	if err != nil {
		return nil, fmt.Errorf("service/account: hashing generated password: %w", err)
	}

	name := strings.TrimSpace(gu.GivenName + " " + gu.FamilyName)
	if name == "" {
		name = gu.Email
	}

	user := &model.User{
		Name:         name,
		Email:        gu.Email,
		PasswordHash: hash,
		Fakultas:     federatedFakultas,
		AvatarURL:    gu.Picture,
		Role:         model.RoleMember,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Two concurrent first logins with the same email: the loser
		// of the INSERT race re-reads the winner's record.
		if errors.Is(err, apperror.ErrEmailTaken) {
			return s.users.FindByEmail(ctx, gu.Email)
		}
		return nil, fmt.Errorf("service/account: creating federated user: %w", err)
	}

	s.logger.Info("federated account created", slog.String("userID", user.ID))
	return user, nil
}

// ProfileFromToken verifies a session token and returns the CURRENT
// profile, not the claims snapshot.
//
// The token only proves identity; the record is re-read so profile changes
// made after issuance show up here, the token-version counter is checked
// so sessions minted before a password reset die, and a fresh token is
// issued so the client's credential keeps tracking the live record.
func (s *AccountService) ProfileFromToken(ctx context.Context, tokenStr string) (*ProfileResult, error) {
	claims, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrUserNotFound) {
			// Account deleted since issuance; the token now points
			// at nothing.
			return nil, apperror.InvalidToken()
		}
		return nil, fmt.Errorf("service/account: loading user: %w", err)
	}

	if claims.TokenVersion != user.TokenVersion {
		return nil, apperror.InvalidToken()
	}

	fresh, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("service/account: reissuing token: %w", err)
	}

	authored, err := s.content.AuthoredSummary(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/account: summarizing authored content: %w", err)
	}

	return &ProfileResult{
		Profile:  model.ProfileOf(user),
		Token:    fresh,
		Authored: authored,
	}, nil
}

// ProfileUpdate carries the fields a user may change about themselves.
// Empty fields are left unchanged — an update never nulls anything, and
// there is deliberately no way to touch the role here.
type ProfileUpdate struct {
	Name     string
	Email    string
	Fakultas string
}

// UpdateProfile applies a partial profile update for the authenticated
// user. An email change re-checks uniqueness against all other accounts
// before writing; the store's UNIQUE constraint backstops the race.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (model.Profile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}

	if upd.Email != "" && upd.Email != user.Email {
		if _, err := s.users.FindByEmail(ctx, upd.Email); err == nil {
			return model.Profile{}, apperror.EmailTaken(upd.Email)
		} else if !errors.Is(err, apperror.ErrUserNotFound) {
			return model.Profile{}, fmt.Errorf("service/account: checking email: %w", err)
		}
		user.Email = upd.Email
	}
	if upd.Name != "" {
		user.Name = upd.Name
	}
	if upd.Fakultas != "" {
		user.Fakultas = upd.Fakultas
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrEmailTaken) {
			return model.Profile{}, apperror.EmailTaken(upd.Email)
		}
		return model.Profile{}, fmt.Errorf("service/account: updating user: %w", err)
	}

	s.logger.Info("profile updated", slog.String("userID", user.ID))
	return model.ProfileOf(user), nil
}

// UpdateAvatar uploads the image to the storage provider and persists the
// resulting URL. The bytes flow through untouched — validation of the
// image format is the provider's business, not ours.
func (s *AccountService) UpdateAvatar(ctx context.Context, userID string, data []byte, fileName string) (model.Profile, error) {
	if len(data) == 0 {
		return model.Profile{}, apperror.ValidationFailed("avatar", "avatar file is empty")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}

	result, err := s.uploads.Upload(ctx, data, fileName, avatarFolder)
	if err != nil {
		return model.Profile{}, err // already an apperror.StorageFailure
	}

	user.AvatarURL = result.URL
	if err := s.users.Update(ctx, user); err != nil {
		return model.Profile{}, fmt.Errorf("service/account: persisting avatar URL: %w", err)
	}

	s.logger.Info("avatar updated", slog.String("userID", user.ID))
	return model.ProfileOf(user), nil
}

// RequestPasswordReset issues an OTP for the account behind the email and
// dispatches it. The acknowledgement is identical whether or not the
// account exists; for an unknown email nothing is issued and nothing is
// sent. A mail-dispatch failure for a known account IS surfaced — the
// user has a live code they will never receive, and a fake success would
// strand them.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrUserNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("service/account: looking up user: %w", err)
	}

	return s.issueAndMailOTP(ctx, user, mailer.PurposeReset)
}

// issueAndMailOTP generates a code, persists it (overwriting any previous
// code), and mails it. One SetOTP statement makes the issuance atomic.
func (s *AccountService) issueAndMailOTP(ctx context.Context, user *model.User, purpose mailer.OTPPurpose) error {
	code, expiresAt, err := s.otp.Issue()
	if err != nil {
		return fmt.Errorf("service/account: %w", err)
	}

	if err := s.users.SetOTP(ctx, user.ID, code, expiresAt); err != nil {
		return fmt.Errorf("service/account: storing OTP: %w", err)
	}

	if err := s.mail.SendOTP(ctx, user.Email, code, purpose); err != nil {
		return err // apperror.MailDispatchFailure
	}

	s.logger.Info("OTP issued",
		slog.String("userID", user.ID),
		slog.String("purpose", string(purpose)),
	)
	return nil
}

// VerifyOTP checks a submitted code without consuming it, so a client can
// confirm the code before committing to a new password. An unknown email
// reports NoActiveOTP, same as a known account with no pending code.
func (s *AccountService) VerifyOTP(ctx context.Context, email, code string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrUserNotFound) {
			return apperror.NoActiveOTP()
		}
		return fmt.Errorf("service/account: looking up user: %w", err)
	}

	return s.otp.Validate(user, code)
}

// ResetPassword re-validates the code — independently of any earlier
// VerifyOTP call; no state is carried between steps — and on success
// stores the new hash, consumes the code, and bumps the token version so
// every outstanding session dies. Those three effects land in one store
// write.
func (s *AccountService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrUserNotFound) {
			return apperror.NoActiveOTP()
		}
		return fmt.Errorf("service/account: looking up user: %w", err)
	}

	if err := s.otp.Validate(user, code); err != nil {
		return err
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return apperror.ValidationFailed("password", err.Error())
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("service/account: updating password: %w", err)
	}

	s.logger.Info("password reset", slog.String("userID", user.ID))
	return nil
}

// RequestAccountDeletion issues an OTP for the already-authenticated
// caller and mails it to their registered address. Identity comes from the
// session, not from a submitted email.
func (s *AccountService) RequestAccountDeletion(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	return s.issueAndMailOTP(ctx, user, mailer.PurposeDelete)
}

// ConfirmAccountDeletion validates the code and removes the account
// together with everything it authored, in one transaction. There is no
// state where the account is gone but its content lingers, or the
// reverse. The OTP is consumed by the deletion itself — the record that
// held it no longer exists.
func (s *AccountService) ConfirmAccountDeletion(ctx context.Context, userID, code string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.otp.Validate(user, code); err != nil {
		return err
	}

	if err := s.content.DeleteAccountData(ctx, userID); err != nil {
		return fmt.Errorf("service/account: deleting account data: %w", err)
	}

	s.logger.Info("account deleted", slog.String("userID", userID))
	return nil
}

// Pagination is the metadata block accompanying every listing response.
type Pagination struct {
	Page            int  `json:"page"`
	Limit           int  `json:"limit"`
	TotalItems      int  `json:"totalItems"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// ListUsers returns a page of public profiles, newest first.
func (s *AccountService) ListUsers(ctx context.Context, page, limit int) ([]model.Profile, Pagination, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	users, total, err := s.users.List(ctx, repository.ListOptions{Page: page, Limit: limit})
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("service/account: listing users: %w", err)
	}

	profiles := make([]model.Profile, 0, len(users))
	for i := range users {
		profiles = append(profiles, model.ProfileOf(&users[i]))
	}

	totalPages := (total + limit - 1) / limit
	meta := Pagination{
		Page:            page,
		Limit:           limit,
		TotalItems:      total,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}
	return profiles, meta, nil
}
