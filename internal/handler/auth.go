// Package handler exposes the identity core's operations over HTTP. Each
// handler decodes the request, calls one AccountService operation, and
// writes the result — no business rules live here.
package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/ngampusin/identity/internal/auth"
	"github.com/ngampusin/identity/internal/service"
)

// maxAvatarBytes bounds avatar uploads; anything larger is rejected before
// the bytes are read into memory.
const maxAvatarBytes = 5 << 20 // 5 MiB

// AuthHandler serves the account-lifecycle endpoints.
type AuthHandler struct {
	accounts *service.AccountService
	google   *auth.GoogleProvider
	tokens   *auth.TokenService
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(
	accounts *service.AccountService,
	google *auth.GoogleProvider,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		google:   google,
		tokens:   tokens,
		logger:   logger,
	}
}

// ---- Register / Login -------------------------------------------------

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Fakultas string `json:"fakultas"`
}

// HandleRegister creates a password account.
//
// HTTP: POST /api/v1/auth/register
//
// The response carries the profile only — no token. Logging in is a
// separate, explicit step.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	profile, err := h.accounts.Register(r.Context(), req.Name, req.Email, req.Password, req.Fakultas)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"user": profile})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin authenticates an email/password pair.
//
// HTTP: POST /api/v1/auth/login
//
// On success the token is returned in the body (for API clients) and set
// as an HttpOnly cookie (for browsers) — same credential, two transports.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusOK, map[string]any{
		"user":         result.Profile,
		"access_token": result.Token,
	})
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /api/v1/auth/logout
//
// Stateless tokens cannot be revoked individually; logout deletes the
// browser's copy and the token dies at natural expiry.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// ---- Profile ----------------------------------------------------------

// HandleProfile returns the caller's current profile, a fresh token, and
// the authored-content summary.
//
// HTTP: GET /api/v1/auth/profile
// Auth: required
func (h *AuthHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "authentication required"})
		return
	}

	result, err := h.accounts.ProfileFromToken(r.Context(), ident.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusOK, map[string]any{
		"user":         result.Profile,
		"access_token": result.Token,
		"authored":     result.Authored,
	})
}

type updateProfileRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Fakultas string `json:"fakultas"`
}

// HandleUpdateProfile applies a partial update to the caller's profile.
// Omitted fields stay as they are.
//
// HTTP: PATCH /api/v1/auth/profile
// Auth: required
func (h *AuthHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "authentication required"})
		return
	}

	var req updateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	profile, err := h.accounts.UpdateProfile(r.Context(), ident.UserID, service.ProfileUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Fakultas: req.Fakultas,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// HandleUpdateAvatar accepts a multipart upload under the "avatar" field,
// stores it with the object-storage provider, and persists the URL.
//
// HTTP: PATCH /api/v1/auth/avatar
// Auth: required
func (h *AuthHandler) HandleUpdateAvatar(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "authentication required"})
		return
	}

	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "expected multipart form with an avatar file"})
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "avatar file is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAvatarBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "could not read avatar file"})
		return
	}
	if len(data) > maxAvatarBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "validation_error", Message: "avatar exceeds the 5 MiB limit"})
		return
	}

	profile, err := h.accounts.UpdateAvatar(r.Context(), ident.UserID, data, header.Filename)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// ---- Password reset (OTP-gated) --------------------------------------

type requestResetRequest struct {
	Email string `json:"email"`
}

// HandleRequestPasswordReset issues and mails a reset OTP.
//
// HTTP: POST /api/v1/auth/password/request-reset
//
// The acknowledgement is the same whether or not the email is registered.
func (h *AuthHandler) HandleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req requestResetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "email is required"})
		return
	}

	if err := h.accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "If the email is registered, an OTP has been sent"})
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// HandleVerifyOTP checks a code without consuming it.
//
// HTTP: POST /api/v1/auth/password/verify-otp
func (h *AuthHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.accounts.VerifyOTP(r.Context(), req.Email, req.OTP); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "OTP verified successfully"})
}

type resetPasswordRequest struct {
	Email    string `json:"email"`
	OTP      string `json:"otp"`
	Password string `json:"password"`
}

// HandleResetPassword sets a new password after re-validating the code.
//
// HTTP: POST /api/v1/auth/password/reset
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Password == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "password is required"})
		return
	}

	if err := h.accounts.ResetPassword(r.Context(), req.Email, req.OTP, req.Password); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password reset successfully"})
}

// ---- Account deletion (OTP-gated) ------------------------------------

// HandleRequestAccountDeletion issues and mails a deletion OTP for the
// authenticated caller. No email in the request — identity comes from the
// session.
//
// HTTP: POST /api/v1/auth/account/request-deletion
// Auth: required
func (h *AuthHandler) HandleRequestAccountDeletion(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "authentication required"})
		return
	}

	if err := h.accounts.RequestAccountDeletion(r.Context(), ident.UserID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "OTP sent to your email"})
}

type confirmDeletionRequest struct {
	OTP string `json:"otp"`
}

// HandleConfirmAccountDeletion validates the code and deletes the account
// and all its content atomically.
//
// HTTP: DELETE /api/v1/auth/account
// Auth: required
func (h *AuthHandler) HandleConfirmAccountDeletion(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "authentication required"})
		return
	}

	var req confirmDeletionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.accounts.ConfirmAccountDeletion(r.Context(), ident.UserID, req.OTP); err != nil {
		writeError(w, err)
		return
	}

	// Their session is now pointing at nothing; clear the cookie too.
	http.SetCookie(w, &http.Cookie{Name: "token", Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Account deleted successfully"})
}

// ---- Google OAuth -----------------------------------------------------

// HandleGoogleLogin redirects the browser to Google's consent page.
//
// HTTP: GET /api/v1/auth/google/login
//
// A random state value is stored in a short-lived HttpOnly cookie; the
// callback refuses any response whose state does not match it.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes — enough to click through the consent page
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the OAuth flow: state check, code
// exchange, account reconciliation, session issuance.
//
// HTTP: GET /api/v1/auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("google callback: state mismatch or missing")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid OAuth state"})
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{Name: "oauth_state", Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("google callback: user denied authorization", slog.String("error", errParam))
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid_credentials", Message: "authorization was denied"})
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "missing OAuth code"})
		return
	}

	gu, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("google callback: exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "internal_error", Message: "authentication failed"})
		return
	}

	result, err := h.accounts.GoogleLogin(r.Context(), gu)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusOK, map[string]any{
		"user":         result.Profile,
		"access_token": result.Token,
	})
}

// ---- helpers ----------------------------------------------------------

// setSessionCookie stores the session token as an HttpOnly cookie with the
// same lifetime as the token itself.
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.DefaultTokenLifetime / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		// Secure: true in production behind HTTPS.
	})
}

// decodeBody decodes a JSON request body into dst, writing a 400 and
// returning false on malformed input.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid JSON body"})
		return false
	}
	return true
}
