package handler

// Response helpers: every JSON response and error leaves through these two
// functions, so the wire shape is the same everywhere.
//
// Error responses always look like:
//
//	{"error": "email_taken", "message": "email already in use"}
//
// The mapping from the apperror taxonomy to HTTP status codes lives here
// and nowhere else — the service layer never sees a status code.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ngampusin/identity/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable kind, e.g. "email_taken"
	Message string `json:"message"` // human-readable description
}

// writeJSON sends a JSON response with the given status code. Headers and
// status must be set before the first body write, hence the ordering.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers already sent; logging is all that's left.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status and sends it.
//
// Business failures map to 4xx; the two infrastructure kinds map to 502 so
// clients can tell "retry later" from "fix your request". Anything without
// an AppError in its chain is an unexpected internal error — the raw
// message stays out of the response.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		kind := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status, kind = http.StatusBadRequest, "validation_error"
		case errors.Is(err, apperror.ErrEmailTaken):
			status, kind = http.StatusConflict, "email_taken"
		case errors.Is(err, apperror.ErrInvalidCredentials):
			status, kind = http.StatusUnauthorized, "invalid_credentials"
		case errors.Is(err, apperror.ErrInvalidToken):
			status, kind = http.StatusUnauthorized, "invalid_token"
		case errors.Is(err, apperror.ErrUserNotFound):
			status, kind = http.StatusNotFound, "user_not_found"
		case errors.Is(err, apperror.ErrNoActiveOTP):
			status, kind = http.StatusBadRequest, "no_active_otp"
		case errors.Is(err, apperror.ErrOTPExpired):
			status, kind = http.StatusBadRequest, "otp_expired"
		case errors.Is(err, apperror.ErrOTPMismatch):
			status, kind = http.StatusBadRequest, "otp_mismatch"
		case errors.Is(err, apperror.ErrMissingEmail):
			status, kind = http.StatusBadRequest, "missing_email"
		case errors.Is(err, apperror.ErrForbidden):
			status, kind = http.StatusForbidden, "forbidden"
		case errors.Is(err, apperror.ErrStorage):
			status, kind = http.StatusBadGateway, "storage_failure"
		case errors.Is(err, apperror.ErrMailDispatch):
			status, kind = http.StatusBadGateway, "mail_dispatch_failure"
		}

		writeJSON(w, status, ErrorResponse{Error: kind, Message: appErr.Message})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "an unexpected error occurred",
	})
}
