package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ngampusin/identity/internal/auth"
	sqliteRepo "github.com/ngampusin/identity/internal/repository/sqlite"
	"github.com/ngampusin/identity/internal/service"
)

func TestHandleList(t *testing.T) {
	db, err := sqliteRepo.New(":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	accounts := service.NewAccountService(db, db, tokens, auth.NewPasswordServiceWithCost(4), auth.NewOTPService(), &captureMailer{}, stubUploader{}, logger)

	for i := 0; i < 3; i++ {
		if _, err := accounts.Register(context.Background(), "U", fmt.Sprintf("u%d@x.edu", i), "Pass1234", "Eng"); err != nil {
			t.Fatalf("Register(%d): %v", i, err)
		}
	}

	r := chi.NewRouter()
	r.Get("/api/v1/users", NewUserHandler(accounts, logger).HandleList)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users?page=1&limit=2", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var got struct {
		Data []json.RawMessage  `json:"data"`
		Meta service.Pagination `json:"meta"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(got.Data) != 2 {
		t.Errorf("len(data) = %d, want 2", len(got.Data))
	}
	if got.Meta.TotalItems != 3 || got.Meta.TotalPages != 2 {
		t.Errorf("meta = %+v, want 3 items over 2 pages", got.Meta)
	}
	if !got.Meta.HasNextPage {
		t.Error("meta.hasNextPage = false on page 1 of 2")
	}

	// Garbage query parameters fall back to defaults rather than erroring.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/users?page=zero&limit=-4", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("garbage params: status = %d, want 200", rec.Code)
	}
}
