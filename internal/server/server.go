// Package server wires the dependency graph and runs the HTTP server.
//
// This is the composition root: every component — store, credential
// primitives, collaborators, services, handlers — is constructed here and
// injected downward. Nothing below this package reaches for globals.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ngampusin/identity/internal/auth"
	"github.com/ngampusin/identity/internal/config"
	"github.com/ngampusin/identity/internal/handler"
	"github.com/ngampusin/identity/internal/mailer"
	"github.com/ngampusin/identity/internal/middleware"
	sqliteRepo "github.com/ngampusin/identity/internal/repository/sqlite"
	"github.com/ngampusin/identity/internal/service"
	"github.com/ngampusin/identity/internal/storage"
)

// Server owns the router, the database connection, and the configuration.
// The database is closed during graceful shutdown.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency graph:
//
//	sqlite.DB → AccountService ← TokenService / PasswordService / OTPService
//	                          ← SMTPMailer, ImageKit
//	AccountService → AuthHandler / UserHandler → routes
//
// Each layer receives interfaces where a fake might be substituted and
// concrete types where there is exactly one implementation.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes builds the middleware stack and maps every exposed
// operation to its handler.
//
// Middleware order: RequestID → RealIP → Recoverer → request logger.
// The strict rate limit wraps only the credential endpoints — login and
// the OTP flows — not the whole API.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()
	otp := auth.NewOTPService()
	google := auth.NewGoogleProvider(s.cfg.GoogleClientID, s.cfg.GoogleClientSecret, s.cfg.GoogleCallbackURL)
	mail := mailer.NewSMTPMailer(mailer.Config{
		Host:     s.cfg.SMTPHost,
		Port:     s.cfg.SMTPPort,
		Username: s.cfg.SMTPUsername,
		Password: s.cfg.SMTPPassword,
		From:     s.cfg.MailFrom,
	}, s.logger)
	uploads := storage.NewImageKit(s.cfg.ImageKitPrivateKey)

	accounts := service.NewAccountService(s.db, s.db, tokens, passwords, otp, mail, uploads, s.logger)

	authHandler := handler.NewAuthHandler(accounts, google, tokens, s.logger)
	userHandler := handler.NewUserHandler(accounts, s.logger)

	requireAuth := auth.RequireAuth(tokens)
	strict := middleware.NewRateLimiter(middleware.StrictLimit)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			// Public, credential-bearing — rate limited.
			r.Group(func(r chi.Router) {
				r.Use(strict.Middleware)
				r.Post("/login", authHandler.HandleLogin)
				r.Post("/password/request-reset", authHandler.HandleRequestPasswordReset)
				r.Post("/password/verify-otp", authHandler.HandleVerifyOTP)
				r.Post("/password/reset", authHandler.HandleResetPassword)
			})

			// Public, not credential-bearing.
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/logout", authHandler.HandleLogout)
			r.Get("/google/login", authHandler.HandleGoogleLogin)
			r.Get("/google/callback", authHandler.HandleGoogleCallback)

			// Authenticated.
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/profile", authHandler.HandleProfile)
				r.Patch("/profile", authHandler.HandleUpdateProfile)
				r.Patch("/avatar", authHandler.HandleUpdateAvatar)
				r.With(strict.Middleware).Post("/account/request-deletion", authHandler.HandleRequestAccountDeletion)
				r.With(strict.Middleware).Delete("/account", authHandler.HandleConfirmAccountDeletion)
			})
		})

		r.Get("/users", userHandler.HandleList)
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests for up
// to 30 seconds, close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", slog.Int("port", s.cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		s.logger.Info("shutting down", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Router exposes the configured router for tests that drive the server
// with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}
