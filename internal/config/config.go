// Package config loads the service configuration from environment
// variables into a single struct, parsed once at startup.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the service needs to start. Secrets (JWT secret,
// OAuth client secret, SMTP password, ImageKit key) only ever live here
// and in the components they are injected into — they are never logged.
type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	DBPath   string `env:"DB_PATH" envDefault:"data/identity.db"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// JWTSecret signs session tokens. At least 32 random bytes in
	// production: JWT_SECRET=$(openssl rand -hex 32)
	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`

	// Google OAuth app credentials. Empty values disable the federated
	// login routes.
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `env:"GOOGLE_CALLBACK_URL" envDefault:"http://localhost:8080/api/v1/auth/google/callback"`

	// SMTP relay for OTP mail.
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM" envDefault:"Ngampus.in <noreply@ngampus.in>"`

	// ImageKit private API key for avatar uploads.
	ImageKitPrivateKey string `env:"IMAGEKIT_PRIVATE_KEY"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}
	return &cfg, nil
}
