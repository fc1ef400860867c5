// Package mailer delivers OTP messages over SMTP.
//
// The service layer depends on the Mailer interface, not the SMTP
// implementation, so tests substitute a recording fake and assert on the
// code that would have been sent.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/ngampusin/identity/internal/apperror"
)

// OTPPurpose selects the wording of the OTP message. The code itself is
// purpose-blind — only the email copy differs.
type OTPPurpose string

const (
	PurposeReset  OTPPurpose = "reset"
	PurposeDelete OTPPurpose = "delete"
)

// Mailer sends a one-time passcode to a recipient.
type Mailer interface {
	SendOTP(ctx context.Context, toEmail, code string, purpose OTPPurpose) error
}

// Config holds the SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // From header, e.g. `"Ngampus.in" <noreply@ngampus.in>`
}

// SMTPMailer sends OTP mail through an SMTP relay using gomail. The dialer
// is constructed once and reused; gomail opens a fresh connection per
// DialAndSend, so the mailer itself carries no connection state and is
// safe for concurrent use.
type SMTPMailer struct {
	cfg    Config
	dialer *gomail.Dialer
	logger *slog.Logger
}

// NewSMTPMailer creates an SMTPMailer for the given relay.
func NewSMTPMailer(cfg Config, logger *slog.Logger) *SMTPMailer {
	return &SMTPMailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		logger: logger,
	}
}

// SendOTP sends the code to the recipient. A dispatch failure is returned
// as apperror.ErrMailDispatch — the caller has just issued an OTP, and
// swallowing the failure would leave the user with no code and no way to
// know why.
func (m *SMTPMailer) SendOTP(ctx context.Context, toEmail, code string, purpose OTPPurpose) error {
	subject, action := subjectAndAction(purpose)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", toEmail)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody(subject, action, code))

	// gomail has no context support; honor cancellation before dialing.
	if err := ctx.Err(); err != nil {
		return apperror.MailDispatchFailure(err)
	}

	if err := m.dialer.DialAndSend(msg); err != nil {
		m.logger.Error("OTP mail dispatch failed",
			slog.String("purpose", string(purpose)),
			slog.String("error", err.Error()),
		)
		return apperror.MailDispatchFailure(err)
	}

	m.logger.Info("OTP mail sent", slog.String("purpose", string(purpose)))
	return nil
}

func subjectAndAction(purpose OTPPurpose) (subject, action string) {
	if purpose == PurposeDelete {
		return "Account Deletion - Ngampus.in", "delete your account"
	}
	return "Reset Password - Ngampus.in", "reset your password"
}

// htmlBody renders the OTP message. The copy matches what users of the
// forum already receive: a greeting, the action being confirmed, the code,
// and the 15-minute validity note.
func htmlBody(subject, action, code string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>%s</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
    .container { background-color: #f9f9f9; border-radius: 10px; padding: 20px; border: 1px solid #ddd; }
    .otp { font-size: 24px; font-weight: bold; letter-spacing: 5px; color: #4a6ee0; background-color: #eef2ff; padding: 10px; border-radius: 5px; margin: 15px 0; text-align: center; }
    .footer { font-size: 12px; color: #666; margin-top: 20px; text-align: center; }
  </style>
</head>
<body>
  <div class="container">
    <h2>Hello from Ngampus.in!</h2>
    <p>We received a request to %s. Please use the following OTP code to continue:</p>
    <div class="otp">%s</div>
    <p>This code will expire in 15 minutes. If you didn't request this, please ignore this email.</p>
    <p>Thank you,<br>The Ngampus.in Team</p>
  </div>
  <div class="footer">&copy; %d Ngampus.in. All rights reserved.</div>
</body>
</html>`, subject, action, code, time.Now().Year())
}
