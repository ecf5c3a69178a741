package email

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"reportgate/internal/config"
)

// Message carries what every set-password email needs.
type Message struct {
	To        string
	Link      string
	Locale    string
	ExpiresIn time.Duration
}

// Sender delivers the two account emails. Implementations return an error
// when the provider did not accept the message.
type Sender interface {
	SendNewAccount(ctx context.Context, m Message) error
	SendPasswordReset(ctx context.Context, m Message) error
}

// NewSender prefers EmailJS, then SMTP. Without either provider configured
// messages are only logged.
func NewSender(cfg config.EmailConfig, logger *slog.Logger) Sender {
	switch {
	case cfg.EmailJS.Enabled():
		return &EmailJSSender{
			Endpoint:                 cfg.EmailJS.Endpoint,
			ServiceID:                cfg.EmailJS.ServiceID,
			PublicKey:                cfg.EmailJS.PublicKey,
			PrivateKey:               cfg.EmailJS.PrivateKey,
			NewAccountTemplateID:     cfg.EmailJS.NewAccountTemplateID,
			ForgotPasswordTemplateID: cfg.EmailJS.ForgotPasswordTemplateID,
			Client:                   &http.Client{Timeout: 10 * time.Second},
		}
	case cfg.Enabled():
		return NewSMTPSender(cfg)
	default:
		logger.Warn("email is not configured, set-password links will only be logged")
		return &LogSender{Logger: logger}
	}
}
