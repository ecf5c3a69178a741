package email

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) SendNewAccount(ctx context.Context, m Message) error {
	s.log(ctx, "new account", NewAccountEmail(m), m)
	return nil
}

func (s *LogSender) SendPasswordReset(ctx context.Context, m Message) error {
	s.log(ctx, "password reset", PasswordResetEmail(m), m)
	return nil
}

func (s *LogSender) log(ctx context.Context, kind string, c Content, m Message) {
	s.Logger.InfoContext(ctx, "email not sent",
		slog.String("kind", kind),
		slog.String("to", m.To),
		slog.String("subject", c.Subject),
		slog.String("link", m.Link),
	)
}
