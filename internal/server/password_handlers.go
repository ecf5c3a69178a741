package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"reportgate/internal/auth"
	"reportgate/internal/views"
)

const (
	msgInvalidToken           = "Invalid token. Request a new link."
	msgTokenRequired          = "Token is required"
	msgWeakPassword           = "Password is required and should contain at least 8 characters, 1 lowercase letter, 1 uppercase letter, 1 number, and 1 symbol"
	msgVerifyPasswordRequired = "Verify password is required"
	msgPasswordsDoNotMatch    = "Passwords do not match"
	msgUnableToSetPassword    = "Unable to set password"
)

func (s *Server) handleSetPasswordView(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	data := views.PageData{Title: "Set Password", Errors: map[string]string{}}

	user, err := s.Accounts.UserByToken(r.Context(), token)
	if errors.Is(err, auth.ErrInvalidToken) {
		data.Errors["form"] = msgInvalidToken
		s.render(w, r, http.StatusBadRequest, views.PageSetPassword, data)
		return
	}
	if err != nil {
		s.serverError(w, r, fmt.Errorf("resolve password token: %w", err))
		return
	}

	data.Values = map[string]string{"token": token, "email": user.Email}
	s.render(w, r, http.StatusOK, views.PageSetPassword, data)
}

func (s *Server) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.PostFormValue("token"))
	emailAddr := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	verify := r.PostFormValue("verifyPassword")

	data := views.PageData{
		Title:  "Set Password",
		Values: map[string]string{"token": token, "email": emailAddr},
		Errors: map[string]string{},
	}
	if token == "" {
		data.Errors["token"] = msgTokenRequired
	}
	if emailAddr == "" {
		data.Errors["email"] = msgEmailRequired
	}
	if !strongPassword(password) {
		data.Errors["password"] = msgWeakPassword
	}
	if verify == "" {
		data.Errors["verifyPassword"] = msgVerifyPasswordRequired
	} else if verify != password {
		data.Errors["verifyPassword"] = msgPasswordsDoNotMatch
	}
	if len(data.Errors) > 0 {
		s.render(w, r, http.StatusBadRequest, views.PageSetPassword, data)
		return
	}

	user, err := s.Accounts.SetPassword(r.Context(), emailAddr, token, password)
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrUserNotFound) {
		data.Errors["form"] = msgUnableToSetPassword
		s.render(w, r, http.StatusBadRequest, views.PageSetPassword, data)
		return
	}
	if err != nil {
		s.serverError(w, r, fmt.Errorf("set password: %w", err))
		return
	}

	s.RateLimiter.ResetAttempts(context.WithoutCancel(r.Context()), user.Email, clientIP(r, s.trustedProxies))
	s.audit(r, auth.AuditEvent{EventType: auth.EventPasswordSet, UserID: user.ID})
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleForgotPasswordView(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, views.PageForgotPassword, views.PageData{
		Title:   "Forgot Password",
		Success: r.URL.Query().Get("success") == "true",
	})
}

// handleForgotPassword answers every valid request the same way and pads
// the response time so the outcome does not reveal whether the account
// exists.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	emailAddr := strings.TrimSpace(r.PostFormValue("email"))
	if !validateEmail(emailAddr) {
		s.render(w, r, http.StatusBadRequest, views.PageForgotPassword, views.PageData{
			Title:  "Forgot Password",
			Values: map[string]string{"email": emailAddr},
			Errors: map[string]string{"email": msgValidEmailRequired},
		})
		return
	}

	s.requestPasswordReset(r, emailAddr)

	padDuration(r.Context(), start, s.Config.Passwords.ForgotMinDuration, s.Config.Passwords.ForgotJitter)
	http.Redirect(w, r, "/forgot-password?success=true", http.StatusFound)
}

func (s *Server) requestPasswordReset(r *http.Request, emailAddr string) {
	ctx := r.Context()
	log := s.Logger.With(slog.String("request_id", requestID(ctx)))

	locked, _, err := s.RateLimiter.RegisterResetAttempt(ctx, emailAddr, clientIP(r, s.trustedProxies))
	if err != nil {
		log.ErrorContext(ctx, "forgot password: rate limit check failed", slog.Any("error", err))
		return
	}
	if locked {
		log.WarnContext(ctx, "forgot password: rate limited")
		return
	}

	user, err := s.Users.FindByEmail(ctx, emailAddr)
	if err != nil {
		log.ErrorContext(ctx, "forgot password: lookup failed", slog.Any("error", err))
		return
	}
	if user == nil {
		return
	}

	pending, err := s.Accounts.HasPendingToken(ctx, user.ID)
	if err != nil {
		log.ErrorContext(ctx, "forgot password: token check failed", slog.Any("error", err))
		return
	}
	if pending {
		return
	}

	token, err := s.Accounts.IssuePasswordToken(ctx, user)
	if err != nil {
		log.ErrorContext(ctx, "forgot password: issue token failed", slog.Any("error", err))
		return
	}
	if err := s.Mailer.SendPasswordReset(context.WithoutCancel(ctx), s.passwordMessage(r, user.Email, token)); err != nil {
		log.ErrorContext(ctx, "forgot password: send email failed", slog.String("user_id", user.ID), slog.Any("error", err))
		return
	}
	s.audit(r, auth.AuditEvent{EventType: auth.EventPasswordResetRequested, UserID: user.ID})
}
