package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"reportgate/internal/auth"
	"reportgate/internal/email"
	"reportgate/internal/views"
)

const (
	msgEmailRequired      = "Email is required"
	msgPasswordRequired   = "Password is required"
	msgValidEmailRequired = "Email is required and should be a valid email"
	msgUserExists         = "User already exists"
)

func (s *Server) handleLoginView(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, views.PageLogin, views.PageData{
		Title:    "Login",
		Redirect: r.URL.Query().Get("redirect"),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	emailAddr := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	redirect := r.URL.Query().Get("redirect")

	data := views.PageData{
		Title:    "Login",
		Redirect: redirect,
		Values:   map[string]string{"email": emailAddr},
		Errors:   map[string]string{},
	}
	if emailAddr == "" {
		data.Errors["email"] = msgEmailRequired
	}
	if password == "" {
		data.Errors["password"] = msgPasswordRequired
	}
	if len(data.Errors) > 0 {
		s.render(w, r, http.StatusBadRequest, views.PageLogin, data)
		return
	}

	ctx := r.Context()
	res, err := s.Verifier.Verify(ctx, emailAddr, password)
	if err != nil {
		s.serverError(w, r, fmt.Errorf("verify credentials: %w", err))
		return
	}
	if res.Outcome != auth.Authenticated {
		s.audit(r, auth.AuditEvent{EventType: auth.EventLoginRejected, Email: emailAddr, Meta: map[string]interface{}{"reason": res.Reason}})
		data.Errors["form"] = res.Reason
		s.render(w, r, http.StatusBadRequest, views.PageLogin, data)
		return
	}

	if _, err := s.startUserSession(ctx, w, sessionFromContext(ctx), res.User); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.audit(r, auth.AuditEvent{EventType: auth.EventLoginSuccess, UserID: res.User.ID})
	http.Redirect(w, r, safeRedirect(redirect), http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFromContext(ctx)
	if err := s.endSession(ctx, w, sessionFromContext(ctx)); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.audit(r, auth.AuditEvent{EventType: auth.EventLogout, UserID: user.ID})
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleRegisterView(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, views.PageRegister, views.PageData{
		Title:   "Register",
		Success: r.URL.Query().Get("success") == "true",
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	emailAddr := strings.TrimSpace(r.PostFormValue("email"))
	data := views.PageData{
		Title:  "Register",
		Values: map[string]string{"email": emailAddr},
		Errors: map[string]string{},
	}
	if !validateEmail(emailAddr) {
		data.Errors["email"] = msgValidEmailRequired
		s.render(w, r, http.StatusBadRequest, views.PageRegister, data)
		return
	}

	ctx := r.Context()
	user, err := s.Accounts.Register(ctx, emailAddr)
	if errors.Is(err, auth.ErrUserExists) {
		data.Errors["form"] = msgUserExists
		s.render(w, r, http.StatusBadRequest, views.PageRegister, data)
		return
	}
	if err != nil {
		s.serverError(w, r, fmt.Errorf("register user: %w", err))
		return
	}

	token, err := s.Accounts.IssuePasswordToken(ctx, user)
	if err != nil {
		s.serverError(w, r, fmt.Errorf("issue password token: %w", err))
		return
	}
	if err := s.Mailer.SendNewAccount(ctx, s.passwordMessage(r, user.Email, token)); err != nil {
		s.serverError(w, r, fmt.Errorf("send new account email: %w", err))
		return
	}

	admin := userFromContext(ctx)
	s.audit(r, auth.AuditEvent{EventType: auth.EventUserRegistered, UserID: user.ID, Meta: map[string]interface{}{"createdBy": admin.ID}})
	http.Redirect(w, r, "/register?success=true", http.StatusFound)
}

func (s *Server) passwordMessage(r *http.Request, to, token string) email.Message {
	return email.Message{
		To:        to,
		Link:      s.Config.BaseURL + "/set-password?token=" + url.QueryEscape(token),
		Locale:    email.LocaleFromRequest(r),
		ExpiresIn: s.Config.Passwords.TokenTTL,
	}
}

// audit records e with the caller's address. Failures are logged only.
func (s *Server) audit(r *http.Request, e auth.AuditEvent) {
	e.IP = clientIP(r, s.trustedProxies)
	e.UserAgent = r.UserAgent()
	if err := s.Audit.Log(context.WithoutCancel(r.Context()), e); err != nil {
		s.Logger.WarnContext(r.Context(), "audit log failed", slog.String("event", e.EventType), slog.Any("error", err))
	}
}
