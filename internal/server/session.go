package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"reportgate/internal/auth"
)

// loadSession resolves the sid cookie into a session and its user. Visitors
// without a valid session get a fresh unsaved one.
func (s *Server) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var sess *auth.Session
		if id, err := auth.ReadSignedCookie(r, s.sessionSigner, auth.SessionCookieName); err == nil {
			found, err := s.Sessions.Get(ctx, id)
			if err != nil {
				s.serverError(w, r, fmt.Errorf("load session: %w", err))
				return
			}
			sess = found
		}
		if sess == nil {
			sess = s.Sessions.New(time.Now())
		}

		var user *auth.User
		if sess.UserID != "" {
			u, err := s.Identity.Deserialize(ctx, sess.UserID)
			if err != nil {
				s.serverError(w, r, fmt.Errorf("resolve session user: %w", err))
				return
			}
			if u == nil {
				sess.UserID = ""
			}
			user = u
		}

		ctx = context.WithValue(ctx, sessionContextKey, sess)
		ctx = context.WithValue(ctx, userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) cookieOptions() auth.CookieOptions {
	return auth.CookieOptions{
		Secure:   s.Config.IsProduction(),
		SameSite: s.Config.CSRF.SameSiteMode(),
		MaxAge:   s.Config.SessionTTL,
	}
}

// saveSession persists sess and (re)issues the sid cookie.
func (s *Server) saveSession(ctx context.Context, w http.ResponseWriter, sess *auth.Session) error {
	if err := s.Sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return auth.SetSessionCookie(w, s.sessionSigner, sess.ID, s.cookieOptions())
}

// startUserSession replaces the current session with a fresh one bound to
// user. The CSRF token carries over so open forms stay valid.
func (s *Server) startUserSession(ctx context.Context, w http.ResponseWriter, current *auth.Session, user *auth.User) (*auth.Session, error) {
	next := s.Sessions.New(time.Now())
	next.UserID = s.Identity.Serialize(user)
	if current != nil {
		next.CSRFToken = current.CSRFToken
		if err := s.Sessions.Delete(ctx, current.ID); err != nil {
			return nil, fmt.Errorf("drop previous session: %w", err)
		}
	}
	if next.CSRFToken == "" {
		next.CSRFToken = auth.NewCSRFToken()
		if err := s.setCSRFCookie(w, next.CSRFToken); err != nil {
			return nil, err
		}
	}
	if err := s.saveSession(ctx, w, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Server) endSession(ctx context.Context, w http.ResponseWriter, sess *auth.Session) error {
	if sess != nil {
		if err := s.Sessions.Delete(ctx, sess.ID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}
	secure := s.Config.IsProduction()
	auth.ClearCookie(w, auth.SessionCookieName, secure)
	auth.ClearCookie(w, auth.CSRFCookieName, secure)
	return nil
}
