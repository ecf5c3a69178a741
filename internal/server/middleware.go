package server

import (
	"context"
	"net/http"
	"net/url"

	"reportgate/internal/auth"
	"reportgate/internal/views"
)

type ctxKey string

const (
	sessionContextKey ctxKey = "session"
	userContextKey    ctxKey = "user"
)

func sessionFromContext(ctx context.Context) *auth.Session {
	if val, ok := ctx.Value(sessionContextKey).(*auth.Session); ok {
		return val
	}
	return nil
}

func userFromContext(ctx context.Context) *auth.User {
	if val, ok := ctx.Value(userContextKey).(*auth.User); ok {
		return val
	}
	return nil
}

// requireAuthenticated sends anonymous browsers to the login page with the
// original URL in ?redirect= and answers XHR with 401.
func (s *Server) requireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userFromContext(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}

		if isXHR(r) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		target := r.URL.RequestURI()
		if target == "/" {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/login?redirect="+url.QueryEscape(target), http.StatusFound)
	})
}

// requireRole must run after requireAuthenticated.
func (s *Server) requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := userFromContext(r.Context())
			if user == nil {
				panic("requireRole(" + role + ") reached without an authenticated user")
			}
			if user.HasRole(role) {
				next.ServeHTTP(w, r)
				return
			}

			s.Logger.DebugContext(r.Context(), "role check failed", "user_id", user.ID, "role", role, "path", r.URL.Path)
			if isXHR(r) {
				writeError(w, http.StatusForbidden, "Forbidden")
				return
			}
			s.render(w, r, http.StatusForbidden, views.PageForbidden, views.PageData{Title: "Forbidden"})
		})
	}
}

// requireAnonymous bounces signed-in users to "/". With AnonymousGateRole
// set, only users holding that role are bounced.
func (s *Server) requireAnonymous(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())
		role := s.Config.AnonymousGateRole
		if user != nil && (role == "" || user.HasRole(role)) {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
