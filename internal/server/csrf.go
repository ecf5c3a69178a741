package server

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"reportgate/internal/auth"
)

const (
	csrfFormField = "_csrf"
	csrfHeader    = "X-CSRF-Token"
	maxJSONBody   = 1 << 20
	maxFormMemory = 1 << 20
)

// csrfGuard issues the per-session token on safe requests and verifies the
// double-submitted token on the configured unsafe methods. Any verification
// failure is a server error.
func (s *Server) csrfGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		if sess == nil {
			s.serverError(w, r, auth.ErrCSRFNotConfigured)
			return
		}

		if _, unsafe := s.csrfMethods[r.Method]; !unsafe {
			if err := s.ensureCSRFToken(w, r, sess); err != nil {
				s.serverError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if err := s.verifyCSRF(w, r); err != nil {
			s.serverError(w, r, fmt.Errorf("csrf %s %s: %w", r.Method, r.URL.Path, err))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) ensureCSRFToken(w http.ResponseWriter, r *http.Request, sess *auth.Session) error {
	if sess.CSRFToken == "" {
		sess.CSRFToken = auth.NewCSRFToken()
		if err := s.saveSession(r.Context(), w, sess); err != nil {
			return err
		}
		return s.setCSRFCookie(w, sess.CSRFToken)
	}
	if _, err := r.Cookie(auth.CSRFCookieName); errors.Is(err, http.ErrNoCookie) {
		return s.setCSRFCookie(w, sess.CSRFToken)
	}
	return nil
}

func (s *Server) setCSRFCookie(w http.ResponseWriter, token string) error {
	if s.csrf == nil {
		return auth.ErrCSRFNotConfigured
	}
	enc, err := s.csrf.Encrypt(token)
	if err != nil {
		return fmt.Errorf("encrypt csrf token: %w", err)
	}
	return auth.SetCSRFCookie(w, s.cookieSigner, enc, s.cookieOptions())
}

func (s *Server) verifyCSRF(w http.ResponseWriter, r *http.Request) error {
	if s.csrf == nil {
		return auth.ErrCSRFNotConfigured
	}
	c, err := r.Cookie(auth.CSRFCookieName)
	if err != nil || c.Value == "" {
		return auth.ErrCSRFCookieMissing
	}
	enc, err := s.cookieSigner.Decode(auth.CSRFCookieName, c.Value)
	if err != nil {
		return fmt.Errorf("%w: %v", auth.ErrCSRFCookieSignature, err)
	}
	expected, err := s.csrf.Decrypt(enc)
	if err != nil {
		return err
	}

	submitted, err := submittedToken(w, r)
	if err != nil {
		return err
	}
	if submitted == "" {
		return auth.ErrCSRFTokenMissing
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(submitted)) != 1 {
		return auth.ErrCSRFMismatch
	}
	return nil
}

// submittedToken reads the token from the header, a JSON body or a form
// body, in that order. A JSON body is restored for the handler.
func submittedToken(w http.ResponseWriter, r *http.Request) (string, error) {
	if h := r.Header.Get(csrfHeader); h != "" {
		return h, nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
		if err != nil {
			return "", fmt.Errorf("read body: %w", err)
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		var payload struct {
			CSRF string `json:"_csrf"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return "", nil
		}
		return payload.CSRF, nil
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return "", fmt.Errorf("parse form: %w", err)
		}
		return r.PostForm.Get(csrfFormField), nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			return "", fmt.Errorf("parse form: %w", err)
		}
		return r.PostForm.Get(csrfFormField), nil
	}
	return "", nil
}
