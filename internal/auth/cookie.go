package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	SessionCookieName = "sid"
	CSRFCookieName    = "csrfToken"
)

var ErrBadSignature = errors.New("cookie signature mismatch")

// CookieSigner authenticates cookie values with securecookie. The cookie
// name is part of the MAC, so a sid value is never accepted as csrfToken.
type CookieSigner struct {
	codec *securecookie.SecureCookie
}

func NewCookieSigner(secret string) *CookieSigner {
	key := sha256.Sum256([]byte(secret))
	codec := securecookie.New(key[:], nil)
	codec.SetSerializer(securecookie.NopEncoder{})
	// Lifetimes are enforced by the cookie Max-Age and the Redis TTL.
	codec.MaxAge(0)
	return &CookieSigner{codec: codec}
}

func (s *CookieSigner) Encode(name, value string) (string, error) {
	encoded, err := s.codec.Encode(name, []byte(value))
	if err != nil {
		return "", fmt.Errorf("encode %s cookie: %w", name, err)
	}
	return encoded, nil
}

// Decode returns the original value when the MAC for name is valid.
func (s *CookieSigner) Decode(name, encoded string) (string, error) {
	var raw []byte
	if err := s.codec.Decode(name, encoded, &raw); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return string(raw), nil
}

type CookieOptions struct {
	Secure   bool
	SameSite http.SameSite
	// MaxAge of zero makes a browser-session cookie.
	MaxAge time.Duration
}

func SetSessionCookie(w http.ResponseWriter, signer *CookieSigner, id string, opts CookieOptions) error {
	value, err := signer.Encode(SessionCookieName, id)
	if err != nil {
		return err
	}
	c := &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if opts.MaxAge > 0 {
		c.MaxAge = int(opts.MaxAge.Seconds())
		c.Expires = time.Now().Add(opts.MaxAge)
	}
	http.SetCookie(w, c)
	return nil
}

func SetCSRFCookie(w http.ResponseWriter, signer *CookieSigner, encrypted string, opts CookieOptions) error {
	value, err := signer.Encode(CSRFCookieName, encrypted)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
	return nil
}

func ClearCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
	})
}

// ReadSignedCookie returns the verified value of the named cookie.
func ReadSignedCookie(r *http.Request, signer *CookieSigner, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil {
		return "", err
	}
	return signer.Decode(name, c.Value)
}
