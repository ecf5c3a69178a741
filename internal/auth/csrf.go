package auth

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrCSRFNotConfigured   = errors.New("csrf: session has no token")
	ErrCSRFCookieMissing   = errors.New("csrf: cookie missing")
	ErrCSRFCookieSignature = errors.New("csrf: cookie signature invalid")
	ErrCSRFMalformed       = errors.New("csrf: malformed cookie")
	ErrCSRFTokenMissing    = errors.New("csrf: no token submitted")
	ErrCSRFMismatch        = errors.New("csrf: token mismatch")
)

// CSRFCipher encrypts CSRF tokens for the double-submit cookie as
// hex(iv) + ":" + hex(AES-256-CBC(token)).
type CSRFCipher struct {
	key []byte
}

func NewCSRFCipher(secret string) (*CSRFCipher, error) {
	key, err := parseCipherKey(strings.TrimSpace(secret))
	if err != nil {
		return nil, err
	}
	return &CSRFCipher{key: key}, nil
}

func parseCipherKey(raw string) ([]byte, error) {
	if len(raw) == 64 {
		if decoded, err := hex.DecodeString(raw); err == nil {
			return decoded, nil
		}
	}
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(raw); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	if len(raw) == 32 {
		return []byte(raw), nil
	}
	return nil, fmt.Errorf("CSRF_SECRET must be 32-byte raw, 64-char hex, or base64")
}

// NewCSRFToken returns a fresh per-session token.
func NewCSRFToken() string {
	return uuid.NewString()
}

func (c *CSRFCipher) Encrypt(token string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	plain := pkcs7Pad([]byte(token), aes.BlockSize)
	out := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plain)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out), nil
}

func (c *CSRFCipher) Decrypt(value string) (string, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return "", ErrCSRFMalformed
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != aes.BlockSize {
		return "", ErrCSRFMalformed
	}
	data, err := hex.DecodeString(parts[1])
	if err != nil || len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", ErrCSRFMalformed
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)

	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, ErrCSRFMalformed
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, ErrCSRFMalformed
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, ErrCSRFMalformed
		}
	}
	return b[:len(b)-n], nil
}
