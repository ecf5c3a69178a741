package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"math/big"
)

// HashString returns a hex-encoded SHA-256 hash for token storage.
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// RandomToken returns n random bytes encoded as unpadded base64url.
func RandomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

const generatedPasswordChars = "0123456789" +
	"abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	`,.-{}+!"#$%/()=?`

const generatedPasswordLength = 16

// GeneratePassword returns a random placeholder password for accounts that
// are created by an admin and finished through the set-password flow.
func GeneratePassword() (string, error) {
	max := big.NewInt(int64(len(generatedPasswordChars)))
	out := make([]byte, generatedPasswordLength)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = generatedPasswordChars[n.Int64()]
	}
	return string(out), nil
}
