package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	UsernameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	SecretLength     = 18 // bytes, 24 chars base64url
)

// GenerateUsername returns a random username of the given length drawn from
// lowercase letters and digits.
func GenerateUsername(length int) (string, error) {
	return randomString(length, UsernameAlphabet)
}

// GenerateHexCode returns n random bytes hex encoded (2n lowercase chars).
func GenerateHexCode(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateSecret returns a url-safe random secret.
func GenerateSecret() (string, error) {
	b := make([]byte, SecretLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// RandomString returns length chars drawn uniformly from alphabet.
func RandomString(length int, alphabet string) (string, error) {
	return randomString(length, alphabet)
}

func randomString(length int, alphabet string) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive, got %d", length)
	}
	if alphabet == "" {
		return "", fmt.Errorf("alphabet cannot be empty")
	}

	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random index: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
