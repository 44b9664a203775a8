package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// RandomPassword — временный пароль из n случайных байт (base64url).
func RandomPassword(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("random password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
