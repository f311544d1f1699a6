// Package crypto implements randomness, generated identifiers and device request tokens.
package crypto

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gofrs/uuid/v5"
)

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// RandomID returns a UUIDv4 rendered as 32 lowercase hex characters.
func RandomID() (string, error) {
	u, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(u.Bytes()), nil
}
