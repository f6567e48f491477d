package util

import (
	"crypto/rand"
	"fmt"
)

func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if err := FillRandom(b); err != nil {
		return nil, err
	}
	return b, nil
}

// FillRandom overwrites b with cryptographically secure random bytes.
func FillRandom(b []byte) error {
	if _, err := rand.Read(b); err != nil {
		return fmt.Errorf("generating random bytes: %w", err)
	}
	return nil
}
