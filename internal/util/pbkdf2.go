package util

import (
	"crypto/sha1"

	"golang.org/x/crypto/pbkdf2"
)

// DerivePBKDF2SHA1 stretches password with PBKDF2-HMAC-SHA1, the RFC 2898
// default used by the legacy container.
func DerivePBKDF2SHA1(password, salt []byte, iterations, keyLen int) []byte {
	return pbkdf2.Key(password, salt, iterations, keyLen, sha1.New)
}
