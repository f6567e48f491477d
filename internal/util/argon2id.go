package util

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// KDF profile names accepted by Argon2idProfile.
const (
	KDFProfileInteractive = "interactive"
	KDFProfileModerate    = "moderate"
	KDFProfileSensitive   = "sensitive"
)

// Lower bounds enforced by ValidateArgon2idParams.
const (
	MinArgon2Time      = 1
	MinArgon2MemoryKiB = 19 * 1024
	MinArgon2Parallel  = 1
)

// Upper bounds enforced by ValidateArgon2idParams. Parameters come from a
// container's cleartext header and run before authentication.
const (
	MaxArgon2Time      = 16
	MaxArgon2MemoryKiB = 1024 * 1024
	MaxArgon2Parallel  = 16
)

type Argon2idParams struct {
	Time        uint32 `json:"time"`
	MemoryKiB   uint32 `json:"memory"`
	Parallelism uint8  `json:"parallelism"`
	KeyLen      uint32 `json:"key_len"`
}

func DefaultArgon2idParams() Argon2idParams {
	p, _ := Argon2idProfile(KDFProfileModerate)
	return p
}

// Argon2idProfile returns the parameter set registered under name.
func Argon2idProfile(name string) (Argon2idParams, error) {
	switch name {
	case KDFProfileInteractive:
		return Argon2idParams{Time: 2, MemoryKiB: 19 * 1024, Parallelism: 1, KeyLen: 32}, nil
	case KDFProfileModerate:
		return Argon2idParams{Time: 3, MemoryKiB: 64 * 1024, Parallelism: 4, KeyLen: 32}, nil
	case KDFProfileSensitive:
		return Argon2idParams{Time: 4, MemoryKiB: 128 * 1024, Parallelism: 4, KeyLen: 32}, nil
	default:
		return Argon2idParams{}, fmt.Errorf("unknown KDF profile %q", name)
	}
}

// ValidateArgon2idParams rejects parameter sets that are too weak, or too
// costly, to accept from an untrusted container header.
func ValidateArgon2idParams(p Argon2idParams) error {
	if p.KeyLen != 32 {
		return fmt.Errorf("argon2id key length must be 32 bytes")
	}
	if p.Time < MinArgon2Time {
		return fmt.Errorf("argon2id time must be at least %d", MinArgon2Time)
	}
	if p.MemoryKiB < MinArgon2MemoryKiB {
		return fmt.Errorf("argon2id memory must be at least %d KiB", MinArgon2MemoryKiB)
	}
	if p.Parallelism < MinArgon2Parallel {
		return fmt.Errorf("argon2id parallelism must be at least %d", MinArgon2Parallel)
	}
	if p.Time > MaxArgon2Time {
		return fmt.Errorf("argon2id time must be at most %d", MaxArgon2Time)
	}
	if p.MemoryKiB > MaxArgon2MemoryKiB {
		return fmt.Errorf("argon2id memory must be at most %d KiB", MaxArgon2MemoryKiB)
	}
	if p.Parallelism > MaxArgon2Parallel {
		return fmt.Errorf("argon2id parallelism must be at most %d", MaxArgon2Parallel)
	}
	return nil
}

func DeriveArgon2idKey(passphrase, salt []byte, params Argon2idParams) ([]byte, error) {
	if params.KeyLen != 32 {
		return nil, fmt.Errorf("argon2id key length must be 32 bytes")
	}
	key := argon2.IDKey(passphrase, salt, params.Time, params.MemoryKiB, params.Parallelism, params.KeyLen)
	return key, nil
}

func CompareArgon2idKey(passphrase, salt []byte, params Argon2idParams, expectedKey []byte) (bool, error) {
	key, err := DeriveArgon2idKey(passphrase, salt, params)
	if err != nil {
		return false, err
	}
	defer WipeBytes(key)
	return subtle.ConstantTimeCompare(key, expectedKey) == 1, nil
}
