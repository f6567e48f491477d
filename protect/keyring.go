// Package protect keeps sensitive bytes transformed while they are resident
// in memory.
//
// A Keyring owns a random AES-128 key that lives for as long as the keyring
// does. The key is sealed in a memguard enclave and only unsealed for the
// duration of a single Protect or Unprotect call. Callers supply a per-value
// entropy that is used as the CBC initialization vector, so two protections
// of the same plaintext with different entropy never share ciphertext.
//
// This is not a replacement for document encryption; values pass through a
// keyring in addition to the password-derived container cipher.
package protect

import (
	"errors"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/bimil/internal/util"
)

const (
	// KeySize is the size of the keyring's AES key.
	KeySize = util.LegacyKeySize
	// EntropySize is the number of entropy bytes used as an IV.
	EntropySize = 16
)

var (
	// ErrNilInput is returned when Protect or Unprotect is called with nil data.
	ErrNilInput = errors.New("protect: nil input")
	// ErrDestroyed is returned after Destroy has released the key.
	ErrDestroyed = errors.New("protect: keyring destroyed")
)

// Keyring seals and unseals buffers with a process-lifetime key.
type Keyring struct {
	mu  sync.RWMutex
	key *memguard.Enclave
}

var (
	defaultOnce    sync.Once
	defaultKeyring *Keyring
	defaultErr     error
)

// NewKeyring generates a keyring with a fresh random key.
func NewKeyring() (*Keyring, error) {
	raw, err := util.RandomBytes(KeySize)
	if err != nil {
		return nil, fmt.Errorf("generating keyring key: %w", err)
	}
	// NewEnclave wipes raw.
	return &Keyring{key: memguard.NewEnclave(raw)}, nil
}

// Default returns the shared process keyring, creating it on first use.
// It panics only if the system random source is unusable.
func Default() *Keyring {
	defaultOnce.Do(func() {
		defaultKeyring, defaultErr = NewKeyring()
	})
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultKeyring
}

// Protect encrypts plain under the keyring key using entropy as the IV.
// Entropy shorter than EntropySize is zero-padded; longer entropy is truncated.
func (k *Keyring) Protect(plain, entropy []byte) ([]byte, error) {
	if plain == nil {
		return nil, ErrNilInput
	}
	var out []byte
	err := k.withKey(func(key []byte) error {
		iv := ivFromEntropy(entropy)
		var err error
		out, err = util.EncryptCBC(plain, key, iv[:])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("protecting buffer: %w", err)
	}
	return out, nil
}

// Unprotect reverses Protect. The caller owns the returned buffer and should
// wipe it once done.
func (k *Keyring) Unprotect(cipherText, entropy []byte) ([]byte, error) {
	if cipherText == nil {
		return nil, ErrNilInput
	}
	var out []byte
	err := k.withKey(func(key []byte) error {
		iv := ivFromEntropy(entropy)
		var err error
		out, err = util.DecryptCBC(cipherText, key, iv[:])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("unprotecting buffer: %w", err)
	}
	return out, nil
}

// Destroy releases the key. Further calls fail with ErrDestroyed.
func (k *Keyring) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.key = nil
}

func (k *Keyring) withKey(fn func(key []byte) error) error {
	k.mu.RLock()
	enclave := k.key
	k.mu.RUnlock()
	if enclave == nil {
		return ErrDestroyed
	}

	keyBuf, err := enclave.Open()
	if err != nil {
		return fmt.Errorf("opening key enclave: %w", err)
	}
	defer keyBuf.Destroy()

	return fn(keyBuf.Bytes())
}

func ivFromEntropy(entropy []byte) [EntropySize]byte {
	var iv [EntropySize]byte
	copy(iv[:], entropy)
	return iv
}
