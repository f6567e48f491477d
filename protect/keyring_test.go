package protect

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeyring(t *testing.T) *Keyring {
	t.Helper()
	k, err := NewKeyring()
	require.NoError(t, err)
	t.Cleanup(k.Destroy)
	return k
}

func TestKeyring_RoundTrip(t *testing.T) {
	k := newTestKeyring(t)
	entropy := bytes.Repeat([]byte{7}, EntropySize)

	for _, plain := range [][]byte{{}, []byte("a"), []byte("sixteen bytes!!!"), bytes.Repeat([]byte("x"), 100)} {
		sealed, err := k.Protect(plain, entropy)
		require.NoError(t, err)
		assert.NotEqual(t, plain, sealed)

		opened, err := k.Unprotect(sealed, entropy)
		require.NoError(t, err)
		assert.Equal(t, plain, opened)
	}
}

func TestKeyring_EntropyChangesCiphertext(t *testing.T) {
	k := newTestKeyring(t)
	plain := []byte("same plaintext")

	a, err := k.Protect(plain, bytes.Repeat([]byte{1}, EntropySize))
	require.NoError(t, err)
	b, err := k.Protect(plain, bytes.Repeat([]byte{2}, EntropySize))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestKeyring_ShortEntropyIsZeroPadded(t *testing.T) {
	k := newTestKeyring(t)
	plain := []byte("padded entropy")

	short, err := k.Protect(plain, []byte{9, 9})
	require.NoError(t, err)

	padded := make([]byte, EntropySize)
	padded[0], padded[1] = 9, 9
	opened, err := k.Unprotect(short, padded)
	require.NoError(t, err)
	assert.Equal(t, plain, opened)

	opened, err = k.Unprotect(short, nil)
	if err == nil {
		assert.NotEqual(t, plain, opened, "different IV must not reproduce the plaintext")
	}
}

func TestKeyring_SeparateKeyrings(t *testing.T) {
	a := newTestKeyring(t)
	b := newTestKeyring(t)
	entropy := make([]byte, EntropySize)

	sealed, err := a.Protect([]byte("only a can read this"), entropy)
	require.NoError(t, err)

	opened, err := b.Unprotect(sealed, entropy)
	if err == nil {
		assert.NotEqual(t, []byte("only a can read this"), opened)
	}
}

func TestKeyring_NilInput(t *testing.T) {
	k := newTestKeyring(t)

	_, err := k.Protect(nil, nil)
	require.ErrorIs(t, err, ErrNilInput)

	_, err = k.Unprotect(nil, nil)
	require.ErrorIs(t, err, ErrNilInput)
}

func TestKeyring_Destroy(t *testing.T) {
	k, err := NewKeyring()
	require.NoError(t, err)
	k.Destroy()

	_, err = k.Protect([]byte("x"), nil)
	require.ErrorIs(t, err, ErrDestroyed)
}

func TestDefault_IsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}
