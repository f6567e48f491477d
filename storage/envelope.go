package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jmcleod/bimil/internal/util"
)

const (
	// SchemeAESGCM is the only supported envelope scheme.
	SchemeAESGCM = "aes256gcm"

	envelopeVersion = 1
	binaryMagic     = "PWG1"
	nonceSize       = 12
)

// ErrMalformedEnvelope is returned when binary envelope data cannot be decoded.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Envelope is a sealed record containing AES-256-GCM encrypted data. When the
// key is derived from a passphrase, KDF and Salt carry the derivation inputs.
type Envelope struct {
	Ver        int                 `json:"ver"`
	Scheme     string              `json:"scheme"`
	KDF        util.Argon2idParams `json:"kdf"`
	Salt       []byte              `json:"salt,omitempty"`
	Nonce      []byte              `json:"nonce"`
	Ciphertext []byte              `json:"ciphertext"`
	Version    uint64              `json:"version,omitempty"`
}

// SealRecord encrypts plaintext into an Envelope using the given record key and AAD.
func SealRecord(recordKey, plaintext, aad []byte, version ...uint64) (*Envelope, error) {
	cipher, err := util.EncryptAESWithAAD(plaintext, recordKey, aad)
	if err != nil {
		return nil, err
	}

	// util.EncryptAESWithAAD returns nonce || ciphertext.
	env := &Envelope{
		Ver:        envelopeVersion,
		Scheme:     SchemeAESGCM,
		Nonce:      cipher[:nonceSize],
		Ciphertext: cipher[nonceSize:],
	}
	if len(version) > 0 {
		env.Version = version[0]
	}
	return env, nil
}

// OpenRecord decrypts an Envelope using the given record key and AAD.
func OpenRecord(recordKey []byte, envelope *Envelope, aad []byte) ([]byte, error) {
	if envelope.Ver != envelopeVersion {
		return nil, fmt.Errorf("unsupported envelope version: %d", envelope.Ver)
	}
	if envelope.Scheme != SchemeAESGCM {
		return nil, fmt.Errorf("unsupported envelope scheme: %s", envelope.Scheme)
	}

	// Reconstruct nonce || ciphertext without mutating envelope fields.
	fullCipher := make([]byte, len(envelope.Nonce)+len(envelope.Ciphertext))
	copy(fullCipher, envelope.Nonce)
	copy(fullCipher[len(envelope.Nonce):], envelope.Ciphertext)

	return util.DecryptAESWithAAD(fullCipher, recordKey, aad)
}

// AAD returns the unencrypted envelope prefix: magic, version, KDF
// parameters and salt. Binding it as additional data means a tampered
// parameter block fails authentication.
func (e *Envelope) AAD() []byte {
	b := make([]byte, 0, 16+len(e.Salt))
	b = append(b, binaryMagic...)
	b = append(b, byte(e.Ver))
	b = binary.LittleEndian.AppendUint32(b, e.KDF.Time)
	b = binary.LittleEndian.AppendUint32(b, e.KDF.MemoryKiB)
	b = append(b, e.KDF.Parallelism)
	b = append(b, byte(e.KDF.KeyLen))
	b = append(b, byte(len(e.Salt)))
	return append(b, e.Salt...)
}

// MarshalBinary encodes the envelope as AAD || nonce length || nonce || ciphertext.
// The storage Version is not part of the binary form.
func (e *Envelope) MarshalBinary() ([]byte, error) {
	if len(e.Salt) > 255 || len(e.Nonce) > 255 || e.KDF.KeyLen > 255 {
		return nil, fmt.Errorf("%w: field too long", ErrMalformedEnvelope)
	}
	b := e.AAD()
	b = append(b, byte(len(e.Nonce)))
	b = append(b, e.Nonce...)
	return append(b, e.Ciphertext...), nil
}

// UnmarshalBinary decodes data produced by MarshalBinary.
func (e *Envelope) UnmarshalBinary(data []byte) error {
	r := envelopeReader{data: data}
	if string(r.next(len(binaryMagic))) != binaryMagic {
		return fmt.Errorf("%w: bad magic", ErrMalformedEnvelope)
	}
	ver := r.readByte()
	kdf := util.Argon2idParams{
		Time:        r.readUint32(),
		MemoryKiB:   r.readUint32(),
		Parallelism: r.readByte(),
		KeyLen:      uint32(r.readByte()),
	}
	salt := r.next(int(r.readByte()))
	nonce := r.next(int(r.readByte()))
	if r.err {
		return fmt.Errorf("%w: truncated header", ErrMalformedEnvelope)
	}
	*e = Envelope{
		Ver:        int(ver),
		Scheme:     SchemeAESGCM,
		KDF:        kdf,
		Salt:       util.CopyBytes(salt),
		Nonce:      util.CopyBytes(nonce),
		Ciphertext: util.CopyBytes(data[r.pos:]),
	}
	return nil
}

type envelopeReader struct {
	data []byte
	pos  int
	err  bool
}

func (r *envelopeReader) next(n int) []byte {
	if r.err || n < 0 || len(r.data)-r.pos < n {
		r.err = true
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *envelopeReader) readByte() byte {
	b := r.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *envelopeReader) readUint32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}
