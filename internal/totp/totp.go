// Package totp computes RFC 6238 one-time codes from an entry's two-factor
// key.
package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jmcleod/bimil/internal/util"
)

const (
	SecretBytes = 20
	Digits      = 6
	Period      = 30 * time.Second
	window      = 1
)

// ErrEmptyKey is returned when an entry has no two-factor key.
var ErrEmptyKey = errors.New("two-factor key is empty")

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateKey returns a new random key.
func GenerateKey() ([]byte, error) {
	return util.RandomBytes(SecretBytes)
}

// EncodeKey returns key as the unpadded base32 text authenticator apps expect.
func EncodeKey(key []byte) string {
	return encoding.EncodeToString(key)
}

// DecodeKey parses a base32 secret, ignoring case, spaces and padding.
func DecodeKey(s string) ([]byte, error) {
	s = strings.ToUpper(strings.NewReplacer(" ", "", "=", "").Replace(s))
	return encoding.DecodeString(s)
}

// Code returns the code valid at the given time.
func Code(key []byte, at time.Time) (string, error) {
	if len(key) == 0 {
		return "", ErrEmptyKey
	}
	counter := uint64(at.Unix() / int64(Period/time.Second))
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)
	offset := sum[len(sum)-1] & 0x0f
	binCode := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)
	return fmt.Sprintf("%06d", binCode%1000000), nil
}

// Remaining returns how long the code valid at the given time stays valid.
func Remaining(at time.Time) time.Duration {
	return Period - time.Duration(at.UnixNano()%int64(Period))
}

func normalizeCode(code string) string {
	return strings.TrimSpace(strings.ReplaceAll(code, " ", ""))
}

func validCode(code string) bool {
	if len(code) != Digits {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Verify reports whether code matches the key at now, allowing one period of
// clock skew either way.
func Verify(key []byte, code string, now time.Time) bool {
	code = normalizeCode(code)
	if !validCode(code) {
		return false
	}
	for i := -window; i <= window; i++ {
		expected, err := Code(key, now.Add(time.Duration(i)*Period))
		if err != nil {
			return false
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return true
		}
	}
	return false
}

// AuthURL returns an otpauth:// URL for enrolling key in an authenticator.
func AuthURL(key []byte, issuer, account string) string {
	label := url.PathEscape(issuer + ":" + account)
	values := url.Values{}
	values.Set("secret", EncodeKey(key))
	values.Set("issuer", issuer)
	values.Set("algorithm", "SHA1")
	values.Set("digits", strconv.Itoa(Digits))
	values.Set("period", strconv.Itoa(int(Period/time.Second)))
	return "otpauth://totp/" + label + "?" + values.Encode()
}
