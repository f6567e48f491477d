package util

import (
	"cmp"
	"encoding/hex"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

func Normalize(s string) string {
	return norm.NFKD.String(s)
}

// NormalizeBytes applies NFKD normalization to UTF-8 passphrase bytes. The
// result never aliases b, so callers may wipe either buffer independently.
func NormalizeBytes(b []byte) []byte {
	return norm.NFKD.Append(make([]byte, 0, len(b)), b...)
}

func HexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

func HexDecode(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

// CompareFold orders a and b by the simple upper-case mapping of each rune.
func CompareFold(a, b string) int {
	for a != "" && b != "" {
		ra, na := utf8.DecodeRuneInString(a)
		rb, nb := utf8.DecodeRuneInString(b)
		if n := cmp.Compare(unicode.ToUpper(ra), unicode.ToUpper(rb)); n != 0 {
			return n
		}
		a, b = a[na:], b[nb:]
	}
	return cmp.Compare(len(a), len(b))
}

// EqualFold reports whether a and b are equal under CompareFold.
func EqualFold(a, b string) bool {
	return CompareFold(a, b) == 0
}
