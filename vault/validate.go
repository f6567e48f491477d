package vault

import (
	"unicode"
	"unicode/utf8"
)

// MaxNameLength bounds document and namespace names.
const MaxNameLength = 256

func validateName(name, label string) error {
	if name == "" {
		return validationErrorf("%s must not be empty", label)
	}
	if len(name) > MaxNameLength {
		return validationErrorf("%s exceeds maximum length of %d", label, MaxNameLength)
	}
	if !utf8.ValidString(name) {
		return validationErrorf("%s contains invalid UTF-8", label)
	}
	if len(name) >= 2 && name[:2] == "__" {
		return validationErrorf("%s must not start with %q", label, "__")
	}
	for _, r := range name {
		if r == ':' || r == '/' {
			return validationErrorf("%s contains forbidden character %q", label, r)
		}
		if unicode.IsControl(r) {
			return validationErrorf("%s contains control character", label)
		}
	}
	return nil
}
