package bimil

import "errors"

var (
	// ErrCannotParse is returned by Open for every failure: wrong password,
	// corrupted bytes and malformed framing are not distinguished.
	ErrCannotParse = errors.New("cannot parse document")
	// ErrClosed is returned after Close has wiped the document key.
	ErrClosed = errors.New("document closed")
)

var (
	errPrimaryIdentifier   = errors.New("invalid primary identifier")
	errSecondaryIdentifier = errors.New("invalid secondary identifier")
	errItemSize            = errors.New("invalid buffer size")
	errItemContent         = errors.New("invalid buffer content")
	errLengthOverflow      = errors.New("length exceeds buffer")
)
