package psafe

import "errors"

var (
	// ErrFormatMismatch indicates a typed accessor does not match the field's data type.
	ErrFormatMismatch = errors.New("field type mismatch")
	// ErrReadOnly indicates a mutation was attempted on a read-only document.
	ErrReadOnly = errors.New("object is read-only")
	// ErrOwnership indicates an item already belongs to a collection.
	ErrOwnership = errors.New("item cannot be in other collection")
	// ErrOutOfRange indicates a value or index outside the allowed range.
	ErrOutOfRange = errors.New("value out of range")
	// ErrNilItem indicates a nil entry, record or header was passed to a collection.
	ErrNilItem = errors.New("item cannot be nil")
	// ErrCannotParse indicates a container could not be opened. Wrong passphrases
	// and corrupted bytes are deliberately indistinguishable.
	ErrCannotParse = errors.New("cannot parse document")
	// ErrDestroyed indicates the document's passphrase has been released.
	ErrDestroyed = errors.New("document destroyed")
)
