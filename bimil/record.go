package bimil

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/jmcleod/bimil/internal/util"
)

// RecordFormat tells a reader how a record's value should be presented.
type RecordFormat int32

const (
	FormatSystem         RecordFormat = 0
	FormatText           RecordFormat = 10
	FormatMultilineText  RecordFormat = 11
	FormatMonospacedText RecordFormat = 12
	FormatURL            RecordFormat = 20
	FormatPassword       RecordFormat = 30
)

func (f RecordFormat) String() string {
	switch f {
	case FormatSystem:
		return "System"
	case FormatText:
		return "Text"
	case FormatMultilineText:
		return "MultilineText"
	case FormatMonospacedText:
		return "MonospacedText"
	case FormatURL:
		return "Url"
	case FormatPassword:
		return "Password"
	default:
		return fmt.Sprintf("RecordFormat(%d)", int32(f))
	}
}

const valueSaltSize = 16

// Value is a text cell kept encrypted under the document key. Each
// encryption is prefixed with fresh random bytes so equal texts never share
// ciphertext.
type Value struct {
	doc  *Document
	data []byte
}

// Text decrypts the value.
func (v *Value) Text() (string, error) {
	plain, err := v.doc.decrypt(v.data)
	if err != nil {
		return "", err
	}
	defer util.WipeBytes(plain)
	if len(plain) < valueSaltSize {
		return "", fmt.Errorf("value shorter than its salt")
	}
	return string(plain[valueSaltSize:]), nil
}

// SetText re-salts and re-encrypts s, even when s equals the current text.
func (v *Value) SetText(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("value is not valid UTF-8")
	}
	buf := make([]byte, valueSaltSize+len(s))
	defer util.WipeBytes(buf)
	if _, err := io.ReadFull(v.doc.rand, buf[:valueSaltSize]); err != nil {
		return fmt.Errorf("generating value salt: %w", err)
	}
	copy(buf[valueSaltSize:], s)
	data, err := v.doc.encrypt(buf)
	if err != nil {
		return err
	}
	v.data = data
	return nil
}

// Bytes returns a copy of the ciphertext.
func (v *Value) Bytes() []byte {
	return util.CopyBytes(v.data)
}

func (v *Value) String() string {
	s, err := v.Text()
	if err != nil {
		return ""
	}
	return s
}

// Record is a key/value pair of an item.
type Record struct {
	Key    *Value
	Value  *Value
	Format RecordFormat
}

func newRecord(d *Document, key, value string, format RecordFormat) (*Record, error) {
	r := &Record{Key: &Value{doc: d}, Value: &Value{doc: d}, Format: format}
	if err := r.Key.SetText(key); err != nil {
		return nil, err
	}
	if err := r.Value.SetText(value); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Record) String() string {
	return r.Key.String()
}
