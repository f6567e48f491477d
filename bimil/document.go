// Package bimil reads and writes the legacy Bimil container.
//
// A container is a 16-byte salt followed by one AES-128-CBC ciphertext. The
// key and IV are derived from the password with PBKDF2-HMAC-SHA1 over the
// salt. The plaintext is framed by the literal "A128" at both ends; between
// them every item is stored as a big-endian length and its payload. Inside
// an item each key and value is encrypted again with the same key, so
// decrypted documents still hold only ciphertext in memory.
//
// The trailing "A128" is the format's only integrity check. It detects gross
// corruption, not deliberate tampering.
package bimil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/bimil/internal/util"
)

const (
	saltSize   = 16
	keySize    = util.LegacyKeySize
	ivSize     = 16
	iterations = 4096
)

var identifier = []byte("A128")

// Document is an open legacy container.
type Document struct {
	rand     io.Reader
	salt     []byte
	material *memguard.Enclave // key || iv
	items    []*Item
}

// New returns an empty document protected by password.
func New(password []byte, opts ...Option) (*Document, error) {
	o := newOptions(opts)
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(o.rand, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return newDocument(o, password, salt), nil
}

func newDocument(o *options, password, salt []byte) *Document {
	// NewEnclave wipes the derived material.
	material := util.DerivePBKDF2SHA1(password, salt, iterations, keySize+ivSize)
	return &Document{
		rand:     o.rand,
		salt:     salt,
		material: memguard.NewEnclave(material),
	}
}

func (d *Document) withKey(fn func(key, iv []byte) error) error {
	if d.material == nil {
		return ErrClosed
	}
	buf, err := d.material.Open()
	if err != nil {
		return fmt.Errorf("opening key enclave: %w", err)
	}
	defer buf.Destroy()
	m := buf.Bytes()
	return fn(m[:keySize], m[keySize:])
}

func (d *Document) encrypt(plain []byte) ([]byte, error) {
	var out []byte
	err := d.withKey(func(key, iv []byte) error {
		var err error
		out, err = util.EncryptCBC(plain, key, iv)
		return err
	})
	return out, err
}

func (d *Document) decrypt(cipherText []byte) ([]byte, error) {
	var out []byte
	err := d.withKey(func(key, iv []byte) error {
		var err error
		out, err = util.DecryptCBC(cipherText, key, iv)
		return err
	})
	return out, err
}

// Items returns the document's items in order.
func (d *Document) Items() []*Item {
	return slices.Clone(d.items)
}

// AddItem appends a new item with the given name.
func (d *Document) AddItem(name string, iconIndex int) (*Item, error) {
	if d.material == nil {
		return nil, ErrClosed
	}
	it := &Item{doc: d, iconIndex: iconIndex}
	r, err := it.NameRecord()
	if err != nil {
		return nil, err
	}
	if err := r.Value.SetText(name); err != nil {
		return nil, err
	}
	d.items = append(d.items, it)
	return it, nil
}

// RemoveItem removes it and reports whether it was present.
func (d *Document) RemoveItem(it *Item) bool {
	i := slices.Index(d.items, it)
	if i < 0 {
		return false
	}
	d.items = slices.Delete(d.items, i, i+1)
	return true
}

// Close drops the key enclave. The document cannot be read or saved
// afterwards.
func (d *Document) Close() {
	d.material = nil
}

func (d *Document) marshal() []byte {
	b := slices.Clone(identifier)
	for _, it := range d.items {
		payload := it.marshal()
		b = binary.BigEndian.AppendUint32(b, uint32(len(payload)))
		b = append(b, payload...)
	}
	return append(b, identifier...)
}

// Save writes the document to w. Nothing is written unless encryption
// succeeds.
func (d *Document) Save(w io.Writer) error {
	plain := d.marshal()
	defer util.WipeBytes(plain)
	cipherText, err := d.encrypt(plain)
	if err != nil {
		return err
	}
	out := append(slices.Clone(d.salt), cipherText...)
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("writing document: %w", err)
	}
	return nil
}

// SaveWithPassword writes a copy of the document protected by another
// password. The document itself keeps its password.
func (d *Document) SaveWithPassword(w io.Writer, password []byte) error {
	if d.material == nil {
		return ErrClosed
	}
	copyDoc, err := New(password, WithRand(d.rand))
	if err != nil {
		return err
	}
	defer copyDoc.Close()
	for _, it := range d.items {
		dst := &Item{doc: copyDoc, iconIndex: it.iconIndex}
		for _, r := range it.records {
			key, err := r.Key.Text()
			if err != nil {
				return err
			}
			value, err := r.Value.Text()
			if err != nil {
				return err
			}
			if _, err := dst.AddRecord(key, value, r.Format); err != nil {
				return err
			}
		}
		copyDoc.items = append(copyDoc.items, dst)
	}
	return copyDoc.Save(w)
}

// SaveFile writes the document to path, replacing any existing file only
// after the new content is fully written.
func (d *Document) SaveFile(path string) error {
	var buf bytes.Buffer
	if err := d.Save(&buf); err != nil {
		return err
	}
	return writeFileAtomic(path, buf.Bytes())
}

func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".bimil-*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Open reads a container from r. Every failure is reported as
// ErrCannotParse.
func Open(r io.Reader, password []byte, opts ...Option) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	d, err := parse(newOptions(opts), data, password)
	if err != nil {
		slog.Debug("legacy document rejected", "error", err)
		return nil, ErrCannotParse
	}
	return d, nil
}

// OpenFile opens the container stored at path.
func OpenFile(path string, password []byte, opts ...Option) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Open(f, password, opts...)
}

func parse(o *options, data, password []byte) (*Document, error) {
	if len(data) < saltSize {
		return nil, fmt.Errorf("%w: missing salt", errLengthOverflow)
	}
	d := newDocument(o, password, slices.Clone(data[:saltSize]))

	plain, err := d.decrypt(data[saltSize:])
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(plain)

	if len(plain) < 2*len(identifier) || !bytes.Equal(plain[:4], identifier) {
		return nil, errPrimaryIdentifier
	}
	end := len(plain) - len(identifier)
	if !bytes.Equal(plain[end:], identifier) {
		return nil, errSecondaryIdentifier
	}

	for pos := len(identifier); pos < end; {
		if end-pos < 4 {
			return nil, errLengthOverflow
		}
		n := int64(int32(binary.BigEndian.Uint32(plain[pos:])))
		pos += 4
		if n < 0 || n > int64(end-pos) {
			return nil, errLengthOverflow
		}
		it, err := parseItem(d, plain[pos:pos+int(n)])
		if err != nil {
			return nil, err
		}
		d.items = append(d.items, it)
		pos += int(n)
	}
	return d, nil
}
