package psafe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmcleod/bimil/internal/util"
	"github.com/jmcleod/bimil/storage"
)

const (
	saltSize      = 32
	endOfFieldSet = 0xFF
)

// marshalFields serializes headers and entries into the plaintext field
// stream: [uint32 LE length][type][data] per field, with 0xFF terminating
// the header block and each entry.
func (d *Document) marshalFields() []byte {
	var buf []byte
	appendField := func(t byte, data []byte) {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(data)))
		buf = append(buf, t)
		buf = append(buf, data...)
		util.WipeBytes(data)
	}
	for _, h := range d.headers.items {
		appendField(byte(h.headerType), h.BytesSilently())
	}
	appendField(endOfFieldSet, nil)
	for _, e := range d.entries.items {
		for _, r := range e.records.items {
			appendField(byte(r.recordType), r.BytesSilently())
		}
		appendField(endOfFieldSet, nil)
	}
	return buf
}

type rawField struct {
	t    byte
	data []byte
}

var errTruncatedField = errors.New("truncated field")

// parseFields splits a field stream into header fields and per-entry record
// fields. The returned data slices alias plain.
func parseFields(plain []byte) ([]rawField, [][]rawField, error) {
	var (
		headers []rawField
		entries [][]rawField
		current []rawField
		inBody  bool
	)
	for pos := 0; pos < len(plain); {
		if len(plain)-pos < 5 {
			return nil, nil, errTruncatedField
		}
		n := binary.LittleEndian.Uint32(plain[pos:])
		t := plain[pos+4]
		pos += 5
		if uint64(n) > uint64(len(plain)-pos) {
			return nil, nil, errTruncatedField
		}
		data := plain[pos : pos+int(n)]
		pos += int(n)

		switch {
		case !inBody && t == endOfFieldSet:
			inBody = true
		case !inBody:
			headers = append(headers, rawField{t: t, data: data})
		case t == endOfFieldSet:
			entries = append(entries, current)
			current = nil
		default:
			current = append(current, rawField{t: t, data: data})
		}
	}
	if !inBody {
		return nil, nil, errors.New("missing end of header")
	}
	if current != nil {
		return nil, nil, errors.New("missing end of entry")
	}
	return headers, entries, nil
}

// Seal serializes and encrypts the document under its current passphrase.
// Save headers are stamped first; HasChanged is left untouched.
func (d *Document) Seal() (*storage.Envelope, error) {
	passphrase, err := d.Passphrase()
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(passphrase)
	return d.seal(passphrase)
}

func (d *Document) seal(passphrase []byte) (*storage.Envelope, error) {
	if d.destroyed {
		return nil, ErrDestroyed
	}
	d.stampSave()

	plain := d.marshalFields()
	defer util.WipeBytes(plain)

	salt, err := util.RandomBytes(saltSize)
	if err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	key, err := util.DeriveArgon2idKey(passphrase, salt, d.kdf)
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	defer util.WipeBytes(key)

	header := storage.Envelope{Ver: 1, Scheme: storage.SchemeAESGCM, KDF: d.kdf, Salt: salt}
	env, err := storage.SealRecord(key, plain, header.AAD())
	if err != nil {
		return nil, fmt.Errorf("sealing document: %w", err)
	}
	env.KDF = d.kdf
	env.Salt = salt
	return env, nil
}

// Commit seals the document and hands the envelope to persist. HasChanged is
// cleared only when persist succeeds.
func (d *Document) Commit(persist func(env *storage.Envelope) error) error {
	env, err := d.Seal()
	if err != nil {
		return err
	}
	if err := persist(env); err != nil {
		return err
	}
	d.state.changed = false
	return nil
}

// Save writes the sealed document to w in a single write.
func (d *Document) Save(w io.Writer) error {
	return d.Commit(func(env *storage.Envelope) error {
		return writeEnvelope(w, env)
	})
}

// SaveAs writes the document sealed under a different passphrase. The
// document's own passphrase is unchanged.
func (d *Document) SaveAs(w io.Writer, passphrase []byte) error {
	normalized := util.NormalizeBytes(passphrase)
	defer util.WipeBytes(normalized)
	env, err := d.seal(normalized)
	if err != nil {
		return err
	}
	if err := writeEnvelope(w, env); err != nil {
		return err
	}
	d.state.changed = false
	return nil
}

func writeEnvelope(w io.Writer, env *storage.Envelope) error {
	data, err := env.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing document: %w", err)
	}
	return nil
}

// Load reads a sealed document from r.
func Load(r io.Reader, passphrase []byte, opts ...Option) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	var env storage.Envelope
	if err := env.UnmarshalBinary(data); err != nil {
		slog.Debug("document envelope rejected", "error", err)
		return nil, ErrCannotParse
	}
	return Open(&env, passphrase, opts...)
}

// Open decrypts a sealed envelope. Every failure, including a wrong
// passphrase, is reported as ErrCannotParse.
func Open(env *storage.Envelope, passphrase []byte, opts ...Option) (*Document, error) {
	doc, err := open(env, passphrase, opts)
	if err != nil {
		slog.Debug("document open failed", "error", err)
		return nil, ErrCannotParse
	}
	return doc, nil
}

func open(env *storage.Envelope, passphrase []byte, opts []Option) (*Document, error) {
	if err := util.ValidateArgon2idParams(env.KDF); err != nil {
		return nil, err
	}
	normalized := util.NormalizeBytes(passphrase)
	defer util.WipeBytes(normalized)
	key, err := util.DeriveArgon2idKey(normalized, env.Salt, env.KDF)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(key)

	plain, err := storage.OpenRecord(key, env, env.AAD())
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(plain)

	rawHeaders, rawEntries, err := parseFields(plain)
	if err != nil {
		return nil, err
	}

	o := newOptions(append([]Option{WithKDFParams(env.KDF)}, opts...))
	headers := make([]*Header, 0, len(rawHeaders))
	for _, f := range rawHeaders {
		h, err := newHeaderRaw(HeaderType(f.t), o.keyring, f.data)
		if err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	entries := make([]*Entry, 0, len(rawEntries))
	for _, fields := range rawEntries {
		records := make([]*Record, 0, len(fields))
		for _, f := range fields {
			r, err := newRecordRaw(RecordType(f.t), o.keyring, f.data)
			if err != nil {
				return nil, err
			}
			records = append(records, r)
		}
		entries = append(entries, newEntryFromRecords(o.keyring, records))
	}
	return newDocument(o, normalized, headers, entries)
}
