package psafe

import (
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"

	"github.com/jmcleod/bimil/internal/util"
	"github.com/jmcleod/bimil/protect"
)

// DefaultApplication is recorded as the application that last saved a document.
const DefaultApplication = "bimil V1.00"

// Document is an in-memory password safe: headers plus an ordered entry
// collection, protected by a passphrase.
type Document struct {
	state       *docState
	keyring     *protect.Keyring
	kdf         util.Argon2idParams
	application string
	passphrase  *memguard.Enclave
	destroyed   bool

	headers *HeaderCollection
	entries *EntryCollection
}

// New returns an empty document protected by passphrase. The passphrase
// buffer is copied and may be wiped by the caller afterwards.
func New(passphrase []byte, opts ...Option) (*Document, error) {
	o := newOptions(opts)
	id := uuid.New()
	idHeader, err := newHeaderRaw(HeaderUUID, o.keyring, id[:])
	if err != nil {
		return nil, err
	}
	return newDocument(o, passphrase, []*Header{idHeader}, nil)
}

func newDocument(o *options, passphrase []byte, headers []*Header, entries []*Entry) (*Document, error) {
	state := newDocState(o)
	hc, err := newHeaderCollection(state, o.keyring, headers)
	if err != nil {
		return nil, err
	}
	d := &Document{
		state:       state,
		keyring:     o.keyring,
		kdf:         o.kdf,
		application: o.application,
		headers:     hc,
		entries:     &EntryCollection{state: state, keyring: o.keyring},
	}
	d.entries.attach(entries)
	d.setPassphrase(passphrase)
	return d, nil
}

func (d *Document) setPassphrase(passphrase []byte) {
	normalized := util.NormalizeBytes(passphrase)
	if len(normalized) == 0 {
		d.passphrase = nil
		return
	}
	// NewEnclave wipes its input.
	d.passphrase = memguard.NewEnclave(normalized)
}

// Headers returns the document headers.
func (d *Document) Headers() *HeaderCollection {
	return d.headers
}

// Entries returns the document entries.
func (d *Document) Entries() *EntryCollection {
	return d.entries
}

func (d *Document) IsReadOnly() bool {
	return d.state.readOnly
}

func (d *Document) SetReadOnly(readOnly bool) {
	d.state.readOnly = readOnly
}

// TrackAccess reports whether reads update entries' last access time.
func (d *Document) TrackAccess() bool {
	return d.state.trackAccess
}

func (d *Document) SetTrackAccess(track bool) {
	d.state.trackAccess = track
}

// TrackModify reports whether changes update entries' creation and
// modification times and the document's save headers.
func (d *Document) TrackModify() bool {
	return d.state.trackModify
}

func (d *Document) SetTrackModify(track bool) {
	d.state.trackModify = track
}

// HasChanged reports whether the document changed since it was created,
// loaded or last saved.
func (d *Document) HasChanged() bool {
	return d.state.changed
}

func (d *Document) headerText(t HeaderType) string {
	h, ok := d.headers.Lookup(t)
	if !ok {
		return ""
	}
	s, _ := h.Text()
	return s
}

func (d *Document) setHeaderText(t HeaderType, s string) error {
	if d.state.readOnly {
		return ErrReadOnly
	}
	return d.headers.Get(t).SetText(s)
}

// Version returns the format version header.
func (d *Document) Version() int {
	v, _ := d.headers.At(0).Version()
	return v
}

func (d *Document) SetVersion(v int) error {
	return d.headers.At(0).SetVersion(v)
}

func (d *Document) UUID() uuid.UUID {
	h, ok := d.headers.Lookup(HeaderUUID)
	if !ok {
		return uuid.Nil
	}
	id, _ := h.UUID()
	return id
}

func (d *Document) SetUUID(id uuid.UUID) error {
	if d.state.readOnly {
		return ErrReadOnly
	}
	return d.headers.Get(HeaderUUID).SetUUID(id)
}

func (d *Document) LastSaveTime() time.Time {
	h, ok := d.headers.Lookup(HeaderTimestampOfLastSave)
	if !ok {
		return time.Time{}
	}
	t, _ := h.Time()
	return t
}

func (d *Document) LastSaveApplication() string {
	return d.headerText(HeaderWhatPerformedLastSave)
}

func (d *Document) LastSaveUser() string {
	return d.headerText(HeaderLastSavedByUser)
}

func (d *Document) LastSaveHost() string {
	return d.headerText(HeaderLastSavedOnHost)
}

func (d *Document) Name() string {
	return d.headerText(HeaderDatabaseName)
}

func (d *Document) SetName(s string) error {
	return d.setHeaderText(HeaderDatabaseName, s)
}

func (d *Document) Description() string {
	return d.headerText(HeaderDatabaseDescription)
}

func (d *Document) SetDescription(s string) error {
	return d.setHeaderText(HeaderDatabaseDescription, s)
}

// Passphrase returns a copy of the normalized passphrase. The caller should
// wipe it when done.
func (d *Document) Passphrase() ([]byte, error) {
	if d.destroyed {
		return nil, ErrDestroyed
	}
	if d.passphrase == nil {
		return []byte{}, nil
	}
	buf, err := d.passphrase.Open()
	if err != nil {
		return nil, fmt.Errorf("opening passphrase enclave: %w", err)
	}
	defer buf.Destroy()
	return util.CopyBytes(buf.Bytes()), nil
}

// ValidatePassphrase reports whether passphrase matches the document's.
func (d *Document) ValidatePassphrase(passphrase []byte) bool {
	current, err := d.Passphrase()
	if err != nil {
		return false
	}
	defer util.WipeBytes(current)
	candidate := util.NormalizeBytes(passphrase)
	defer util.WipeBytes(candidate)
	return util.EqualBytes(current, candidate)
}

// ChangePassphrase replaces the passphrase used by subsequent saves.
func (d *Document) ChangePassphrase(passphrase []byte) error {
	if d.destroyed {
		return ErrDestroyed
	}
	if d.state.readOnly {
		return ErrReadOnly
	}
	d.setPassphrase(passphrase)
	d.state.markChanged()
	return nil
}

// TryChangePassphrase changes the passphrase only when old matches.
func (d *Document) TryChangePassphrase(old, passphrase []byte) (bool, error) {
	if !d.ValidatePassphrase(old) {
		return false, nil
	}
	if err := d.ChangePassphrase(passphrase); err != nil {
		return false, err
	}
	return true, nil
}

// Destroy releases the passphrase. The document cannot be saved afterwards.
func (d *Document) Destroy() {
	d.passphrase = nil
	d.destroyed = true
}

// stampSave records who saved the document and when.
func (d *Document) stampSave() {
	if d.state.readOnly || !d.state.trackModify {
		return
	}
	now := d.state.timestamp()
	stamps := []struct {
		t   HeaderType
		set func(h *Header) error
	}{
		{HeaderTimestampOfLastSave, func(h *Header) error { return h.SetTime(now) }},
		{HeaderWhatPerformedLastSave, func(h *Header) error { return h.SetText(d.application) }},
		{HeaderLastSavedByUser, func(h *Header) error { return h.SetText(currentUser()) }},
		{HeaderLastSavedOnHost, func(h *Header) error { return h.SetText(currentHost()) }},
	}
	for _, s := range stamps {
		if err := s.set(d.headers.Get(s.t)); err != nil {
			slog.Warn("failed to stamp save header", slog.String("header", s.t.String()), "error", err)
		}
	}
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

func currentHost() string {
	host, err := os.Hostname()
	if err != nil {
		return ""
	}
	return host
}
