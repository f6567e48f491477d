package psafe

import (
	"time"

	"github.com/google/uuid"

	"github.com/jmcleod/bimil/protect"
)

// Entry is a single password-safe item: an ordered set of records.
type Entry struct {
	records *RecordCollection
	keyring *protect.Keyring
	state   *docState
}

// NewEntry returns an unowned entry with a random UUID and empty Title and
// Password records.
func NewEntry(opts ...Option) (*Entry, error) {
	o := newOptions(opts)
	return newDefaultEntry(o.keyring)
}

// NewTitledEntry returns a new entry with the given title.
func NewTitledEntry(title string, opts ...Option) (*Entry, error) {
	e, err := NewEntry(opts...)
	if err != nil {
		return nil, err
	}
	if err := e.SetTitle(title); err != nil {
		return nil, err
	}
	return e, nil
}

// NewGroupedEntry returns a new entry with the given group and title.
func NewGroupedEntry(group GroupPath, title string, opts ...Option) (*Entry, error) {
	e, err := NewTitledEntry(title, opts...)
	if err != nil {
		return nil, err
	}
	if err := e.SetGroup(group); err != nil {
		return nil, err
	}
	return e, nil
}

func newDefaultEntry(k *protect.Keyring) (*Entry, error) {
	id := uuid.New()
	idRecord, err := newRecordRaw(RecordUUID, k, id[:])
	if err != nil {
		return nil, err
	}
	title, err := newRecordRaw(RecordTitle, k, nil)
	if err != nil {
		return nil, err
	}
	password, err := newRecordRaw(RecordPassword, k, nil)
	if err != nil {
		return nil, err
	}
	return newEntryFromRecords(k, []*Record{idRecord, title, password}), nil
}

func newEntryFromRecords(k *protect.Keyring, records []*Record) *Entry {
	e := &Entry{keyring: k}
	e.records = &RecordCollection{entry: e}
	e.records.attach(records)
	return e
}

// Records returns the entry's record collection.
func (e *Entry) Records() *RecordCollection {
	return e.records
}

// Record returns the record of type t, creating it when missing.
func (e *Entry) Record(t RecordType) (*Record, error) {
	return e.records.Get(t)
}

// RemoveRecord removes the first record of type t.
func (e *Entry) RemoveRecord(t RecordType) (bool, error) {
	return e.records.RemoveType(t)
}

// Owned reports whether the entry belongs to a document.
func (e *Entry) Owned() bool {
	return e.state != nil
}

func (e *Entry) readOnly() bool {
	return e.state != nil && e.state.readOnly
}

// Clone returns an unowned deep copy. The copy keeps the same UUID.
func (e *Entry) Clone() (*Entry, error) {
	records := make([]*Record, 0, e.records.Len())
	for _, r := range e.records.items {
		c, err := r.Clone()
		if err != nil {
			return nil, err
		}
		records = append(records, c)
	}
	return newEntryFromRecords(e.keyring, records), nil
}

func (e *Entry) String() string {
	return e.Title()
}

func (e *Entry) text(t RecordType) string {
	r, ok := e.records.Lookup(t)
	if !ok {
		return ""
	}
	s, _ := r.Text()
	return s
}

func (e *Entry) setText(t RecordType, s string) error {
	if e.readOnly() {
		return ErrReadOnly
	}
	r, err := e.records.Get(t)
	if err != nil {
		return err
	}
	return r.SetText(s)
}

func (e *Entry) timeOf(t RecordType) time.Time {
	r, ok := e.records.Lookup(t)
	if !ok {
		return time.Time{}
	}
	v, _ := r.Time()
	return v
}

func (e *Entry) setTime(t RecordType, v time.Time) error {
	if e.readOnly() {
		return ErrReadOnly
	}
	r, err := e.records.Get(t)
	if err != nil {
		return err
	}
	return r.SetTime(v)
}

func (e *Entry) UUID() uuid.UUID {
	r, ok := e.records.Lookup(RecordUUID)
	if !ok {
		return uuid.Nil
	}
	id, _ := r.UUID()
	return id
}

func (e *Entry) SetUUID(id uuid.UUID) error {
	if e.readOnly() {
		return ErrReadOnly
	}
	r, err := e.records.Get(RecordUUID)
	if err != nil {
		return err
	}
	return r.SetUUID(id)
}

func (e *Entry) Group() GroupPath {
	return GroupPath(e.text(RecordGroup))
}

func (e *Entry) SetGroup(g GroupPath) error {
	return e.setText(RecordGroup, string(g))
}

func (e *Entry) Title() string {
	return e.text(RecordTitle)
}

func (e *Entry) SetTitle(s string) error {
	return e.setText(RecordTitle, s)
}

func (e *Entry) UserName() string {
	return e.text(RecordUserName)
}

func (e *Entry) SetUserName(s string) error {
	return e.setText(RecordUserName, s)
}

func (e *Entry) Notes() string {
	return e.text(RecordNotes)
}

func (e *Entry) SetNotes(s string) error {
	return e.setText(RecordNotes, s)
}

func (e *Entry) Password() string {
	return e.text(RecordPassword)
}

// SetPassword replaces the password, recording the previous one when the
// entry's password history is enabled.
func (e *Entry) SetPassword(s string) error {
	return e.setText(RecordPassword, s)
}

func (e *Entry) URL() string {
	return e.text(RecordURL)
}

func (e *Entry) SetURL(s string) error {
	return e.setText(RecordURL, s)
}

func (e *Entry) Email() string {
	return e.text(RecordEmailAddress)
}

func (e *Entry) SetEmail(s string) error {
	return e.setText(RecordEmailAddress, s)
}

func (e *Entry) CreationTime() time.Time {
	return e.timeOf(RecordCreationTime)
}

func (e *Entry) SetCreationTime(t time.Time) error {
	return e.setTime(RecordCreationTime, t)
}

func (e *Entry) PasswordModificationTime() time.Time {
	return e.timeOf(RecordPasswordModificationTime)
}

func (e *Entry) SetPasswordModificationTime(t time.Time) error {
	return e.setTime(RecordPasswordModificationTime, t)
}

func (e *Entry) LastAccessTime() time.Time {
	return e.timeOf(RecordLastAccessTime)
}

func (e *Entry) SetLastAccessTime(t time.Time) error {
	return e.setTime(RecordLastAccessTime, t)
}

func (e *Entry) PasswordExpiryTime() time.Time {
	return e.timeOf(RecordPasswordExpiryTime)
}

func (e *Entry) SetPasswordExpiryTime(t time.Time) error {
	return e.setTime(RecordPasswordExpiryTime, t)
}

func (e *Entry) LastModificationTime() time.Time {
	return e.timeOf(RecordLastModificationTime)
}

func (e *Entry) SetLastModificationTime(t time.Time) error {
	return e.setTime(RecordLastModificationTime, t)
}

// TwoFactorKey returns a copy of the raw two-factor secret.
func (e *Entry) TwoFactorKey() []byte {
	r, ok := e.records.Lookup(RecordTwoFactorKey)
	if !ok {
		return []byte{}
	}
	return r.Bytes()
}

func (e *Entry) SetTwoFactorKey(key []byte) error {
	if e.readOnly() {
		return ErrReadOnly
	}
	r, err := e.records.Get(RecordTwoFactorKey)
	if err != nil {
		return err
	}
	return r.SetBytes(key)
}

func (e *Entry) CreditCardNumber() string {
	return e.text(RecordCreditCardNumber)
}

func (e *Entry) SetCreditCardNumber(s string) error {
	return e.setText(RecordCreditCardNumber, s)
}

func (e *Entry) CreditCardExpiration() string {
	return e.text(RecordCreditCardExpiration)
}

func (e *Entry) SetCreditCardExpiration(s string) error {
	return e.setText(RecordCreditCardExpiration, s)
}

func (e *Entry) CreditCardVerificationValue() string {
	return e.text(RecordCreditCardVerificationValue)
}

func (e *Entry) SetCreditCardVerificationValue(s string) error {
	return e.setText(RecordCreditCardVerificationValue, s)
}

func (e *Entry) CreditCardPin() string {
	return e.text(RecordCreditCardPin)
}

func (e *Entry) SetCreditCardPin(s string) error {
	return e.setText(RecordCreditCardPin, s)
}

func (e *Entry) QRCode() string {
	return e.text(RecordQRCode)
}

func (e *Entry) SetQRCode(s string) error {
	return e.setText(RecordQRCode, s)
}

// Autotype returns the entry's autotype template, or "" when none is set.
func (e *Entry) Autotype() string {
	return e.text(RecordAutotype)
}

func (e *Entry) SetAutotype(s string) error {
	return e.setText(RecordAutotype, s)
}

func (e *Entry) PasswordPolicyName() string {
	return e.text(RecordPasswordPolicyName)
}

func (e *Entry) SetPasswordPolicyName(s string) error {
	return e.setText(RecordPasswordPolicyName, s)
}

// PasswordHistory returns a view over the entry's password history record.
func (e *Entry) PasswordHistory() *PasswordHistory {
	return newPasswordHistory(e.records)
}

// PasswordPolicy returns a view over the entry's password policy records.
func (e *Entry) PasswordPolicy() *PasswordPolicy {
	return newEntryPasswordPolicy(e.records)
}

// AutotypeTokens expands the entry's autotype template against its own
// values.
func (e *Entry) AutotypeTokens() []AutotypeToken {
	return ExpandAutotype(ParseAutotype(e.Autotype()), e)
}

