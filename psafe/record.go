package psafe

import (
	"github.com/jmcleod/bimil/internal/util"
	"github.com/jmcleod/bimil/protect"
)

// DefaultAutotype is the template given to newly created Autotype records.
const DefaultAutotype = `\u\t\p\n`

// Record is a typed field belonging to an entry.
type Record struct {
	Field
	recordType RecordType
	owner      *RecordCollection
}

// NewRecord returns an empty, unowned record of type t.
func NewRecord(t RecordType, opts ...Option) (*Record, error) {
	o := newOptions(opts)
	return newRecord(t, o.keyring)
}

func newRecord(t RecordType, k *protect.Keyring) (*Record, error) {
	r := &Record{recordType: t}
	r.Field.init(k, r)
	if t == RecordAutotype {
		if err := r.Field.load([]byte(DefaultAutotype)); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func newRecordRaw(t RecordType, k *protect.Keyring, data []byte) (*Record, error) {
	r := &Record{recordType: t}
	r.Field.init(k, r)
	if err := r.Field.load(data); err != nil {
		return nil, err
	}
	return r, nil
}

// Type returns the record type.
func (r *Record) Type() RecordType {
	return r.recordType
}

// Owned reports whether the record belongs to a collection.
func (r *Record) Owned() bool {
	return r.owner != nil
}

// Clone returns an unowned copy holding the same value under fresh entropy.
func (r *Record) Clone() (*Record, error) {
	b := r.BytesSilently()
	defer util.WipeBytes(b)
	return newRecordRaw(r.recordType, r.keyring, b)
}

// SetText stores s. For a Password record in a collection with an enabled
// password history, the previous password is appended to the history first.
func (r *Record) SetText(s string) error {
	if r.recordType == RecordPassword && r.owner != nil && !r.readOnly() {
		if err := r.owner.rememberPassword(r, s); err != nil {
			return err
		}
	}
	return r.Field.SetText(s)
}

func (r *Record) String() string {
	return r.Field.String()
}

func (r *Record) dataType() DataType {
	return r.recordType.DataType()
}

func (r *Record) readOnly() bool {
	return r.owner != nil && r.owner.readOnly()
}

func (r *Record) markChanged() {
	if r.owner != nil {
		r.owner.markChanged(r.recordType)
	}
}

func (r *Record) markAccessed() {
	if r.owner != nil {
		r.owner.markAccessed(r.recordType)
	}
}
