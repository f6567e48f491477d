package psafe

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jmcleod/bimil/internal/util"
	"github.com/jmcleod/bimil/protect"
)

// DataType describes how a field's bytes are interpreted.
type DataType int

const (
	DataUnknown DataType = iota
	DataVersion
	DataUUID
	DataText
	DataTime
	DataBinary
)

func (d DataType) String() string {
	switch d {
	case DataVersion:
		return "version"
	case DataUUID:
		return "uuid"
	case DataText:
		return "text"
	case DataTime:
		return "time"
	case DataBinary:
		return "binary"
	default:
		return "unknown"
	}
}

const timeLayout = "2006-01-02 15:04:05 -07:00"

var (
	unixEpoch = time.Unix(0, 0).UTC()
	maxTime   = unixEpoch.Add(time.Duration(math.MaxUint32) * time.Second)
)

// fieldOwner is implemented by the types that embed a Field.
type fieldOwner interface {
	dataType() DataType
	readOnly() bool
	markChanged()
	markAccessed()
}

// Field is a single protected value. Its plaintext only exists transiently
// while a getter or setter runs.
type Field struct {
	keyring *protect.Keyring
	owner   fieldOwner
	raw     []byte
	entropy [protect.EntropySize]byte
}

func (f *Field) init(k *protect.Keyring, owner fieldOwner) {
	f.keyring = k
	f.owner = owner
}

// DataType reports the interpretation of the field's bytes.
func (f *Field) DataType() DataType {
	return f.owner.dataType()
}

// IsEmpty reports whether the field holds no bytes.
func (f *Field) IsEmpty() bool {
	return len(f.raw) == 0
}

// plain decrypts the current value without notifying the owner. The caller
// owns the returned buffer and must wipe it.
func (f *Field) plain() ([]byte, error) {
	if f.raw == nil {
		return []byte{}, nil
	}
	return f.keyring.Unprotect(f.raw, f.entropy[:])
}

// plainOrEmpty is plain for readers that cannot report an error.
func (f *Field) plainOrEmpty() []byte {
	b, err := f.plain()
	if err != nil {
		return []byte{}
	}
	return b
}

func (f *Field) read() []byte {
	f.owner.markAccessed()
	return f.plainOrEmpty()
}

// load protects data as the initial value without change notification.
func (f *Field) load(data []byte) error {
	if len(data) == 0 {
		f.raw = nil
		return nil
	}
	var entropy [protect.EntropySize]byte
	if err := util.FillRandom(entropy[:]); err != nil {
		return err
	}
	sealed, err := f.keyring.Protect(data, entropy[:])
	if err != nil {
		return err
	}
	f.raw, f.entropy = sealed, entropy
	return nil
}

// write stores value, taking ownership of the buffer and wiping it afterwards.
func (f *Field) write(value []byte) error {
	defer util.WipeBytes(value)
	if f.owner.readOnly() {
		return ErrReadOnly
	}
	current, err := f.plain()
	if err != nil {
		return err
	}
	same := util.EqualBytes(current, value)
	util.WipeBytes(current)
	if same {
		return nil
	}
	if err := f.load(value); err != nil {
		return err
	}
	f.owner.markChanged()
	return nil
}

func (f *Field) checkSet(want DataType) error {
	if f.owner.readOnly() {
		return ErrReadOnly
	}
	if dt := f.DataType(); dt != want && dt != DataUnknown {
		return fmt.Errorf("%w: cannot set %s on %s field", ErrFormatMismatch, want, dt)
	}
	return nil
}

func (f *Field) checkGet(want DataType) error {
	if dt := f.DataType(); dt != want && dt != DataUnknown {
		return fmt.Errorf("%w: cannot read %s from %s field", ErrFormatMismatch, want, dt)
	}
	return nil
}

// Version returns the field as a 16-bit version number, or -1 if the bytes
// are not two bytes long.
func (f *Field) Version() (int, error) {
	if err := f.checkGet(DataVersion); err != nil {
		return -1, err
	}
	b := f.read()
	defer util.WipeBytes(b)
	return decodeVersion(b), nil
}

func decodeVersion(b []byte) int {
	if len(b) != 2 {
		return -1
	}
	return int(binary.LittleEndian.Uint16(b))
}

// SetVersion stores v as a little-endian uint16.
func (f *Field) SetVersion(v int) error {
	if err := f.checkSet(DataVersion); err != nil {
		return err
	}
	if v < 0 || v > math.MaxUint16 {
		return fmt.Errorf("%w: version %d", ErrOutOfRange, v)
	}
	return f.write(binary.LittleEndian.AppendUint16(nil, uint16(v)))
}

// UUID returns the field as a UUID, or uuid.Nil if it is not 16 bytes long.
func (f *Field) UUID() (uuid.UUID, error) {
	if err := f.checkGet(DataUUID); err != nil {
		return uuid.Nil, err
	}
	b := f.read()
	defer util.WipeBytes(b)
	return decodeUUID(b), nil
}

func decodeUUID(b []byte) uuid.UUID {
	if len(b) != 16 {
		return uuid.Nil
	}
	id, err := uuid.FromBytes(b)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func (f *Field) SetUUID(id uuid.UUID) error {
	if err := f.checkSet(DataUUID); err != nil {
		return err
	}
	b := make([]byte, 16)
	copy(b, id[:])
	return f.write(b)
}

// Text returns the field decoded as UTF-8.
func (f *Field) Text() (string, error) {
	if err := f.checkGet(DataText); err != nil {
		return "", err
	}
	b := f.read()
	defer util.WipeBytes(b)
	return string(b), nil
}

func (f *Field) textSilently() string {
	b := f.plainOrEmpty()
	defer util.WipeBytes(b)
	return string(b)
}

func (f *Field) SetText(s string) error {
	if err := f.checkSet(DataText); err != nil {
		return err
	}
	return f.write([]byte(s))
}

// Time returns the field as a UTC timestamp. Both the four byte binary form
// and the eight character hex form are accepted; anything else yields the
// zero time.
func (f *Field) Time() (time.Time, error) {
	if err := f.checkGet(DataTime); err != nil {
		return time.Time{}, err
	}
	b := f.read()
	defer util.WipeBytes(b)
	return decodeTime(b), nil
}

func (f *Field) timeSilently() time.Time {
	b := f.plainOrEmpty()
	defer util.WipeBytes(b)
	return decodeTime(b)
}

func decodeTime(b []byte) time.Time {
	switch len(b) {
	case 4:
		return time.Unix(int64(binary.LittleEndian.Uint32(b)), 0).UTC()
	case 8:
		secs, err := strconv.ParseUint(string(b), 16, 32)
		if err != nil {
			return time.Time{}
		}
		return time.Unix(int64(secs), 0).UTC()
	default:
		return time.Time{}
	}
}

// SetTime stores t as whole seconds since the Unix epoch.
func (f *Field) SetTime(t time.Time) error {
	if err := f.checkSet(DataTime); err != nil {
		return err
	}
	if t.Before(unixEpoch) || t.After(maxTime) {
		return fmt.Errorf("%w: time %s", ErrOutOfRange, t.Format(time.RFC3339))
	}
	return f.write(binary.LittleEndian.AppendUint32(nil, uint32(t.Unix())))
}

// Bytes returns a copy of the raw value.
func (f *Field) Bytes() []byte {
	return f.read()
}

// BytesSilently returns a copy of the raw value without updating the
// last access time.
func (f *Field) BytesSilently() []byte {
	return f.plainOrEmpty()
}

// SetBytes stores a copy of b. The caller keeps ownership of b.
func (f *Field) SetBytes(b []byte) error {
	if f.owner.readOnly() {
		return ErrReadOnly
	}
	return f.write(util.CopyBytes(b))
}

func (f *Field) String() string {
	b := f.plainOrEmpty()
	defer util.WipeBytes(b)
	switch f.DataType() {
	case DataVersion:
		if v := decodeVersion(b); v >= 0 {
			return fmt.Sprintf("%04X", v)
		}
	case DataUUID:
		return decodeUUID(b).String()
	case DataText:
		return string(b)
	case DataTime:
		if t := decodeTime(b); !t.IsZero() {
			return t.Local().Format(timeLayout)
		}
		return ""
	}
	return "0x" + strings.ToUpper(util.HexEncode(b))
}
