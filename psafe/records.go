package psafe

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jmcleod/bimil/protect"
)

// RecordCollection is the ordered list of records belonging to an entry.
type RecordCollection struct {
	entry *Entry
	items []*Record
}

func (c *RecordCollection) state() *docState {
	if c.entry == nil {
		return nil
	}
	return c.entry.state
}

func (c *RecordCollection) keyring() *protect.Keyring {
	return c.entry.keyring
}

func (c *RecordCollection) readOnly() bool {
	s := c.state()
	return s != nil && s.readOnly
}

func (c *RecordCollection) Len() int {
	return len(c.items)
}

// At returns the record at index i.
func (c *RecordCollection) At(i int) *Record {
	return c.items[i]
}

// Records returns a snapshot of the collection.
func (c *RecordCollection) Records() []*Record {
	return slices.Clone(c.items)
}

func (c *RecordCollection) IndexOf(r *Record) int {
	return slices.Index(c.items, r)
}

func (c *RecordCollection) Contains(r *Record) bool {
	return c.IndexOf(r) >= 0
}

// Has reports whether a record of type t is present.
func (c *RecordCollection) Has(t RecordType) bool {
	_, ok := c.Lookup(t)
	return ok
}

// Lookup returns the first record of type t without creating one.
func (c *RecordCollection) Lookup(t RecordType) (*Record, bool) {
	for _, r := range c.items {
		if r.recordType == t {
			return r, true
		}
	}
	return nil, false
}

// Get returns the first record of type t. A missing record is created and
// inserted in type order. In a read-only document a detached record is
// returned instead and the collection is left untouched.
func (c *RecordCollection) Get(t RecordType) (*Record, error) {
	if r, ok := c.Lookup(t); ok {
		return r, nil
	}
	r, err := newRecord(t, c.keyring())
	if err != nil {
		return nil, err
	}
	if c.readOnly() {
		return r, nil
	}
	i := slices.IndexFunc(c.items, func(x *Record) bool { return x.recordType > t })
	if i < 0 {
		i = len(c.items)
	}
	r.owner = c
	c.items = slices.Insert(c.items, i, r)
	return r, nil
}

func (c *RecordCollection) checkAdd(r *Record) error {
	if r == nil {
		return ErrNilItem
	}
	if r.owner != nil {
		return ErrOwnership
	}
	if c.readOnly() {
		return ErrReadOnly
	}
	return nil
}

// Add appends r. The record must not belong to another collection.
func (c *RecordCollection) Add(r *Record) error {
	if err := c.checkAdd(r); err != nil {
		return err
	}
	c.items = append(c.items, r)
	r.owner = c
	c.markChanged(r.recordType)
	return nil
}

func (c *RecordCollection) Insert(i int, r *Record) error {
	if err := c.checkAdd(r); err != nil {
		return err
	}
	if i < 0 || i > len(c.items) {
		return fmt.Errorf("%w: index %d", ErrOutOfRange, i)
	}
	c.items = slices.Insert(c.items, i, r)
	r.owner = c
	c.markChanged(r.recordType)
	return nil
}

// Set replaces the record at index i.
func (c *RecordCollection) Set(i int, r *Record) error {
	if err := c.checkAdd(r); err != nil {
		return err
	}
	if i < 0 || i >= len(c.items) {
		return fmt.Errorf("%w: index %d", ErrOutOfRange, i)
	}
	c.items[i].owner = nil
	c.items[i] = r
	r.owner = c
	c.markChanged(r.recordType)
	return nil
}

// Remove detaches r and reports whether it was present.
func (c *RecordCollection) Remove(r *Record) (bool, error) {
	if r == nil {
		return false, ErrNilItem
	}
	if c.readOnly() {
		return false, ErrReadOnly
	}
	i := c.IndexOf(r)
	if i < 0 {
		return false, nil
	}
	return true, c.RemoveAt(i)
}

// RemoveType removes the first record of type t.
func (c *RecordCollection) RemoveType(t RecordType) (bool, error) {
	if c.readOnly() {
		return false, ErrReadOnly
	}
	r, ok := c.Lookup(t)
	if !ok {
		return false, nil
	}
	return c.Remove(r)
}

func (c *RecordCollection) RemoveAt(i int) error {
	if c.readOnly() {
		return ErrReadOnly
	}
	if i < 0 || i >= len(c.items) {
		return fmt.Errorf("%w: index %d", ErrOutOfRange, i)
	}
	r := c.items[i]
	c.items = slices.Delete(c.items, i, i+1)
	r.owner = nil
	c.markChanged(r.recordType)
	return nil
}

// Clear removes every record.
func (c *RecordCollection) Clear() error {
	if c.readOnly() {
		return ErrReadOnly
	}
	for _, r := range c.items {
		r.owner = nil
	}
	c.items = nil
	if s := c.state(); s != nil {
		s.markChanged()
	}
	return nil
}

// attach adopts records read from storage without change notification.
func (c *RecordCollection) attach(records []*Record) {
	for _, r := range records {
		r.owner = c
	}
	c.items = append(c.items, records...)
}

func (c *RecordCollection) markChanged(t RecordType) {
	s := c.state()
	if s == nil {
		return
	}
	s.markChanged()
	if len(c.items) == 0 || s.readOnly || !s.trackModify || t.autoTimestamp() {
		return
	}
	now := s.timestamp()
	stamp := RecordLastModificationTime
	if !c.Has(RecordCreationTime) {
		stamp = RecordCreationTime
	}
	c.stamp(stamp, now)
	if t == RecordPassword {
		c.stamp(RecordPasswordModificationTime, now)
	}
}

func (c *RecordCollection) markAccessed(t RecordType) {
	s := c.state()
	if s == nil || s.readOnly || !s.trackAccess {
		return
	}
	switch t {
	case RecordUUID, RecordGroup, RecordTitle:
		return
	}
	if t.autoTimestamp() {
		return
	}
	c.stamp(RecordLastAccessTime, s.timestamp())
}

func (c *RecordCollection) stamp(t RecordType, now time.Time) {
	r, err := c.Get(t)
	if err == nil {
		err = r.SetTime(now)
	}
	if err != nil {
		slog.Warn("failed to update entry timestamp", slog.String("record", t.String()), "error", err)
	}
}

// rememberPassword appends the current password to the entry's history
// before it is replaced by next.
func (c *RecordCollection) rememberPassword(r *Record, next string) error {
	if !c.Has(RecordPasswordHistory) || !c.Has(RecordPassword) {
		return nil
	}
	current := r.textSilently()
	if current == next {
		return nil
	}
	history := newPasswordHistory(c)
	if !history.Enabled() {
		return nil
	}
	firstUsed := time.Time{}
	if m, ok := c.Lookup(RecordPasswordModificationTime); ok {
		firstUsed = m.timeSilently()
	}
	if firstUsed.IsZero() {
		if s := c.state(); s != nil {
			firstUsed = s.timestamp()
		} else {
			firstUsed = time.Now().UTC().Truncate(time.Second)
		}
	}
	return history.add(firstUsed, current)
}
