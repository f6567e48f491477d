package psafe

import (
	"fmt"
	"slices"

	"github.com/jmcleod/bimil/internal/util"
	"github.com/jmcleod/bimil/protect"
)

// LookupStatus reports how GetOrCreate resolved a title.
type LookupStatus int

const (
	// LookupFound means an existing entry matched.
	LookupFound LookupStatus = iota
	// LookupCreated means a new entry was appended to the collection.
	LookupCreated
	// LookupDeniedReadOnly means nothing matched and the document is
	// read-only; the returned entry is a detached placeholder.
	LookupDeniedReadOnly
)

func (s LookupStatus) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupCreated:
		return "created"
	case LookupDeniedReadOnly:
		return "denied-read-only"
	default:
		return fmt.Sprintf("LookupStatus(%d)", int(s))
	}
}

// Lookup is the result of GetOrCreate.
type Lookup struct {
	Entry  *Entry
	Status LookupStatus
}

// EntryCollection is the ordered list of entries owned by a document.
type EntryCollection struct {
	state   *docState
	keyring *protect.Keyring
	items   []*Entry
}

func (c *EntryCollection) Len() int {
	return len(c.items)
}

func (c *EntryCollection) At(i int) *Entry {
	return c.items[i]
}

// Entries returns a snapshot of the collection.
func (c *EntryCollection) Entries() []*Entry {
	return slices.Clone(c.items)
}

func (c *EntryCollection) IndexOf(e *Entry) int {
	return slices.Index(c.items, e)
}

func (c *EntryCollection) Contains(e *Entry) bool {
	return c.IndexOf(e) >= 0
}

func (c *EntryCollection) checkAdd(e *Entry) error {
	if e == nil {
		return ErrNilItem
	}
	if e.Owned() {
		return ErrOwnership
	}
	if c.state.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (c *EntryCollection) adopt(e *Entry) {
	e.state = c.state
}

// Add appends e to the collection. The entry must not belong to any
// document.
func (c *EntryCollection) Add(e *Entry) error {
	if err := c.checkAdd(e); err != nil {
		return err
	}
	c.items = append(c.items, e)
	c.adopt(e)
	c.state.markChanged()
	return nil
}

// AddRange appends every entry or none of them.
func (c *EntryCollection) AddRange(entries ...*Entry) error {
	if c.state.readOnly {
		return ErrReadOnly
	}
	for i, e := range entries {
		if err := c.checkAdd(e); err != nil {
			return err
		}
		if slices.Contains(entries[:i], e) {
			return ErrOwnership
		}
	}
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		c.adopt(e)
	}
	c.items = append(c.items, entries...)
	c.state.markChanged()
	return nil
}

func (c *EntryCollection) Insert(i int, e *Entry) error {
	if err := c.checkAdd(e); err != nil {
		return err
	}
	if i < 0 || i > len(c.items) {
		return fmt.Errorf("%w: index %d", ErrOutOfRange, i)
	}
	c.items = slices.Insert(c.items, i, e)
	c.adopt(e)
	c.state.markChanged()
	return nil
}

// Set replaces the entry at index i; the replaced entry becomes unowned.
func (c *EntryCollection) Set(i int, e *Entry) error {
	if err := c.checkAdd(e); err != nil {
		return err
	}
	if i < 0 || i >= len(c.items) {
		return fmt.Errorf("%w: index %d", ErrOutOfRange, i)
	}
	c.items[i].state = nil
	c.items[i] = e
	c.adopt(e)
	c.state.markChanged()
	return nil
}

// Remove detaches e and reports whether it was present.
func (c *EntryCollection) Remove(e *Entry) (bool, error) {
	if e == nil {
		return false, ErrNilItem
	}
	if c.state.readOnly {
		return false, ErrReadOnly
	}
	i := c.IndexOf(e)
	if i < 0 {
		return false, nil
	}
	return true, c.RemoveAt(i)
}

func (c *EntryCollection) RemoveAt(i int) error {
	if c.state.readOnly {
		return ErrReadOnly
	}
	if i < 0 || i >= len(c.items) {
		return fmt.Errorf("%w: index %d", ErrOutOfRange, i)
	}
	c.items[i].state = nil
	c.items = slices.Delete(c.items, i, i+1)
	c.state.markChanged()
	return nil
}

func (c *EntryCollection) Clear() error {
	if c.state.readOnly {
		return ErrReadOnly
	}
	for _, e := range c.items {
		e.state = nil
	}
	c.items = nil
	c.state.markChanged()
	return nil
}

// attach adopts entries read from storage without change notification.
func (c *EntryCollection) attach(entries []*Entry) {
	for _, e := range entries {
		c.adopt(e)
	}
	c.items = append(c.items, entries...)
}

// Find returns the first entry whose title matches case-insensitively.
func (c *EntryCollection) Find(title string) (*Entry, bool) {
	for _, e := range c.items {
		if util.EqualFold(e.Title(), title) {
			return e, true
		}
	}
	return nil, false
}

// FindInGroup returns the first entry matching both group and title.
func (c *EntryCollection) FindInGroup(group GroupPath, title string) (*Entry, bool) {
	for _, e := range c.items {
		if e.Group().Equal(group) && util.EqualFold(e.Title(), title) {
			return e, true
		}
	}
	return nil, false
}

func (c *EntryCollection) HasTitle(title string) bool {
	_, ok := c.Find(title)
	return ok
}

func (c *EntryCollection) HasGroupTitle(group GroupPath, title string) bool {
	_, ok := c.FindInGroup(group, title)
	return ok
}

// GetOrCreate returns the entry titled title, appending a new one when none
// matches. A read-only document yields a detached placeholder instead.
func (c *EntryCollection) GetOrCreate(title string) (Lookup, error) {
	if e, ok := c.Find(title); ok {
		return Lookup{Entry: e, Status: LookupFound}, nil
	}
	return c.create("", title)
}

// GetOrCreateInGroup is GetOrCreate scoped to a group.
func (c *EntryCollection) GetOrCreateInGroup(group GroupPath, title string) (Lookup, error) {
	if e, ok := c.FindInGroup(group, title); ok {
		return Lookup{Entry: e, Status: LookupFound}, nil
	}
	return c.create(group, title)
}

func (c *EntryCollection) create(group GroupPath, title string) (Lookup, error) {
	e, err := newDefaultEntry(c.keyring)
	if err != nil {
		return Lookup{}, err
	}
	if c.state.readOnly {
		return Lookup{Entry: e, Status: LookupDeniedReadOnly}, nil
	}
	if group != "" {
		if err := e.SetGroup(group); err != nil {
			return Lookup{}, err
		}
	}
	if err := e.SetTitle(title); err != nil {
		return Lookup{}, err
	}
	if err := c.Add(e); err != nil {
		return Lookup{}, err
	}
	return Lookup{Entry: e, Status: LookupCreated}, nil
}

// Get is GetOrCreate returning only the entry.
func (c *EntryCollection) Get(title string) (*Entry, error) {
	l, err := c.GetOrCreate(title)
	return l.Entry, err
}

func (c *EntryCollection) GetInGroup(group GroupPath, title string) (*Entry, error) {
	l, err := c.GetOrCreateInGroup(group, title)
	return l.Entry, err
}

// Record returns record t of the entry titled title, creating either as
// needed.
func (c *EntryCollection) Record(title string, t RecordType) (*Record, error) {
	e, err := c.Get(title)
	if err != nil {
		return nil, err
	}
	return e.Record(t)
}

func (c *EntryCollection) GroupRecord(group GroupPath, title string, t RecordType) (*Record, error) {
	e, err := c.GetInGroup(group, title)
	if err != nil {
		return nil, err
	}
	return e.Record(t)
}

// RemoveTitle removes the first entry whose title matches.
func (c *EntryCollection) RemoveTitle(title string) (bool, error) {
	if c.state.readOnly {
		return false, ErrReadOnly
	}
	e, ok := c.Find(title)
	if !ok {
		return false, nil
	}
	return c.Remove(e)
}

func (c *EntryCollection) RemoveGroupTitle(group GroupPath, title string) (bool, error) {
	if c.state.readOnly {
		return false, ErrReadOnly
	}
	e, ok := c.FindInGroup(group, title)
	if !ok {
		return false, nil
	}
	return c.Remove(e)
}

// RemoveRecord removes record t from the entry titled title. No entry is
// created when none matches.
func (c *EntryCollection) RemoveRecord(title string, t RecordType) (bool, error) {
	if c.state.readOnly {
		return false, ErrReadOnly
	}
	e, ok := c.Find(title)
	if !ok {
		return false, nil
	}
	return e.RemoveRecord(t)
}

func (c *EntryCollection) RemoveGroupRecord(group GroupPath, title string, t RecordType) (bool, error) {
	if c.state.readOnly {
		return false, ErrReadOnly
	}
	e, ok := c.FindInGroup(group, title)
	if !ok {
		return false, nil
	}
	return e.RemoveRecord(t)
}

// Sort orders entries by group then title, ignoring case. Entries that
// compare equal keep their relative order.
func (c *EntryCollection) Sort() {
	slices.SortStableFunc(c.items, func(a, b *Entry) int {
		if n := util.CompareFold(string(a.Group()), string(b.Group())); n != 0 {
			return n
		}
		return util.CompareFold(a.Title(), b.Title())
	})
}
