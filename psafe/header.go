package psafe

import (
	"fmt"
	"slices"

	"github.com/jmcleod/bimil/protect"
)

// HeaderType identifies a document-level field.
type HeaderType byte

const (
	HeaderVersion               HeaderType = 0x00
	HeaderUUID                  HeaderType = 0x01
	HeaderNonDefaultPreferences HeaderType = 0x02
	HeaderTreeDisplayStatus     HeaderType = 0x03
	HeaderTimestampOfLastSave   HeaderType = 0x04
	HeaderWhoPerformedLastSave  HeaderType = 0x05
	HeaderWhatPerformedLastSave HeaderType = 0x06
	HeaderLastSavedByUser       HeaderType = 0x07
	HeaderLastSavedOnHost       HeaderType = 0x08
	HeaderDatabaseName          HeaderType = 0x09
	HeaderDatabaseDescription   HeaderType = 0x0A
	HeaderDatabaseFilters       HeaderType = 0x0B
	HeaderRecentlyUsedEntries   HeaderType = 0x0F
	HeaderNamedPasswordPolicies HeaderType = 0x10
	HeaderEmptyGroups           HeaderType = 0x11
	HeaderYubico                HeaderType = 0x12
	HeaderEndOfEntry            HeaderType = 0xFF
)

// DefaultFormatVersion is stored in the Version header of new documents.
const DefaultFormatVersion = 0x030D

var headerTypeNames = map[HeaderType]string{
	HeaderVersion:               "Version",
	HeaderUUID:                  "Uuid",
	HeaderNonDefaultPreferences: "NonDefaultPreferences",
	HeaderTreeDisplayStatus:     "TreeDisplayStatus",
	HeaderTimestampOfLastSave:   "TimestampOfLastSave",
	HeaderWhoPerformedLastSave:  "WhoPerformedLastSave",
	HeaderWhatPerformedLastSave: "WhatPerformedLastSave",
	HeaderLastSavedByUser:       "LastSavedByUser",
	HeaderLastSavedOnHost:       "LastSavedOnHost",
	HeaderDatabaseName:          "DatabaseName",
	HeaderDatabaseDescription:   "DatabaseDescription",
	HeaderDatabaseFilters:       "DatabaseFilters",
	HeaderRecentlyUsedEntries:   "RecentlyUsedEntries",
	HeaderNamedPasswordPolicies: "NamedPasswordPolicies",
	HeaderEmptyGroups:           "EmptyGroups",
	HeaderYubico:                "Yubico",
	HeaderEndOfEntry:            "EndOfEntry",
}

func (t HeaderType) String() string {
	if name, ok := headerTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("HeaderType(0x%02X)", byte(t))
}

// DataType returns how values of this header type are interpreted.
func (t HeaderType) DataType() DataType {
	switch t {
	case HeaderVersion:
		return DataVersion
	case HeaderUUID:
		return DataUUID
	case HeaderTimestampOfLastSave:
		return DataTime
	case HeaderNonDefaultPreferences, HeaderTreeDisplayStatus, HeaderWhoPerformedLastSave,
		HeaderWhatPerformedLastSave, HeaderLastSavedByUser, HeaderLastSavedOnHost,
		HeaderDatabaseName, HeaderDatabaseDescription, HeaderDatabaseFilters,
		HeaderRecentlyUsedEntries, HeaderNamedPasswordPolicies, HeaderEmptyGroups, HeaderYubico:
		return DataText
	default:
		return DataUnknown
	}
}

// Header is a typed document-level field.
type Header struct {
	Field
	headerType HeaderType
	owner      *HeaderCollection
}

// NewHeader returns an empty, unowned header of type t.
func NewHeader(t HeaderType, opts ...Option) *Header {
	o := newOptions(opts)
	return newHeader(t, o.keyring)
}

func newHeader(t HeaderType, k *protect.Keyring) *Header {
	h := &Header{headerType: t}
	h.Field.init(k, h)
	return h
}

func newHeaderRaw(t HeaderType, k *protect.Keyring, data []byte) (*Header, error) {
	h := newHeader(t, k)
	if err := h.Field.load(data); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Header) Type() HeaderType {
	return h.headerType
}

func (h *Header) String() string {
	return h.Field.String()
}

func (h *Header) dataType() DataType {
	return h.headerType.DataType()
}

func (h *Header) readOnly() bool {
	return h.owner != nil && h.owner.state.readOnly
}

func (h *Header) markChanged() {
	if h.owner != nil {
		h.owner.state.markChanged()
	}
}

func (h *Header) markAccessed() {}

// HeaderCollection holds the document headers. The Version header is always
// present and always first.
type HeaderCollection struct {
	state   *docState
	keyring *protect.Keyring
	items   []*Header
}

func newHeaderCollection(state *docState, k *protect.Keyring, headers []*Header) (*HeaderCollection, error) {
	c := &HeaderCollection{state: state, keyring: k}
	i := slices.IndexFunc(headers, func(h *Header) bool { return h.headerType == HeaderVersion })
	switch {
	case i < 0:
		v, err := newHeaderRaw(HeaderVersion, k, []byte{byte(DefaultFormatVersion & 0xFF), byte(DefaultFormatVersion >> 8)})
		if err != nil {
			return nil, err
		}
		headers = slices.Insert(slices.Clone(headers), 0, v)
	case i > 0:
		v := headers[i]
		headers = slices.Insert(slices.Delete(slices.Clone(headers), i, i+1), 0, v)
	}
	for _, h := range headers {
		h.owner = c
	}
	c.items = headers
	return c, nil
}

func (c *HeaderCollection) Len() int {
	return len(c.items)
}

func (c *HeaderCollection) At(i int) *Header {
	return c.items[i]
}

func (c *HeaderCollection) Headers() []*Header {
	return slices.Clone(c.items)
}

func (c *HeaderCollection) Has(t HeaderType) bool {
	_, ok := c.Lookup(t)
	return ok
}

func (c *HeaderCollection) Lookup(t HeaderType) (*Header, bool) {
	for _, h := range c.items {
		if h.headerType == t {
			return h, true
		}
	}
	return nil, false
}

// Get returns the first header of type t, appending one when missing. In a
// read-only document a detached header is returned instead.
func (c *HeaderCollection) Get(t HeaderType) *Header {
	if h, ok := c.Lookup(t); ok {
		return h
	}
	h := newHeader(t, c.keyring)
	if c.state.readOnly {
		return h
	}
	h.owner = c
	c.items = append(c.items, h)
	return h
}

func (c *HeaderCollection) Add(h *Header) error {
	if h == nil {
		return ErrNilItem
	}
	if h.owner != nil {
		return ErrOwnership
	}
	if c.state.readOnly {
		return ErrReadOnly
	}
	if h.headerType == HeaderVersion {
		return fmt.Errorf("%w: document already has a version header", ErrOutOfRange)
	}
	h.owner = c
	c.items = append(c.items, h)
	c.state.markChanged()
	return nil
}

// Remove detaches h. The Version header cannot be removed.
func (c *HeaderCollection) Remove(h *Header) (bool, error) {
	if h == nil {
		return false, ErrNilItem
	}
	if c.state.readOnly {
		return false, ErrReadOnly
	}
	i := slices.Index(c.items, h)
	if i < 0 {
		return false, nil
	}
	if i == 0 {
		return false, fmt.Errorf("%w: cannot remove the version header", ErrOutOfRange)
	}
	c.items = slices.Delete(c.items, i, i+1)
	h.owner = nil
	c.state.markChanged()
	return true, nil
}

// RemoveType removes the first header of type t.
func (c *HeaderCollection) RemoveType(t HeaderType) (bool, error) {
	h, ok := c.Lookup(t)
	if !ok {
		return false, nil
	}
	return c.Remove(h)
}

// Clear removes every header except Version.
func (c *HeaderCollection) Clear() error {
	if c.state.readOnly {
		return ErrReadOnly
	}
	for _, h := range c.items[1:] {
		h.owner = nil
	}
	c.items = c.items[:1]
	c.state.markChanged()
	return nil
}
